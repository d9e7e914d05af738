package main

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a vehicle's pose as displayed on this process
type Transform struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3
	Yaw      float64 // degrees
}

// MovementState is the simulator's per-vehicle integration state
type MovementState struct {
	Speed   float64
	Braking bool
}

// WeaponState is the locally predicted side of the rocket launcher
type WeaponState struct {
	Ammo      int
	Cooldown  float64
	Unlimited bool

	// fire requests sent to the authority and not yet confirmed or rejected
	pendingFires int
}

// Vehicle is one participant's vehicle as seen by one process
type Vehicle struct {
	ID     string
	Name   string
	Radius float64

	Transform Transform
	Movement  MovementState
	Weapon    WeaponState
	Health    int // display copy, always overwritten by the authority

	// Remote is the last pose received from the network
	Remote    Transform
	hasRemote bool

	Pool *ProjectilePool
	Body MovementBody
}

// NewVehicle spawns a vehicle with a full pool of free rockets
func NewVehicle(id, name string, pos mgl64.Vec3, yaw float64, s Settings) *Vehicle {
	v := &Vehicle{
		ID:     id,
		Name:   name,
		Radius: s.VehicleRadius,
		Health: s.StartHealth,
		Weapon: WeaponState{Ammo: s.StartAmmo, Unlimited: s.UnlimitedAmmo},
	}
	v.Transform = Transform{Position: pos, Yaw: yaw, Forward: YawToForward(yaw)}
	v.Remote = v.Transform
	v.Pool = NewProjectilePool(v, s.PoolSize)
	return v
}

func (v *Vehicle) CollisionID() string { return "vehicle:" + v.ID }

func (v *Vehicle) Sphere() (mgl64.Vec3, float64) { return v.Transform.Position, v.Radius }

// Facing returns the yaw this vehicle is actually pointing along
func (v *Vehicle) Facing() float64 {
	return ForwardToYaw(v.Transform.Forward)
}

// RocketOrigin is where a rocket fired now would start
func (v *Vehicle) RocketOrigin(s Settings) mgl64.Vec3 {
	return v.Transform.Position.Add(v.Transform.Forward.Mul(s.RocketSpawnOffset))
}

// TickCooldown counts the fire cooldown down toward zero
func (v *Vehicle) TickCooldown(dt float64) {
	if v.Weapon.Cooldown > 0 {
		v.Weapon.Cooldown -= dt
	}
}

// SetRemotePose records a pose received from the network
func (v *Vehicle) SetRemotePose(pos mgl64.Vec3, yaw float64) {
	v.Remote = Transform{Position: pos, Yaw: yaw, Forward: YawToForward(yaw)}
	v.hasRemote = true
}

// SetRemoteLocation records a received position, keeping the last received yaw
func (v *Vehicle) SetRemoteLocation(pos mgl64.Vec3) {
	v.Remote.Position = pos
	v.hasRemote = true
}

// SetRemoteYaw records a received yaw, keeping the last received position
func (v *Vehicle) SetRemoteYaw(yaw float64) {
	v.Remote.Yaw = yaw
	v.Remote.Forward = YawToForward(yaw)
	v.hasRemote = true
}

// ToState converts to protocol state
func (v *Vehicle) ToState() VehicleState {
	st := VehicleState{
		ID:        v.ID,
		Name:      v.Name,
		Position:  v.Transform.Position,
		Yaw:       v.Transform.Yaw,
		Ammo:      v.Weapon.Ammo,
		Health:    v.Health,
		Unlimited: v.Weapon.Unlimited,
	}
	for _, p := range v.Pool.InFlight() {
		st.Rockets = append(st.Rockets, p.ToState())
	}
	return st
}
