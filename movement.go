package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// turnEaseSpeedFraction is the share of max speed at which turning reaches full authority
const turnEaseSpeedFraction = 0.75

// Input is one tick of player intent
type Input struct {
	Forward float64 // [-1, 1]
	Turn    float64 // [-1, 1]
	Brake   bool
	Fire    bool
	Cheat   int // rockets to ask the authority for, 0 for none
}

// InputSource is polled once per tick for the locally controlled vehicle
type InputSource interface {
	Poll(v *Vehicle, dt float64) Input
}

// MovementBody owns the physical pose the simulator drives
type MovementBody interface {
	ApplyGravity(dt float64)
	SetFacing(q mgl64.Quat, blendRate, dt float64)
	Facing() mgl64.Quat
	Move(delta mgl64.Vec3)
	Position() mgl64.Vec3
}

// GroundBody is a point body on a flat ground plane at Z=GroundZ
type GroundBody struct {
	GroundZ float64
	Gravity float64

	pos    mgl64.Vec3
	vz     float64
	facing mgl64.Quat
}

// NewGroundBody places a body at pos facing yaw degrees
func NewGroundBody(pos mgl64.Vec3, yaw, gravity float64) *GroundBody {
	return &GroundBody{
		GroundZ: 0,
		Gravity: gravity,
		pos:     pos,
		facing:  YawQuat(yaw),
	}
}

func (b *GroundBody) ApplyGravity(dt float64) {
	if b.pos.Z() <= b.GroundZ && b.vz <= 0 {
		b.pos[2] = b.GroundZ
		b.vz = 0
		return
	}
	b.vz -= b.Gravity * dt
	b.pos[2] += b.vz * dt
	if b.pos.Z() < b.GroundZ {
		b.pos[2] = b.GroundZ
		b.vz = 0
	}
}

// SetFacing blends toward q; a non-positive rate snaps
func (b *GroundBody) SetFacing(q mgl64.Quat, blendRate, dt float64) {
	if blendRate <= 0 || dt <= 0 {
		b.facing = q.Normalize()
		return
	}
	b.facing = Slerp(b.facing, q, blendRate*dt)
}

func (b *GroundBody) Facing() mgl64.Quat { return b.facing }

func (b *GroundBody) Move(delta mgl64.Vec3) { b.pos = b.pos.Add(delta) }

func (b *GroundBody) Position() mgl64.Vec3 { return b.pos }

// MovementSimulator integrates the locally controlled vehicle
type MovementSimulator struct {
	Settings Settings
}

// TurnSpeed returns degrees/s of turning authority at the given speed
func (s MovementSimulator) TurnSpeed(speed float64) float64 {
	alpha := Clamp(math.Abs(speed)/(s.Settings.MaxSpeed*turnEaseSpeedFraction), 0, 1)
	return EaseOut(0, s.Settings.TurnSpeedDefault, alpha, s.Settings.TurnEaseExponent)
}

// Step advances the vehicle one tick from input and writes the body pose back to its transform
func (s MovementSimulator) Step(v *Vehicle, body MovementBody, in Input, dt float64) {
	if body == nil || dt <= 0 {
		return
	}
	st := &v.Movement
	st.Braking = in.Brake

	turn := Clamp(in.Turn, -1, 1)
	// steering reverses when rolling backward
	if st.Speed <= 0 {
		turn = -turn
	}
	v.Transform.Yaw = NormalizeDegrees(v.Transform.Yaw + turn*s.TurnSpeed(st.Speed)*dt)

	st.Speed += Clamp(in.Forward, -1, 1) * s.Settings.Acceleration * dt
	st.Speed = Clamp(st.Speed, -s.Settings.MaxSpeed, s.Settings.MaxSpeed)
	friction := s.Settings.Friction
	if st.Braking {
		friction = s.Settings.BrakingFriction
	}
	st.Speed *= math.Pow(friction, dt)

	body.SetFacing(YawQuat(v.Transform.Yaw), s.Settings.FacingBlendRate, dt)
	body.ApplyGravity(dt)

	forward := body.Facing().Rotate(axisForward)
	body.Move(forward.Mul(st.Speed * dt))

	v.Transform.Position = body.Position()
	v.Transform.Forward = forward
}

// Interpolate moves an observed vehicle toward its last authoritative pose; yaw snaps
func (s MovementSimulator) Interpolate(v *Vehicle, dt float64) {
	if !v.hasRemote {
		return
	}
	v.Transform.Position = InterpTo(v.Transform.Position, v.Remote.Position, dt, s.Settings.ObserverInterpSpeed)
	v.Transform.Yaw = v.Remote.Yaw
	v.Transform.Forward = YawToForward(v.Remote.Yaw)
}
