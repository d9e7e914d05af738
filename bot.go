package main

import (
	"math"
	"math/rand"
)

const (
	BotDetectRange   = 3000.0
	BotShootRange    = 1800.0
	BotOptimalRange  = 900.0
	BotAimTolerance  = 6.0  // degrees off target still worth a shot
	BotTurnGain      = 30.0 // degrees of error for full turn input
	BotWanderDrift   = 45.0 // max degrees/s the wander heading changes
	BotBurstSize     = 3
	BotBurstCooldown = 3.0 // seconds between bursts
	BotStrafeFlipMin = 1.5
	BotStrafeFlipMax = 3.5
	BotCheatInterval = 5.0 // seconds between restock requests
)

// VehicleView lists the vehicles a pilot can see
type VehicleView interface {
	Vehicles() []*Vehicle
}

// BotPilot is an InputSource that hunts the nearest other vehicle
type BotPilot struct {
	View VehicleView

	// CheatAmount, when positive, makes an empty-handed bot ask the authority for that
	// many rockets. The authority only grants it when cheats are allowed.
	CheatAmount int

	rng         *rand.Rand
	wanderYaw   float64
	strafeDir   float64
	strafeTimer float64
	burstLeft   int
	burstCD     float64
	cheatCD     float64
	tracking    bool
}

// NewBotPilot creates a pilot with its own deterministic random source
func NewBotPilot(view VehicleView, seed int64) *BotPilot {
	rng := rand.New(rand.NewSource(seed))
	b := &BotPilot{View: view, rng: rng, strafeDir: 1}
	if rng.Float64() < 0.5 {
		b.strafeDir = -1
	}
	b.strafeTimer = b.nextStrafeFlip()
	return b
}

func (b *BotPilot) nextStrafeFlip() float64 {
	return BotStrafeFlipMin + b.rng.Float64()*(BotStrafeFlipMax-BotStrafeFlipMin)
}

// Tracking reports whether the pilot had a target on its last poll
func (b *BotPilot) Tracking() bool { return b.tracking }

// nearest finds the closest other vehicle within detect range
func (b *BotPilot) nearest(self *Vehicle) (*Vehicle, float64) {
	var best *Vehicle
	bestDist := math.MaxFloat64
	if b.View == nil {
		return nil, 0
	}
	for _, o := range b.View.Vehicles() {
		if o == self || o.ID == self.ID {
			continue
		}
		d := o.Transform.Position.Sub(self.Transform.Position).Len()
		if d < BotDetectRange && d < bestDist {
			best, bestDist = o, d
		}
	}
	return best, bestDist
}

// steer converts a yaw error into turn input, accounting for reversed steering
func steer(v *Vehicle, errDeg float64) float64 {
	turn := Clamp(errDeg/BotTurnGain, -1, 1)
	if v.Movement.Speed <= 0 {
		turn = -turn
	}
	return turn
}

// Poll implements InputSource
func (b *BotPilot) Poll(v *Vehicle, dt float64) Input {
	if b.burstCD > 0 {
		b.burstCD -= dt
	}
	if b.cheatCD > 0 {
		b.cheatCD -= dt
	}
	facing := v.Facing()
	cheat := b.restock(v)

	target, dist := b.nearest(v)
	if target == nil {
		b.tracking = false
		b.wanderYaw = NormalizeDegrees(b.wanderYaw + (b.rng.Float64()*2-1)*BotWanderDrift*dt)
		return Input{
			Forward: 0.6,
			Turn:    steer(v, DeltaAngleDegrees(facing, b.wanderYaw)),
			Cheat:   cheat,
		}
	}
	if !b.tracking {
		b.wanderYaw = facing
	}
	b.tracking = true

	toTarget := target.Transform.Position.Sub(v.Transform.Position)
	aim := DeltaAngleDegrees(facing, ForwardToYaw(toTarget))

	b.strafeTimer -= dt
	if b.strafeTimer <= 0 {
		b.strafeDir = -b.strafeDir
		b.strafeTimer = b.nextStrafeFlip()
	}

	// approach until optimal range, then back off; strafe while aligned
	forward := Clamp((dist-BotOptimalRange)/(BotOptimalRange*0.5), -1, 1)
	turn := steer(v, aim)
	if math.Abs(aim) < BotAimTolerance {
		turn += b.strafeDir * 0.2 * (1 - math.Abs(forward))
	}

	in := Input{Forward: forward, Turn: Clamp(turn, -1, 1), Cheat: cheat}
	if dist < BotShootRange && math.Abs(aim) < BotAimTolerance {
		in.Fire = b.trigger(v)
	}
	return in
}

// restock returns the rockets to ask for when the magazine is empty, at most once per
// BotCheatInterval
func (b *BotPilot) restock(v *Vehicle) int {
	if b.CheatAmount <= 0 || v.Weapon.Unlimited || v.Weapon.Ammo > 0 || b.cheatCD > 0 {
		return 0
	}
	b.cheatCD = BotCheatInterval
	return b.CheatAmount
}

// trigger runs the burst schedule; the weapon cooldown still gates each shot
func (b *BotPilot) trigger(v *Vehicle) bool {
	if v.Weapon.Cooldown > 0 || (v.Weapon.Ammo <= 0 && !v.Weapon.Unlimited) {
		return false
	}
	if b.burstLeft == 0 {
		if b.burstCD > 0 {
			return false
		}
		b.burstLeft = BotBurstSize
	}
	b.burstLeft--
	if b.burstLeft == 0 {
		b.burstCD = BotBurstCooldown
	}
	return true
}
