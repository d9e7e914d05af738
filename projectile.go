package main

import (
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
)

// ProjectileState is the pooled lifecycle state of a rocket
type ProjectileState uint8

const (
	ProjectileFree ProjectileState = iota
	ProjectileInFlight
)

// Projectile is a pooled rocket. It is never created or destroyed after its vehicle spawns.
type Projectile struct {
	Slot  int
	Owner *Vehicle
	State ProjectileState

	Origin           mgl64.Vec3
	Position         mgl64.Vec3
	Direction        mgl64.Vec3 // current direction of travel
	Correction       mgl64.Vec3 // direction the authority wants us on
	InitialDirection mgl64.Vec3 // direction at launch, kept for the debug overlay
	LifeRemaining    float64
	Distance         float64
	Visible          bool
}

// Flight carries the per-process collaborators a projectile needs while ticking
type Flight struct {
	Settings *Settings
	World    CollisionWorld
	FX       Presenter
	// OnHit is called when a rocket strikes a vehicle other than its owner
	OnHit func(p *Projectile, victim *Vehicle)
}

func (p *Projectile) CollisionID() string {
	id := ""
	if p.Owner != nil {
		id = p.Owner.ID
	}
	return "rocket:" + id + "/" + strconv.Itoa(p.Slot)
}

// InFlight reports whether the rocket is simulating
func (p *Projectile) InFlight() bool { return p.State == ProjectileInFlight }

// StartMoving launches a free rocket from origin along direction
func (p *Projectile) StartMoving(direction, origin mgl64.Vec3, f Flight) {
	dir := direction.Normalize()
	p.Direction = dir
	p.Correction = dir
	p.InitialDirection = dir
	p.Origin = origin
	p.Position = origin
	p.LifeRemaining = f.Settings.RocketLifetime
	p.Distance = 0
	p.State = ProjectileInFlight
	p.setVisible(true, f.FX)
}

// ApplyCorrection re-aims an in-flight rocket without moving it.
// Returns false when the rocket is not in flight.
func (p *Projectile) ApplyCorrection(direction mgl64.Vec3) bool {
	if !p.InFlight() {
		return false
	}
	p.Correction = direction.Normalize()
	return true
}

// blendFactor is the slerp amount toward the correction for one tick
func blendFactor(s *Settings, dt float64) float64 {
	if s.CorrectionBlend == BlendExponential {
		return 1 - math.Exp(-s.CorrectionBlendRate*dt)
	}
	return s.CorrectionBlendRate * dt
}

// Tick advances an in-flight rocket and explodes it on a blocking hit or timeout
func (p *Projectile) Tick(dt float64, f Flight) {
	if !p.InFlight() {
		return
	}
	p.LifeRemaining -= dt
	p.Distance += f.Settings.RocketSpeed * dt

	q := Slerp(OrientationQuat(p.Direction), OrientationQuat(p.Correction), blendFactor(f.Settings, dt))
	p.Direction = q.Rotate(axisForward).Normalize()
	p.Position = p.Origin.Add(p.Direction.Mul(p.Distance))

	if f.World != nil {
		end := p.Position.Add(p.Direction.Mul(f.Settings.RocketProbeLength))
		if hit, ok := f.World.CastSegment(p.Position, end, p.ignoreSet()); ok {
			p.Explode(hit.Object, f)
			return
		}
	}
	if p.LifeRemaining < 0 {
		p.Explode(nil, f)
	}
}

func (p *Projectile) ignoreSet() []Collidable {
	if p.Owner == nil {
		return []Collidable{p}
	}
	return []Collidable{p, p.Owner}
}

// Explode ends the flight. hit is nil on timeout.
func (p *Projectile) Explode(hit Collidable, f Flight) {
	if !p.InFlight() {
		return
	}
	if victim, ok := hit.(*Vehicle); ok && victim != p.Owner && f.OnHit != nil {
		f.OnHit(p, victim)
	}
	if f.FX != nil {
		f.FX.SpawnExplosion(p.Position)
	}
	p.MakeFree(f.FX)
}

// MakeFree hides the rocket and returns it to the pool
func (p *Projectile) MakeFree(fx Presenter) {
	p.State = ProjectileFree
	p.LifeRemaining = 0
	p.Distance = 0
	p.setVisible(false, fx)
}

func (p *Projectile) setVisible(v bool, fx Presenter) {
	p.Visible = v
	if fx != nil {
		fx.SetVisible(p, v)
	}
}

// ToState converts to protocol state
func (p *Projectile) ToState() ProjectileSnapshot {
	return ProjectileSnapshot{
		Slot:      p.Slot,
		Origin:    p.Origin,
		Direction: p.Direction,
		Distance:  p.Distance,
		Life:      p.LifeRemaining,
	}
}
