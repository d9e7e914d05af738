package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Collidable is anything a segment cast can report
type Collidable interface {
	CollisionID() string
}

// SphereBody is a collidable with a bounding sphere
type SphereBody interface {
	Collidable
	Sphere() (center mgl64.Vec3, radius float64)
}

// Hit is the nearest blocking collision along a cast
type Hit struct {
	Object Collidable
	Point  mgl64.Vec3
}

// CollisionWorld answers nearest-blocking-hit queries along a segment
type CollisionWorld interface {
	CastSegment(origin, end mgl64.Vec3, ignore []Collidable) (Hit, bool)
}

// Obstacle is a static blocking sphere placed with the level
type Obstacle struct {
	ID       string
	Position mgl64.Vec3
	Radius   float64
}

// NewObstacle places an obstacle from its level description
func NewObstacle(spec ObstacleSpec) *Obstacle {
	r := spec.Radius
	if r <= 0 {
		r = ObstacleRadius
	}
	return &Obstacle{ID: spec.ID, Position: spec.Position, Radius: r}
}

func (o *Obstacle) CollisionID() string { return "obstacle:" + o.ID }

func (o *Obstacle) Sphere() (mgl64.Vec3, float64) { return o.Position, o.Radius }

// CheckCollision checks if two spheres overlap
func CheckCollision(a mgl64.Vec3, ra float64, b mgl64.Vec3, rb float64) bool {
	radSum := ra + rb
	return b.Sub(a).LenSqr() <= radSum*radSum
}

// segmentSphereIntersect returns the earliest fraction t in [0,1] at which the segment
// start-end touches the sphere. A start point inside the sphere hits at t=0.
func segmentSphereIntersect(start, end, center mgl64.Vec3, r float64) (float64, bool) {
	d := end.Sub(start)
	f := start.Sub(center)
	c := f.LenSqr() - r*r
	if c <= 0 {
		return 0, true
	}
	a := d.LenSqr()
	if a == 0 {
		return 0, false
	}
	b := 2 * f.Dot(d)
	discriminant := b*b - 4*a*c
	if discriminant < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(discriminant)) / (2 * a)
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}

// SphereWorld is the default collision world: static obstacles plus per-tick vehicle spheres,
// indexed by a hashed grid on the ground plane.
type SphereWorld struct {
	grid      *SpatialGrid
	obstacles []*Obstacle
	bodies    []SphereBody
	maxRadius float64
	buf       []EntityRef
}

// NewSphereWorld creates an empty world
func NewSphereWorld() *SphereWorld {
	return &SphereWorld{grid: NewSpatialGrid(SpatialCellSize)}
}

// AddObstacle places a static obstacle
func (w *SphereWorld) AddObstacle(o *Obstacle) {
	w.obstacles = append(w.obstacles, o)
	w.rebuild()
}

// Sync replaces the dynamic bodies and rebuilds the grid; call once per tick before casting
func (w *SphereWorld) Sync(bodies []SphereBody) {
	w.bodies = append(w.bodies[:0], bodies...)
	w.rebuild()
}

func (w *SphereWorld) rebuild() {
	w.grid.Clear()
	w.maxRadius = 0
	for i, o := range w.obstacles {
		w.grid.InsertCircle(o.Position.X(), o.Position.Y(), o.Radius, EntityRef{Kind: 'o', Idx: i})
		w.maxRadius = math.Max(w.maxRadius, o.Radius)
	}
	for i, b := range w.bodies {
		c, r := b.Sphere()
		w.grid.InsertCircle(c.X(), c.Y(), r, EntityRef{Kind: 'v', Idx: i})
		w.maxRadius = math.Max(w.maxRadius, r)
	}
}

func (w *SphereWorld) body(ref EntityRef) SphereBody {
	if ref.Kind == 'o' {
		return w.obstacles[ref.Idx]
	}
	return w.bodies[ref.Idx]
}

// CastSegment returns the nearest sphere along origin-end that is not in ignore
func (w *SphereWorld) CastSegment(origin, end mgl64.Vec3, ignore []Collidable) (Hit, bool) {
	mid := origin.Add(end).Mul(0.5)
	reach := end.Sub(origin).Len()/2 + w.maxRadius
	w.buf = w.grid.QueryBuf(mid.X(), mid.Y(), reach, w.buf[:0])

	var best Hit
	bestT := math.Inf(1)
	for _, ref := range w.buf {
		b := w.body(ref)
		if isIgnored(b, ignore) {
			continue
		}
		c, r := b.Sphere()
		t, ok := segmentSphereIntersect(origin, end, c, r)
		if !ok || t >= bestT {
			continue
		}
		bestT = t
		best = Hit{Object: b, Point: origin.Add(end.Sub(origin).Mul(t))}
	}
	return best, best.Object != nil
}

func isIgnored(c Collidable, ignore []Collidable) bool {
	for _, ig := range ignore {
		if ig != nil && ig.CollisionID() == c.CollisionID() {
			return true
		}
	}
	return false
}
