package main

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestCheckCollision(t *testing.T) {
	// Overlapping spheres
	if !CheckCollision(mgl64.Vec3{0, 0, 0}, 10, mgl64.Vec3{15, 0, 0}, 10) {
		t.Error("spheres should collide (overlapping)")
	}

	// Touching spheres
	if !CheckCollision(mgl64.Vec3{0, 0, 0}, 10, mgl64.Vec3{20, 0, 0}, 10) {
		t.Error("spheres should collide (touching)")
	}

	// Separated spheres
	if CheckCollision(mgl64.Vec3{0, 0, 0}, 10, mgl64.Vec3{25, 0, 0}, 10) {
		t.Error("spheres should not collide")
	}

	// Separated only along Z
	if CheckCollision(mgl64.Vec3{0, 0, 0}, 10, mgl64.Vec3{0, 0, 25}, 10) {
		t.Error("vertical separation should count")
	}
}

func TestSegmentSphereIntersect(t *testing.T) {
	center := mgl64.Vec3{50, 0, 0}
	tHit, ok := segmentSphereIntersect(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{100, 0, 0}, center, 10)
	if !ok || !near(tHit, 0.4) {
		t.Errorf("expected hit at t=0.4, got %v %v", tHit, ok)
	}

	if _, ok := segmentSphereIntersect(mgl64.Vec3{0, 20, 0}, mgl64.Vec3{100, 20, 0}, center, 10); ok {
		t.Error("parallel miss reported as hit")
	}

	if _, ok := segmentSphereIntersect(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{30, 0, 0}, center, 10); ok {
		t.Error("segment ending short of the sphere reported as hit")
	}

	if tHit, ok := segmentSphereIntersect(center, mgl64.Vec3{100, 0, 0}, center, 10); !ok || tHit != 0 {
		t.Errorf("start inside should hit at 0, got %v %v", tHit, ok)
	}
}

func TestCastSegmentNearestWins(t *testing.T) {
	w := NewSphereWorld()
	farRock := &Obstacle{ID: "far", Position: mgl64.Vec3{900, 0, 0}, Radius: 50}
	nearRock := &Obstacle{ID: "near", Position: mgl64.Vec3{400, 0, 0}, Radius: 50}
	w.AddObstacle(farRock)
	w.AddObstacle(nearRock)

	hit, ok := w.CastSegment(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1000, 0, 0}, nil)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Object != nearRock {
		t.Errorf("expected the closer obstacle, got %s", hit.Object.CollisionID())
	}
	if !vecNear(hit.Point, mgl64.Vec3{350, 0, 0}, 1e-6) {
		t.Errorf("expected impact at x=350, got %v", hit.Point)
	}

	hit, ok = w.CastSegment(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1000, 0, 0}, []Collidable{nearRock})
	if !ok || hit.Object != farRock {
		t.Error("ignored obstacle should let the cast reach the far one")
	}
}

func TestCastSegmentSeesSyncedVehicles(t *testing.T) {
	s := DefaultSettings()
	w := NewSphereWorld()
	v := NewVehicle("a", "a", mgl64.Vec3{3000, 3000, 0}, 0, s)

	if _, ok := w.CastSegment(mgl64.Vec3{2800, 3000, 0}, mgl64.Vec3{3100, 3000, 0}, nil); ok {
		t.Fatal("no bodies synced yet")
	}
	w.Sync([]SphereBody{v})
	hit, ok := w.CastSegment(mgl64.Vec3{2800, 3000, 0}, mgl64.Vec3{3100, 3000, 0}, nil)
	if !ok || hit.Object != v {
		t.Fatal("expected to hit the synced vehicle")
	}

	v.Transform.Position = mgl64.Vec3{-3000, 0, 0}
	w.Sync([]SphereBody{v})
	if _, ok := w.CastSegment(mgl64.Vec3{2800, 3000, 0}, mgl64.Vec3{3100, 3000, 0}, nil); ok {
		t.Error("vehicle moved away but the grid still reports it")
	}
}

func TestNewObstacleDefaultsRadius(t *testing.T) {
	o := NewObstacle(ObstacleSpec{ID: "r"})
	if o.Radius != ObstacleRadius {
		t.Errorf("expected default radius %v, got %v", ObstacleRadius, o.Radius)
	}
}
