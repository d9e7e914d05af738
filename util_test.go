package main

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const eps = 1e-6

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func vecNear(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() < tol
}

func TestNormalizeDegrees(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{720, 0},
		{359, -1},
	}
	for _, c := range cases {
		if got := NormalizeDegrees(c.in); !near(got, c.want) {
			t.Errorf("NormalizeDegrees(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDeltaAngleDegreesTakesShortWay(t *testing.T) {
	if d := DeltaAngleDegrees(170, -170); !near(d, 20) {
		t.Errorf("expected +20 across the seam, got %v", d)
	}
	if d := DeltaAngleDegrees(-170, 170); !near(d, -20) {
		t.Errorf("expected -20 across the seam, got %v", d)
	}
}

func TestYawForwardRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 45, 90, 135, 179, -45, -90, -179} {
		got := ForwardToYaw(YawToForward(yaw))
		if !near(got, yaw) {
			t.Errorf("yaw %v round-tripped to %v", yaw, got)
		}
	}
	if f := YawToForward(0); !vecNear(f, mgl64.Vec3{1, 0, 0}, eps) {
		t.Errorf("yaw 0 should face +X, got %v", f)
	}
	if f := YawToForward(90); !vecNear(f, mgl64.Vec3{0, 1, 0}, eps) {
		t.Errorf("yaw 90 should face +Y, got %v", f)
	}
}

func TestOrientationQuatMapsForwardOntoDir(t *testing.T) {
	dirs := []mgl64.Vec3{
		{1, 0, 0},
		{0, 1, 0},
		{-1, 0, 0},
		{1, 1, 0},
		{1, 0, 1},
		{0.3, -0.4, -0.5},
	}
	for _, d := range dirs {
		got := OrientationQuat(d).Rotate(axisForward)
		if !vecNear(got, d.Normalize(), 1e-9) {
			t.Errorf("OrientationQuat(%v) rotates forward to %v", d, got)
		}
	}
}

func TestSlerpShortestArc(t *testing.T) {
	from := YawQuat(0)
	to := YawQuat(90).Scale(-1) // same rotation, opposite hemisphere
	mid := Slerp(from, to, 0.5).Rotate(axisForward)
	if y := ForwardToYaw(mid); !near(y, 45) {
		t.Errorf("expected halfway yaw 45, got %v", y)
	}
}

func TestSlerpClampsFactor(t *testing.T) {
	from, to := YawQuat(0), YawQuat(60)
	if y := ForwardToYaw(Slerp(from, to, 2).Rotate(axisForward)); !near(y, 60) {
		t.Errorf("t>1 should land on target, got %v", y)
	}
	if y := ForwardToYaw(Slerp(from, to, -1).Rotate(axisForward)); !near(y, 0) {
		t.Errorf("t<0 should stay at start, got %v", y)
	}
}

func TestEaseOut(t *testing.T) {
	if v := EaseOut(0, 100, 0, 5); !near(v, 0) {
		t.Errorf("alpha 0: got %v", v)
	}
	if v := EaseOut(0, 100, 1, 5); !near(v, 100) {
		t.Errorf("alpha 1: got %v", v)
	}
	// ease-out front-loads the change
	if v := EaseOut(0, 100, 0.5, 5); v < 90 {
		t.Errorf("alpha 0.5 with exp 5 should be past 90, got %v", v)
	}
}

func TestInterpTo(t *testing.T) {
	cur := mgl64.Vec3{0, 0, 0}
	target := mgl64.Vec3{100, 0, 0}
	got := InterpTo(cur, target, 0.1, 1)
	if !vecNear(got, mgl64.Vec3{10, 0, 0}, eps) {
		t.Errorf("expected 10%% of the way, got %v", got)
	}
	if got := InterpTo(cur, target, 0.1, 0); got != target {
		t.Errorf("non-positive speed should snap, got %v", got)
	}
	if got := InterpTo(cur, target, 2, 1); got != target {
		t.Errorf("dt*speed >= 1 should land on target, got %v", got)
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID(4)
	if len(id) != 8 {
		t.Errorf("expected 8 hex chars, got %q", id)
	}
	if id == GenerateID(4) {
		t.Error("two ids should differ")
	}
}
