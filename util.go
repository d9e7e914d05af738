package main

import (
	"crypto/rand"
	"encoding/hex"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	axisForward = mgl64.Vec3{1, 0, 0}
	axisUp      = mgl64.Vec3{0, 0, 1}
)

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// NormalizeDegrees wraps angle to (-180, 180]
func NormalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}

// DeltaAngleDegrees returns the shortest signed rotation from a to b
func DeltaAngleDegrees(a, b float64) float64 {
	return NormalizeDegrees(b - a)
}

// YawQuat builds a rotation of yaw degrees around the up axis
func YawQuat(yaw float64) mgl64.Quat {
	return mgl64.QuatRotate(mgl64.DegToRad(yaw), axisUp)
}

// YawToForward returns the unit forward vector on the ground plane for a yaw in degrees
func YawToForward(yaw float64) mgl64.Vec3 {
	r := mgl64.DegToRad(yaw)
	return mgl64.Vec3{math.Cos(r), math.Sin(r), 0}
}

// ForwardToYaw is the inverse of YawToForward, ignoring pitch
func ForwardToYaw(dir mgl64.Vec3) float64 {
	return mgl64.RadToDeg(math.Atan2(dir.Y(), dir.X()))
}

// OrientationQuat returns the rotation taking the forward axis onto dir (no roll)
func OrientationQuat(dir mgl64.Vec3) mgl64.Quat {
	if dir.Len() < 1e-9 {
		return mgl64.QuatIdent()
	}
	d := dir.Normalize()
	yaw := math.Atan2(d.Y(), d.X())
	pitch := math.Atan2(d.Z(), math.Hypot(d.X(), d.Y()))
	// rotating +X about +Y by a positive angle points it down, hence -pitch
	return mgl64.QuatRotate(yaw, axisUp).Mul(mgl64.QuatRotate(-pitch, mgl64.Vec3{0, 1, 0}))
}

// Slerp interpolates between two rotations along the shorter arc
func Slerp(from, to mgl64.Quat, t float64) mgl64.Quat {
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return mgl64.QuatSlerp(from, to, Clamp(t, 0, 1)).Normalize()
}

// EaseOut interpolates from a to b with an ease-out curve of the given exponent
func EaseOut(a, b, alpha, exp float64) float64 {
	alpha = Clamp(alpha, 0, 1)
	return a + (b-a)*(1-math.Pow(1-alpha, exp))
}

// InterpTo moves current toward target proportionally to the remaining distance.
// A non-positive speed snaps straight to the target.
func InterpTo(current, target mgl64.Vec3, dt, speed float64) mgl64.Vec3 {
	if speed <= 0 {
		return target
	}
	dist := target.Sub(current)
	if dist.LenSqr() < 1e-8 {
		return target
	}
	return current.Add(dist.Mul(Clamp(dt*speed, 0, 1)))
}
