package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/sphere"
)

// zeroVec is the zero vector.
var zeroVec = r3.Vec{}

// SafeUnit returns the unit vector of v, or the zero vector when v is zero.
// r3.Unit yields NaN for the zero vector, which must never reach an agent.
func SafeUnit(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) {
		return zeroVec
	}
	return r3.Scale(1/n, v)
}

// AngleDeg returns the angle between a and b in degrees.
// If either vector is (near) zero the angle is 0.
func AngleDeg(a, b r3.Vec) float64 {
	denom := math.Sqrt(r3.Norm2(a) * r3.Norm2(b))
	if denom < 1e-15 {
		return 0
	}
	c := clampFloat(r3.Dot(a, b)/denom, -1, 1)
	return math.Acos(c) * 180 / math.Pi
}

// Heading rotates sphere-local directions into an agent's travel frame.
type Heading struct {
	rot      r3.Rotation
	identity bool
}

// HeadingFor returns the rotation taking sphere.Forward onto the direction of vel.
// An agent at rest keeps the sphere's own frame.
func HeadingFor(vel r3.Vec) Heading {
	dir := SafeUnit(vel)
	if dir == zeroVec {
		return Heading{identity: true}
	}

	cos := clampFloat(r3.Dot(sphere.Forward, dir), -1, 1)
	axis := r3.Cross(sphere.Forward, dir)
	if r3.Norm2(axis) < 1e-24 {
		if cos > 0 {
			return Heading{identity: true}
		}
		// Anti-parallel: any axis perpendicular to Forward works
		return Heading{rot: r3.NewRotation(math.Pi, r3.Vec{X: 1})}
	}
	return Heading{rot: r3.NewRotation(math.Acos(cos), axis)}
}

// Rotate maps a sphere-local vector into world space.
func (h Heading) Rotate(v r3.Vec) r3.Vec {
	if h.identity {
		return v
	}
	return h.rot.Rotate(v)
}

// clampFloat clamps v between min and max.
func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
