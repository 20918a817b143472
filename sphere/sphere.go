// Package sphere generates near-uniform direction sets on a sphere.
package sphere

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// GoldenAngle is the step angle that spreads points without banding.
var GoldenAngle = math.Pi * (3 - math.Sqrt(5))

// Forward is the pole of the spiral: point 0 of every set lies along it.
var Forward = r3.Vec{Z: 1}

// Points is an ordered, read-only set of sphere points.
// Index 0 is the pole (Forward); later points spiral away from it.
type Points struct {
	pts    []r3.Vec
	radius float64
}

// Generate builds count points on a sphere of the given radius using a
// spiral that advances stepAngle radians per point. z falls linearly from
// +1 to -1, so with GoldenAngle the result is the Fibonacci sphere.
func Generate(count int, radius, stepAngle float64) Points {
	if count < 0 {
		count = 0
	}
	pts := make([]r3.Vec, count)
	for i := range pts {
		z := 1 - float64(i)/float64(count)*2
		inner := math.Sqrt(math.Max(0, 1-z*z))
		theta := stepAngle * float64(i)
		pts[i] = r3.Scale(radius, r3.Vec{
			X: inner * math.Cos(theta),
			Y: inner * math.Sin(theta),
			Z: z,
		})
	}
	return Points{pts: pts, radius: radius}
}

// Len returns the number of points.
func (p Points) Len() int { return len(p.pts) }

// Radius returns the radius the points were scaled by.
func (p Points) Radius() float64 { return p.radius }

// At returns point i.
func (p Points) At(i int) r3.Vec { return p.pts[i] }

// Unit returns the direction of point i.
func (p Points) Unit(i int) r3.Vec {
	v := p.pts[i]
	n := r3.Norm(v)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}

// Slice returns a copy of the points.
func (p Points) Slice() []r3.Vec {
	return append([]r3.Vec(nil), p.pts...)
}
