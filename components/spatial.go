package components

import "gonum.org/v1/gonum/spatial/r3"

// Position represents an agent's world position.
type Position struct {
	X, Y, Z float64
}

// Vec returns the position as a vector.
func (p Position) Vec() r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// Set overwrites the position.
func (p *Position) Set(v r3.Vec) { p.X, p.Y, p.Z = v.X, v.Y, v.Z }

// Velocity represents an agent's velocity in world units per second.
type Velocity struct {
	X, Y, Z float64
}

// Vec returns the velocity as a vector.
func (v Velocity) Vec() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// Set overwrites the velocity.
func (v *Velocity) Set(w r3.Vec) { v.X, v.Y, v.Z = w.X, w.Y, w.Z }
