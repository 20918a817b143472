package systems

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Motion holds the integration settings shared by every agent.
type Motion struct {
	Speed float64 // cruising speed
	Inert float64 // overspeed deceleration per second
	DT    float64
}

// Smooth drives v toward cruising speed. Overspeed bleeds off by Inert·DT
// per tick; underspeed snaps straight to Speed. A zero vector stays zero.
func (m Motion) Smooth(v r3.Vec) r3.Vec {
	dir := SafeUnit(v)
	if r3.Norm2(v) > m.Speed*m.Speed {
		return r3.Sub(v, r3.Scale(m.Inert*m.DT, dir))
	}
	return r3.Scale(m.Speed, dir)
}

// Integrate advances one agent by one tick.
func (m Motion) Integrate(pos, vel, accel r3.Vec) (r3.Vec, r3.Vec) {
	v := m.Smooth(r3.Add(vel, r3.Scale(m.DT, accel)))
	p := r3.Add(pos, r3.Scale(m.DT, v))
	return p, v
}

// Bounds is the axis-aligned box centered at the origin.
type Bounds struct {
	Half r3.Vec
	Wrap bool
}

// Apply wraps a position that escaped the box back to the opposite side,
// slightly inside the boundary. Positions inside are returned unchanged.
func (b Bounds) Apply(p r3.Vec) r3.Vec {
	if !b.Wrap {
		return p
	}
	p.X = wrapAxis(p.X, b.Half.X)
	p.Y = wrapAxis(p.Y, b.Half.Y)
	p.Z = wrapAxis(p.Z, b.Half.Z)
	return p
}

func wrapAxis(v, half float64) float64 {
	if v > half || v < -half {
		return -0.95 * v
	}
	return v
}
