package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/sphere"
)

// ProbeResult describes the outcome of one obstacle probe.
type ProbeResult struct {
	Deviation  r3.Vec // steering correction, zero when none is needed or possible
	Index      int    // first clear sample, -1 when every sample was blocked
	AllBlocked bool
}

// ObstacleProber casts the sphere sample set, rotated into an agent's
// heading, and steers toward the first clear direction.
type ObstacleProber struct {
	points  sphere.Points
	blocker RayBlocker
	inset   r3.Vec // half extents of the inset box
	reach   float64
}

// NewObstacleProber creates a prober. inset holds the half extents of the
// box shrunk by the bounds thickness; reach is the ray length.
func NewObstacleProber(points sphere.Points, blocker RayBlocker, inset r3.Vec, reach float64) *ObstacleProber {
	if blocker == nil {
		blocker = NoObstacles{}
	}
	return &ObstacleProber{
		points:  points,
		blocker: blocker,
		inset:   inset,
		reach:   reach,
	}
}

// Probe returns the deviation for an agent at pos moving along vel.
// Samples are tried in generation order, which walks outward from straight
// ahead, so the first clear one is the least deviation in that order.
func (p *ObstacleProber) Probe(pos, vel r3.Vec) ProbeResult {
	heading := HeadingFor(vel)

	for i := 0; i < p.points.Len(); i++ {
		cast := heading.Rotate(p.points.At(i))

		if p.blocker.IsRayBlocked(pos, SafeUnit(cast), p.reach) {
			continue
		}
		if !p.inside(r3.Add(pos, cast)) {
			continue
		}

		if i == 0 {
			// Straight ahead is clear
			return ProbeResult{Index: 0}
		}
		return ProbeResult{Deviation: SafeUnit(r3.Sub(cast, vel)), Index: i}
	}

	return ProbeResult{Index: -1, AllBlocked: true}
}

// inside reports whether q lies within the inset box.
func (p *ObstacleProber) inside(q r3.Vec) bool {
	return math.Abs(q.X) <= p.inset.X &&
		math.Abs(q.Y) <= p.inset.Y &&
		math.Abs(q.Z) <= p.inset.Z
}
