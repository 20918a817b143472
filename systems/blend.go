package systems

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// FlockTerms are the normalized flocking contributions before weighting.
type FlockTerms struct {
	CenterMass r3.Vec // toward the local center of mass
	Align      r3.Vec // toward the local mean velocity
	Away       r3.Vec // mean separation push
}

// Terms derives the flocking terms from the neighbor sums. The agent itself
// is included in both averages. All terms are zero when nothing was sensed.
func Terms(self AgentState, sums NeighborSums) FlockTerms {
	if sums.Count == 0 {
		return FlockTerms{}
	}
	n := float64(sums.Count)
	inv := 1 / (n + 1)

	center := r3.Scale(inv, r3.Add(sums.SumPosition, self.Pos))
	meanVel := r3.Scale(inv, r3.Add(sums.SumVelocity, self.Vel))

	return FlockTerms{
		CenterMass: SafeUnit(r3.Sub(center, self.Pos)),
		Align:      SafeUnit(r3.Sub(meanVel, self.Vel)),
		Away:       r3.Scale(1/n, sums.SumAway),
	}
}

// Wander is the wander input for one agent on one tick.
type Wander struct {
	Active bool
	Sample r3.Vec // direction drawn from the sphere set
}

// WanderAccel returns the heading drift toward sample, weighted by random.
func WanderAccel(sample, vel r3.Vec, random float64) r3.Vec {
	return r3.Scale(random, r3.Sub(SafeUnit(sample), SafeUnit(vel)))
}

// Blend combines the flocking terms, the obstacle deviation and the wander
// drift into one acceleration, weighted by the agent's role factors.
func Blend(self AgentState, sums NeighborSums, deviation r3.Vec, w Wander) r3.Vec {
	f := self.Role.Factors()

	accel := r3.Scale(f.Collide, deviation)

	if sums.Count > 0 {
		t := Terms(self, sums)
		accel = r3.Add(accel, r3.Scale(f.Avoid, t.Away))
		accel = r3.Add(accel, r3.Scale(f.Coherence, t.CenterMass))
		accel = r3.Add(accel, r3.Scale(f.Align, t.Align))
	}

	if w.Active {
		accel = r3.Add(accel, WanderAccel(w.Sample, self.Vel, f.Random))
	}

	return accel
}
