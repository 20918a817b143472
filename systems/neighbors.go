package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NeighborParams holds the perception settings for neighbor scans.
type NeighborParams struct {
	VisionRadius   float64
	VisionAngleDeg float64
	EscapeFactor   float64 // separation multiplier for predator neighbors
	Fallback       float64 // repulsion magnitude at zero distance
}

// NeighborSums are the raw, unnormalized accumulations for one agent.
type NeighborSums struct {
	SumPosition r3.Vec
	SumVelocity r3.Vec
	SumAway     r3.Vec
	Count       int
	Predators   int // sensed predators, counted for telemetry
}

// Scratch holds per-worker reusable buffers for neighbor scans.
type Scratch struct {
	Candidates []int
}

// NeighborSource aggregates the sensed neighbors of agent idx.
// Implementations must be safe for concurrent calls with distinct scratch buffers.
type NeighborSource interface {
	Aggregate(idx int, agents []AgentState, p NeighborParams, scratch *Scratch) NeighborSums
}

// BruteForce scans every agent. O(n) per agent, O(n²) per tick.
type BruteForce struct{}

// Aggregate implements NeighborSource.
func (BruteForce) Aggregate(idx int, agents []AgentState, p NeighborParams, _ *Scratch) NeighborSums {
	var sums NeighborSums
	for j := range agents {
		accumulate(&sums, idx, j, agents, p)
	}
	return sums
}

// Aggregate is the brute-force neighbor scan for agent idx.
func Aggregate(idx int, agents []AgentState, p NeighborParams) NeighborSums {
	return BruteForce{}.Aggregate(idx, agents, p, nil)
}

// accumulate adds candidate j to the sums of agent idx if idx can sense it.
func accumulate(sums *NeighborSums, idx, j int, agents []AgentState, p NeighborParams) {
	if j == idx {
		return
	}
	self := agents[idx]
	other := agents[j]

	delta := r3.Sub(self.Pos, other.Pos)
	distSq := r3.Norm2(delta)
	if distSq > p.VisionRadius*p.VisionRadius {
		return
	}
	// Field of view: agents cannot sense what is behind them
	if AngleDeg(self.Vel, r3.Scale(-1, delta)) > p.VisionAngleDeg {
		return
	}

	sums.SumPosition = r3.Add(sums.SumPosition, other.Pos)
	sums.SumVelocity = r3.Add(sums.SumVelocity, other.Vel)

	// Inverse-distance repulsion. A coincident neighbor has no direction to
	// push along, so it is counted but adds no separation.
	magnitude := p.Fallback
	if distSq > 0 {
		magnitude = p.VisionRadius / math.Sqrt(distSq)
	}
	away := r3.Scale(magnitude, SafeUnit(delta))
	if other.IsPredator() {
		away = r3.Scale(p.EscapeFactor, away)
		sums.Predators++
	}
	sums.SumAway = r3.Add(sums.SumAway, away)
	sums.Count++
}
