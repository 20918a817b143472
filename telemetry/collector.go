package telemetry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/systems"
)

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float64

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	obstacleDeviations int
	blockedProbes      int
	wanderImpulses     int
	predatorEncounters int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int32(math.Round(windowDurationSec / dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordDeviation records an agent steering around an obstacle or wall.
func (c *Collector) RecordDeviation() {
	c.obstacleDeviations++
}

// RecordBlockedProbe records a probe where every sampled direction was blocked.
func (c *Collector) RecordBlockedProbe() {
	c.blockedProbes++
}

// RecordWanderImpulse records one active wander tick.
func (c *Collector) RecordWanderImpulse() {
	c.wanderImpulses++
}

// RecordPredatorEncounter records a boid sensing n predators on one tick.
func (c *Collector) RecordPredatorEncounter(n int) {
	c.predatorEncounters += n
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// agents is the population at the end of the window; neighborCounts holds
// the sensed neighbor count of each agent on the last tick.
func (c *Collector) Flush(currentTick int32, agents []systems.AgentState, neighborCounts []int) WindowStats {
	var (
		speeds     []float64
		neighbors  []float64
		positions  []r3.Vec
		velocities []r3.Vec
		predators  int
	)
	for i, a := range agents {
		if a.IsPredator() {
			predators++
			continue
		}
		speeds = append(speeds, r3.Norm(a.Vel))
		positions = append(positions, a.Pos)
		velocities = append(velocities, a.Vel)
		if i < len(neighborCounts) {
			neighbors = append(neighbors, float64(neighborCounts[i]))
		}
	}

	mean, std, p10, p50, p90 := ComputeDistribution(speeds)
	shape := ComputeFlockShape(positions, velocities)

	var meanNeighbors float64
	if len(neighbors) > 0 {
		meanNeighbors = stat.Mean(neighbors, nil)
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		BoidCount:     len(agents) - predators,
		PredatorCount: predators,

		SpeedMean: mean,
		SpeedStd:  std,
		SpeedP10:  p10,
		SpeedP50:  p50,
		SpeedP90:  p90,

		Polarization:    shape.Polarization,
		MeanNeighbors:   meanNeighbors,
		NearestNeighbor: shape.NearestNeighbor,
		Spread:          shape.Spread,

		ObstacleDeviations: c.obstacleDeviations,
		BlockedProbes:      c.blockedProbes,
		WanderImpulses:     c.wanderImpulses,
		PredatorEncounters: c.predatorEncounters,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.obstacleDeviations = 0
	c.blockedProbes = 0
	c.wanderImpulses = 0
	c.predatorEncounters = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
