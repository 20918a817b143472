package telemetry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/systems"
)

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(1.0, 0.02)

	if c.WindowDurationTicks() != 50 {
		t.Fatalf("WindowDurationTicks = %d, want 50", c.WindowDurationTicks())
	}
	if c.ShouldFlush(49) {
		t.Error("should not flush before the window ends")
	}
	if !c.ShouldFlush(50) {
		t.Error("should flush at the window end")
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(1.0, 0.02)
	f := components.Factors{Coherence: 1}

	agents := []systems.AgentState{
		{Pos: r3.Vec{X: 10}, Vel: r3.Vec{Z: 9}, Role: components.PredatorRole(f)},
		{Pos: r3.Vec{X: -1}, Vel: r3.Vec{Z: 2}, Role: components.NormalRole(f)},
		{Pos: r3.Vec{X: 1}, Vel: r3.Vec{Z: 4}, Role: components.NormalRole(f)},
	}
	neighbors := []int{7, 1, 3}

	c.RecordDeviation()
	c.RecordDeviation()
	c.RecordBlockedProbe()
	c.RecordWanderImpulse()
	c.RecordPredatorEncounter(2)

	stats := c.Flush(50, agents, neighbors)

	if stats.WindowStartTick != 0 || stats.WindowEndTick != 50 {
		t.Errorf("window = [%d, %d], want [0, 50]", stats.WindowStartTick, stats.WindowEndTick)
	}
	if math.Abs(stats.SimTimeSec-1.0) > 1e-9 {
		t.Errorf("SimTimeSec = %v, want 1", stats.SimTimeSec)
	}
	if stats.BoidCount != 2 || stats.PredatorCount != 1 {
		t.Errorf("counts = %d boids %d predators, want 2 1", stats.BoidCount, stats.PredatorCount)
	}
	// Predators are excluded from boid statistics
	if math.Abs(stats.SpeedMean-3) > 1e-9 {
		t.Errorf("SpeedMean = %v, want 3", stats.SpeedMean)
	}
	if math.Abs(stats.MeanNeighbors-2) > 1e-9 {
		t.Errorf("MeanNeighbors = %v, want 2", stats.MeanNeighbors)
	}
	if math.Abs(stats.Polarization-1) > 1e-9 {
		t.Errorf("Polarization = %v, want 1", stats.Polarization)
	}
	if math.Abs(stats.NearestNeighbor-2) > 1e-9 {
		t.Errorf("NearestNeighbor = %v, want 2", stats.NearestNeighbor)
	}
	if stats.ObstacleDeviations != 2 || stats.BlockedProbes != 1 ||
		stats.WanderImpulses != 1 || stats.PredatorEncounters != 2 {
		t.Errorf("event counters = %+v", stats)
	}

	// Counters reset for the next window
	next := c.Flush(100, agents, neighbors)
	if next.WindowStartTick != 50 {
		t.Errorf("next WindowStartTick = %d, want 50", next.WindowStartTick)
	}
	if next.ObstacleDeviations != 0 || next.BlockedProbes != 0 ||
		next.WanderImpulses != 0 || next.PredatorEncounters != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}
