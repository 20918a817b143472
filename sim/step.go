package sim

import (
	"context"

	"github.com/pthm-cable/flock/telemetry"
)

// Step advances the simulation by one tick. Every agent reads the state of
// the previous tick; all updates commit together in the apply phase.
func (s *Simulation) Step() {
	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseWander)
	wanderActive := s.wander.Active()

	s.perf.StartPhase(telemetry.PhaseSnapshot)
	s.takeSnapshot(wanderActive)

	s.perf.StartPhase(telemetry.PhaseSpatialGrid)
	if s.grid != nil {
		s.grid.Rebuild(s.parallel.snapshots)
	}

	s.perf.StartPhase(telemetry.PhaseBehavior)
	s.computeIntents()

	s.perf.StartPhase(telemetry.PhaseApply)
	s.applyIntents()

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	if wanderActive {
		s.collector.RecordWanderImpulse()
	}
	s.wander.Advance()
	s.tick++

	if sink, ok := s.visual.(FrameSink); ok {
		if err := sink.EndTick(s.tick); err != nil {
			s.logger.Error("failed to end visual frame", "tick", s.tick, "error", err)
		}
	}
	s.flushTelemetry()
	if s.snapshotDir != "" && s.snapshotEvery > 0 && int(s.tick)%s.snapshotEvery == 0 {
		s.saveSnapshot(nil)
	}

	s.perf.EndTick()
}

// Run steps until maxTicks ticks have completed or ctx is cancelled.
// maxTicks <= 0 runs until cancellation.
func (s *Simulation) Run(ctx context.Context, maxTicks int32) error {
	for maxTicks <= 0 || s.tick < maxTicks {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation stopped", "tick", s.tick, "reason", ctx.Err())
			return ctx.Err()
		default:
		}
		s.Step()
	}
	s.logger.Info("simulation finished", "tick", s.tick)
	return nil
}
