package sim

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/flock/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	// The snapshot buffer still holds the pre-tick state; flush on the
	// committed state instead.
	agents := s.Agents()
	neighborCounts := make([]int, len(s.parallel.intents))
	for i := range s.parallel.intents {
		neighborCounts[i] = s.parallel.intents[i].Neighbors
	}

	stats := s.collector.Flush(s.tick, agents, neighborCounts)
	perfStats := s.perf.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	if s.logStats {
		stats.LogStats(s.logger)
		perfStats.LogStats(s.logger)
	}

	if err := s.output.WriteTelemetry(stats); err != nil {
		s.logger.Error("failed to write telemetry", "error", err)
	}
	if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		s.logger.Error("failed to write perf", "error", err)
	}
	if err := s.archive.RecordWindow(s.runID, stats); err != nil {
		s.logger.Error("failed to archive window", "error", err)
	}

	for _, bm := range s.bookmarks.Check(stats) {
		if s.logStats {
			bm.LogBookmark(s.logger)
		}
		if err := s.output.WriteBookmark(bm); err != nil {
			s.logger.Error("failed to write bookmark", "error", err)
		}
		if s.snapshotDir != "" {
			s.saveSnapshot(&bm)
		}
	}
}

// saveSnapshot creates and saves a snapshot to disk.
func (s *Simulation) saveSnapshot(bookmark *telemetry.Bookmark) {
	path, err := telemetry.SaveSnapshot(s.Snapshot(bookmark), s.snapshotDir)
	if err != nil {
		s.logger.Error("failed to save snapshot", "error", err)
		return
	}
	s.logger.Info("snapshot saved", "path", path, "tick", s.tick)
}

// Snapshot builds a snapshot of the current state.
func (s *Simulation) Snapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version:      telemetry.SnapshotVersion,
		RunID:        s.runID,
		Seed:         s.seed,
		Bounds:       s.cfg.Bounds.Size,
		Tick:         s.tick,
		WanderActive: s.wander.Active(),
		Bookmark:     bookmark,
		Agents:       make([]telemetry.AgentRecord, 0, len(s.entities)),
	}

	query := s.filter.Query()
	for query.Next() {
		pos, vel, boid := query.Get()
		snapshot.Agents = append(snapshot.Agents, telemetry.AgentRecord{
			ID:   boid.ID,
			Kind: boid.Role.Kind(),
			X:    pos.X,
			Y:    pos.Y,
			Z:    pos.Z,
			VX:   vel.X,
			VY:   vel.Y,
			VZ:   vel.Z,
		})
	}
	slices.SortFunc(snapshot.Agents, func(a, b telemetry.AgentRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return snapshot
}
