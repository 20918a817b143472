package telemetry

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
)

// TrajectoryRow is one agent in one recorded frame.
type TrajectoryRow struct {
	Tick int32   `csv:"tick"`
	ID   uint64  `csv:"id"`
	Kind string  `csv:"kind"`
	X    float64 `csv:"x"`
	Y    float64 `csv:"y"`
	Z    float64 `csv:"z"`
	VX   float64 `csv:"vx"`
	VY   float64 `csv:"vy"`
	VZ   float64 `csv:"vz"`
}

// TrajectoryRecorder stands in for the rendering layer: it takes avatar
// updates and writes every Nth frame to a CSV file.
type TrajectoryRecorder struct {
	file          *os.File
	every         int32
	rows          []TrajectoryRow
	headerWritten bool
}

// NewTrajectoryRecorder creates path and records one frame every `every` ticks.
func NewTrajectoryRecorder(path string, every int) (*TrajectoryRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trajectory file: %w", err)
	}
	return &TrajectoryRecorder{file: f, every: int32(max(1, every))}, nil
}

// Spawn registers an avatar and returns its handle.
func (r *TrajectoryRecorder) Spawn(pos r3.Vec, kind components.Kind) components.VisualHandle {
	h := components.VisualHandle(len(r.rows))
	r.rows = append(r.rows, TrajectoryRow{
		ID:   uint64(h),
		Kind: kind.String(),
		X:    pos.X,
		Y:    pos.Y,
		Z:    pos.Z,
	})
	return h
}

// Update moves an avatar.
func (r *TrajectoryRecorder) Update(h components.VisualHandle, pos, vel r3.Vec) {
	if int(h) >= len(r.rows) {
		return
	}
	row := &r.rows[h]
	row.X, row.Y, row.Z = pos.X, pos.Y, pos.Z
	row.VX, row.VY, row.VZ = vel.X, vel.Y, vel.Z
}

// EndTick writes the current frame if tick is a recorded one.
func (r *TrajectoryRecorder) EndTick(tick int32) error {
	if tick%r.every != 0 || len(r.rows) == 0 {
		return nil
	}
	for i := range r.rows {
		r.rows[i].Tick = tick
	}
	if err := writeRecords(r.file, &r.headerWritten, r.rows); err != nil {
		return fmt.Errorf("writing trajectory: %w", err)
	}
	return nil
}

// Close closes the trajectory file.
func (r *TrajectoryRecorder) Close() error {
	return r.file.Close()
}
