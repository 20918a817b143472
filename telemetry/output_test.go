package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestOutputManager(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}

	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := om.WriteTelemetry(WindowStats{WindowEndTick: int32(i * 250), BoidCount: 10}); err != nil {
			t.Fatalf("WriteTelemetry failed: %v", err)
		}
	}
	perf := PerfStats{AvgTickDuration: time.Millisecond, PhasePct: map[string]float64{PhaseBehavior: 80}}
	if err := om.WritePerf(perf, 250); err != nil {
		t.Fatalf("WritePerf failed: %v", err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkSpreadSpike, Tick: 500, Description: "spike"}); err != nil {
		t.Fatalf("WriteBookmark failed: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	telemetryLines := readLines(t, filepath.Join(dir, "telemetry.csv"))
	if len(telemetryLines) != 4 {
		t.Errorf("telemetry.csv has %d lines, want header + 3", len(telemetryLines))
	}
	if !strings.HasPrefix(telemetryLines[0], "window_end,sim_time,boids") {
		t.Errorf("telemetry header = %q", telemetryLines[0])
	}

	perfLines := readLines(t, filepath.Join(dir, "perf.csv"))
	if len(perfLines) != 2 || !strings.Contains(perfLines[0], "behavior_pct") {
		t.Errorf("perf.csv = %v", perfLines)
	}

	bookmarkLines := readLines(t, filepath.Join(dir, "bookmarks.csv"))
	if len(bookmarkLines) != 2 || !strings.HasPrefix(bookmarkLines[1], "spread_spike,500") {
		t.Errorf("bookmarks.csv = %v", bookmarkLines)
	}

	loaded, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("config.yaml does not load: %v", err)
	}
	if loaded.Population.Agents != config.Default().Population.Agents {
		t.Errorf("config.yaml agents = %d", loaded.Population.Agents)
	}
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	// Nil manager accepts writes
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestTrajectoryRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectory.csv")
	rec, err := NewTrajectoryRecorder(path, 2)
	if err != nil {
		t.Fatalf("NewTrajectoryRecorder failed: %v", err)
	}

	a := rec.Spawn(r3.Vec{X: 1}, components.KindPredator)
	b := rec.Spawn(r3.Vec{X: 2}, components.KindBoid)
	if a == b {
		t.Fatal("handles should be distinct")
	}

	for tick := int32(1); tick <= 4; tick++ {
		rec.Update(a, r3.Vec{X: float64(tick)}, r3.Vec{Z: 1})
		rec.Update(b, r3.Vec{Y: float64(tick)}, r3.Vec{Z: 2})
		if err := rec.EndTick(tick); err != nil {
			t.Fatalf("EndTick failed: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, path)
	// header + 2 frames of 2 agents
	if len(lines) != 5 {
		t.Fatalf("trajectory has %d lines, want 5: %v", len(lines), lines)
	}
	if lines[0] != "tick,id,kind,x,y,z,vx,vy,vz" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2,0,predator,2,") {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[4], "4,1,boid,0,4,") {
		t.Errorf("last row = %q", lines[4])
	}
}
