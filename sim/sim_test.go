package sim

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns the defaults with a small population.
func testConfig(t *testing.T, agents int) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Population.Agents = agents
	cfg.Population.Predators = min(cfg.Population.Predators, agents)
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return cfg
}

func newTestSim(t *testing.T, opts Options) *Simulation {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sameAgents(t *testing.T, a, b []systems.AgentState) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("agent count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Pos != b[i].Pos || a[i].Vel != b[i].Vel {
			t.Fatalf("agent %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestNewSpawnsPopulation(t *testing.T) {
	cfg := testConfig(t, 50)
	cfg.Population.Predators = 4
	s := newTestSim(t, Options{Config: cfg, Seed: 3})

	agents := s.Agents()
	if len(agents) != 50 {
		t.Fatalf("got %d agents, want 50", len(agents))
	}

	inset := cfg.Derived.InsetHalfBounds
	predators := 0
	for i, a := range agents {
		if math.Abs(a.Pos.X) > inset[0] || math.Abs(a.Pos.Y) > inset[1] || math.Abs(a.Pos.Z) > inset[2] {
			t.Errorf("agent %d spawned outside the inset box: %v", i, a.Pos)
		}
		if math.Abs(r3.Norm(a.Vel)-cfg.Boid.Speed) > 1e-9 {
			t.Errorf("agent %d spawn speed = %v, want %v", i, r3.Norm(a.Vel), cfg.Boid.Speed)
		}
		if a.IsPredator() {
			predators++
			if i >= 4 {
				t.Errorf("agent %d is a predator, want only the first 4", i)
			}
			if f := a.Role.Factors(); f.Align != 0 || f.Avoid != 0 {
				t.Errorf("predator factors = %+v, want zero align and avoid", f)
			}
		}
	}
	if predators != 4 {
		t.Errorf("got %d predators, want 4", predators)
	}
	if s.RunID() == "" {
		t.Error("RunID should be set")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Population.Agents = 0
	if _, err := New(Options{Config: cfg, Logger: quietLogger()}); err == nil {
		t.Error("expected error for empty population")
	}

	cfg = config.Default()
	cfg.Obstacles.Kind = "lava"
	if _, err := New(Options{Config: cfg, Logger: quietLogger()}); err == nil {
		t.Error("expected error for unknown obstacle kind")
	}
}

func TestStepThreeInLine(t *testing.T) {
	cfg := testConfig(t, 3)
	cfg.Population.Predators = 0
	cfg.Bounds.Size = [3]float64{200, 200, 200}
	cfg.Neighbors.Mode = config.NeighborModeBrute
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	role := components.NormalRole(components.Factors{
		Coherence: cfg.Factors.Coherence,
		Align:     cfg.Factors.Align,
		Avoid:     cfg.Factors.Avoid,
		Collide:   cfg.Factors.Collide,
		Random:    cfg.Factors.Random,
	})
	initial := []systems.AgentState{
		{Pos: r3.Vec{X: -1}, Role: role},
		{Pos: r3.Vec{}, Role: role},
		{Pos: r3.Vec{X: 1}, Role: role},
	}

	s := newTestSim(t, Options{Config: cfg, Seed: 1, Initial: initial})

	// The middle agent is balanced: only wander moves it.
	sums := systems.Aggregate(1, initial, s.params)
	if sums.Count != 2 {
		t.Fatalf("middle agent senses %d neighbors, want 2", sums.Count)
	}
	if terms := systems.Terms(initial[1], sums); terms.CenterMass != (r3.Vec{}) || terms.Away != (r3.Vec{}) {
		t.Fatalf("middle agent terms = %+v, want zero", terms)
	}

	if !s.WanderActive() {
		t.Fatal("wander should be active on the first tick")
	}
	s.Step()

	agents := s.Agents()
	for i, a := range agents {
		if math.Abs(r3.Norm(a.Vel)-cfg.Boid.Speed) > 1e-9 {
			t.Errorf("agent %d speed = %v, want %v", i, r3.Norm(a.Vel), cfg.Boid.Speed)
		}
	}

	mid := agents[1]
	if math.Abs(r3.Norm(mid.Pos)-cfg.Boid.Speed*cfg.Physics.DT) > 1e-9 {
		t.Errorf("middle agent moved %v, want %v", r3.Norm(mid.Pos), cfg.Boid.Speed*cfg.Physics.DT)
	}
	dir := systems.SafeUnit(mid.Vel)
	found := false
	for i := 0; i < s.Points().Len(); i++ {
		if r3.Norm(r3.Sub(dir, s.Points().Unit(i))) < 1e-9 {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("middle agent heading %v is not a sphere sample", dir)
	}
	if s.WanderActive() {
		t.Error("wander should be dormant after one tick")
	}
	if s.Tick() != 1 {
		t.Errorf("Tick = %d, want 1", s.Tick())
	}
}

func TestStepReadsPreviousTick(t *testing.T) {
	cfg := testConfig(t, 120)
	cfg.Factors.Random = 0
	cfg.Predator.Random = 0
	cfg.Neighbors.Mode = config.NeighborModeBrute
	cfg.Boid.VisionRadius = 12
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	s := newTestSim(t, Options{Config: cfg, Seed: 11})

	before := s.Agents()
	want := make([]systems.AgentState, len(before))
	for i, self := range before {
		sums := systems.Aggregate(i, before, s.params)
		probe := s.prober.Probe(self.Pos, self.Vel)
		accel := systems.Blend(self, sums, probe.Deviation, systems.Wander{})
		pos, vel := s.motion.Integrate(self.Pos, self.Vel, accel)
		want[i] = systems.AgentState{Pos: s.bounds.Apply(pos), Vel: vel, Role: self.Role}
	}

	s.Step()
	sameAgents(t, s.Agents(), want)
}

func TestSerialAndParallelMatch(t *testing.T) {
	serialCfg := testConfig(t, 300)
	parallelCfg := serialCfg.Clone()
	parallelCfg.Physics.Workers = 4
	if err := parallelCfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	serial := newTestSim(t, Options{Config: serialCfg, Seed: 42})
	parallel := newTestSim(t, Options{Config: parallelCfg, Seed: 42})

	for i := 0; i < 30; i++ {
		serial.Step()
		parallel.Step()
	}
	if !parallel.parallel.running {
		t.Error("parallel simulation never started its workers")
	}
	sameAgents(t, serial.Agents(), parallel.Agents())
}

func TestGridMatchesBruteForceRun(t *testing.T) {
	gridCfg := testConfig(t, 200)
	bruteCfg := gridCfg.Clone()
	bruteCfg.Neighbors.Mode = config.NeighborModeBrute
	if err := bruteCfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	grid := newTestSim(t, Options{Config: gridCfg, Seed: 5})
	brute := newTestSim(t, Options{Config: bruteCfg, Seed: 5})

	for i := 0; i < 25; i++ {
		grid.Step()
		brute.Step()
	}
	sameAgents(t, grid.Agents(), brute.Agents())
}

func TestDeterministicBySeed(t *testing.T) {
	cfg := testConfig(t, 80)

	a := newTestSim(t, Options{Config: cfg.Clone(), Seed: 9})
	b := newTestSim(t, Options{Config: cfg.Clone(), Seed: 9})
	c := newTestSim(t, Options{Config: cfg.Clone(), Seed: 10})

	for i := 0; i < 20; i++ {
		a.Step()
		b.Step()
		c.Step()
	}
	sameAgents(t, a.Agents(), b.Agents())

	if a.Agents()[0].Pos == c.Agents()[0].Pos {
		t.Error("different seeds should give different runs")
	}
}

func TestWanderCycle(t *testing.T) {
	cfg := testConfig(t, 10)
	cfg.Wander.DormancyDuration = 0.1 // 5 ticks at dt 0.02
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	s := newTestSim(t, Options{Config: cfg, Seed: 1})

	for tick := 0; tick < 20; tick++ {
		want := tick%6 == 0
		if got := s.WanderActive(); got != want {
			t.Errorf("tick %d: WanderActive = %v, want %v", tick, got, want)
		}
		s.Step()
	}
}

func TestSpeedStaysNearCruise(t *testing.T) {
	cfg := testConfig(t, 150)
	s := newTestSim(t, Options{Config: cfg, Seed: 2})

	for i := 0; i < 100; i++ {
		s.Step()
	}
	for i, a := range s.Agents() {
		v := r3.Norm(a.Vel)
		if math.IsNaN(v) || math.IsNaN(a.Pos.X) {
			t.Fatalf("agent %d has NaN state: %+v", i, a)
		}
		// Overspeed bleeds by inert·dt per tick, which can land just under cruise
		floor := cfg.Boid.Speed - cfg.Boid.InertFactor*cfg.Physics.DT
		if v < floor-1e-9 {
			t.Errorf("agent %d speed %v below %v", i, v, floor)
		}
	}
}

func TestAgentsStayInBox(t *testing.T) {
	cfg := testConfig(t, 100)
	cfg.Bounds.Size = [3]float64{20, 20, 20}
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	s := newTestSim(t, Options{Config: cfg, Seed: 8})

	half := cfg.Derived.HalfBounds
	for i := 0; i < 200; i++ {
		s.Step()
		for j, a := range s.Agents() {
			if math.Abs(a.Pos.X) > half[0] || math.Abs(a.Pos.Y) > half[1] || math.Abs(a.Pos.Z) > half[2] {
				t.Fatalf("tick %d: agent %d escaped to %v", s.Tick(), j, a.Pos)
			}
		}
	}
}

// recordingVisual counts spawns and updates, and frames via FrameSink.
type recordingVisual struct {
	spawned map[components.Kind]int
	updates int
	frames  []int32
}

func (v *recordingVisual) Spawn(_ r3.Vec, kind components.Kind) components.VisualHandle {
	if v.spawned == nil {
		v.spawned = make(map[components.Kind]int)
	}
	v.spawned[kind]++
	return components.VisualHandle(len(v.spawned))
}

func (v *recordingVisual) Update(components.VisualHandle, r3.Vec, r3.Vec) { v.updates++ }

func (v *recordingVisual) EndTick(tick int32) error {
	v.frames = append(v.frames, tick)
	return nil
}

func TestVisualHooks(t *testing.T) {
	cfg := testConfig(t, 12)
	cfg.Population.Predators = 2
	vis := &recordingVisual{}
	s := newTestSim(t, Options{Config: cfg, Seed: 4, Visual: vis})

	if vis.spawned[components.KindBoid] != 10 || vis.spawned[components.KindPredator] != 2 {
		t.Errorf("spawned = %v, want 10 boids and 2 predators", vis.spawned)
	}
	for i := 0; i < 3; i++ {
		s.Step()
	}
	if vis.updates != 36 {
		t.Errorf("updates = %d, want 36", vis.updates)
	}
	if len(vis.frames) != 3 || vis.frames[2] != 3 {
		t.Errorf("frames = %v, want [1 2 3]", vis.frames)
	}
}

func TestRunStopsAtMaxTicks(t *testing.T) {
	s := newTestSim(t, Options{Config: testConfig(t, 20), Seed: 1})
	if err := s.Run(context.Background(), 15); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if s.Tick() != 15 {
		t.Errorf("Tick = %d, want 15", s.Tick())
	}
}

func TestRunHonorsCancel(t *testing.T) {
	s := newTestSim(t, Options{Config: testConfig(t, 20), Seed: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx, 0); err != context.Canceled {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if s.Tick() != 0 {
		t.Errorf("Tick = %d, want 0", s.Tick())
	}
}

func TestTelemetryWiring(t *testing.T) {
	cfg := testConfig(t, 40)
	cfg.Telemetry.StatsWindow = 0.2 // 10 ticks
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	snapDir := filepath.Join(dir, "snapshots")
	dbPath := filepath.Join(dir, "runs.db")

	var windows []telemetry.WindowStats
	s := newTestSim(t, Options{
		Config:        cfg,
		Seed:          6,
		OutputDir:     outDir,
		ArchiveDB:     dbPath,
		SnapshotDir:   snapDir,
		SnapshotEvery: 25,
		StatsCallback: func(w telemetry.WindowStats) { windows = append(windows, w) },
	})

	for i := 0; i < 50; i++ {
		s.Step()
	}
	runID := s.RunID()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(windows) != 5 {
		t.Fatalf("got %d windows, want 5", len(windows))
	}
	last := windows[len(windows)-1]
	if last.WindowEndTick != 50 || last.BoidCount+last.PredatorCount != 40 {
		t.Errorf("last window = %+v", last)
	}
	total := 0
	for _, w := range windows {
		total += w.WanderImpulses
	}
	if total == 0 {
		t.Error("no wander impulses recorded")
	}

	data, err := os.ReadFile(filepath.Join(outDir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 6 {
		t.Errorf("telemetry.csv has %d lines, want header + 5", len(lines))
	}

	archive, err := telemetry.OpenArchive(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()
	archived, err := archive.Windows(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 5 {
		t.Errorf("archived %d windows, want 5", len(archived))
	}

	for _, tick := range []int{25, 50} {
		snap, err := telemetry.LoadSnapshot(filepath.Join(snapDir, telemetry.SnapshotName(&telemetry.Snapshot{Tick: int32(tick)})))
		if err != nil {
			t.Fatalf("periodic snapshot at tick %d: %v", tick, err)
		}
		if len(snap.Agents) != 40 || snap.RunID != runID {
			t.Errorf("snapshot %d: %d agents, run %q", tick, len(snap.Agents), snap.RunID)
		}
	}
}

func TestSnapshotMatchesAgents(t *testing.T) {
	cfg := testConfig(t, 30)
	cfg.Population.Predators = 3
	s := newTestSim(t, Options{Config: cfg, Seed: 12})
	for i := 0; i < 5; i++ {
		s.Step()
	}

	snap := s.Snapshot(nil)
	agents := s.Agents()
	if snap.Tick != 5 || len(snap.Agents) != len(agents) {
		t.Fatalf("snapshot tick %d with %d agents", snap.Tick, len(snap.Agents))
	}
	for i, rec := range snap.Agents {
		if rec.ID != uint32(i) {
			t.Errorf("record %d has ID %d", i, rec.ID)
		}
		if (r3.Vec{X: rec.X, Y: rec.Y, Z: rec.Z}) != agents[i].Pos {
			t.Errorf("record %d position mismatch", i)
		}
		wantKind := components.KindBoid
		if i < 3 {
			wantKind = components.KindPredator
		}
		if rec.Kind != wantKind {
			t.Errorf("record %d kind = %v, want %v", i, rec.Kind, wantKind)
		}
	}
}
