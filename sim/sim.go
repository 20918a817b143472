// Package sim hosts the flock: it owns the agents, runs fixed ticks and
// feeds telemetry.
package sim

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/sphere"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

// Visual is the host's rendering layer. Spawn is called once per agent at
// startup; Update is called once per agent per tick after the tick commits.
type Visual interface {
	Spawn(pos r3.Vec, kind components.Kind) components.VisualHandle
	Update(h components.VisualHandle, pos, vel r3.Vec)
}

// FrameSink is implemented by visuals that batch updates per tick.
type FrameSink interface {
	EndTick(tick int32) error
}

// NopVisual discards every update.
type NopVisual struct{}

// Spawn implements Visual.
func (NopVisual) Spawn(r3.Vec, components.Kind) components.VisualHandle { return 0 }

// Update implements Visual.
func (NopVisual) Update(components.VisualHandle, r3.Vec, r3.Vec) {}

// Options configures a Simulation.
type Options struct {
	Config  *config.Config     // nil = embedded defaults
	Seed    int64              // RNG seed for spawning and wander sampling
	Blocker systems.RayBlocker // nil = built from Config.Obstacles
	Visual  Visual             // nil = NopVisual
	Logger  *slog.Logger       // nil = slog.Default()

	// Initial replaces the random starting population when non-empty.
	Initial []systems.AgentState

	StatsCallback func(telemetry.WindowStats)
	LogStats      bool

	OutputDir     string // CSV telemetry, empty = disabled
	ArchiveDB     string // SQLite run archive, empty = disabled
	SnapshotDir   string // compressed snapshots, empty = disabled
	SnapshotEvery int    // ticks between periodic snapshots, 0 = bookmarks only
}

// Simulation holds the complete flock state.
type Simulation struct {
	cfg    *config.Config
	logger *slog.Logger
	rng    *rand.Rand
	seed   int64

	world    *ecs.World
	mapper   *ecs.Map3[components.Position, components.Velocity, components.Boid]
	filter   *ecs.Filter3[components.Position, components.Velocity, components.Boid]
	entities []ecs.Entity // spawn order, which is also snapshot order
	nextID   uint32

	points    sphere.Points
	prober    *systems.ObstacleProber
	neighbors systems.NeighborSource
	grid      *systems.SpatialGrid // nil in brute-force mode
	params    systems.NeighborParams
	motion    systems.Motion
	bounds    systems.Bounds
	wander    *systems.WanderScheduler
	visual    Visual

	parallel *parallelState

	tick int32

	// Telemetry
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	bookmarks     *telemetry.BookmarkDetector
	output        *telemetry.OutputManager
	archive       *telemetry.Archive
	runID         string
	statsCallback func(telemetry.WindowStats)
	logStats      bool
	snapshotDir   string
	snapshotEvery int
}

// New validates the configuration and builds a simulation with its
// starting population.
func New(opts Options) (*Simulation, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	blocker := opts.Blocker
	if blocker == nil {
		b, err := systems.NewBlocker(cfg.Obstacles)
		if err != nil {
			return nil, fmt.Errorf("building obstacles: %w", err)
		}
		blocker = b
	}

	visual := opts.Visual
	if visual == nil {
		visual = NopVisual{}
	}

	d := cfg.Derived
	half := r3.Vec{X: d.HalfBounds[0], Y: d.HalfBounds[1], Z: d.HalfBounds[2]}
	inset := r3.Vec{X: d.InsetHalfBounds[0], Y: d.InsetHalfBounds[1], Z: d.InsetHalfBounds[2]}

	world := ecs.NewWorld()
	points := sphere.Generate(cfg.Sphere.SampleCount, cfg.Boid.VisionRadius, d.StepAngle)

	s := &Simulation{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		seed:   opts.Seed,
		world:  world,
		mapper: ecs.NewMap3[components.Position, components.Velocity, components.Boid](world),
		filter: ecs.NewFilter3[components.Position, components.Velocity, components.Boid](world),
		points: points,
		prober: systems.NewObstacleProber(points, blocker, inset, cfg.Boid.VisionRadius),
		params: systems.NeighborParams{
			VisionRadius:   cfg.Boid.VisionRadius,
			VisionAngleDeg: cfg.Boid.VisionAngleDeg,
			EscapeFactor:   cfg.Boid.EscapeFactor,
			Fallback:       d.Fallback,
		},
		motion: systems.Motion{
			Speed: cfg.Boid.Speed,
			Inert: cfg.Boid.InertFactor,
			DT:    cfg.Physics.DT,
		},
		bounds:        systems.Bounds{Half: half, Wrap: cfg.Bounds.Wrap},
		wander:        systems.NewWanderScheduler(d.DormancyTicks),
		visual:        visual,
		parallel:      newParallelState(cfg.Physics.Workers),
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Physics.DT),
		perf:          telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		bookmarks:     telemetry.NewBookmarkDetector(cfg.Telemetry.HistorySize, cfg.Bookmarks),
		statsCallback: opts.StatsCallback,
		logStats:      opts.LogStats,
		snapshotDir:   opts.SnapshotDir,
		snapshotEvery: opts.SnapshotEvery,
	}

	if cfg.Neighbors.Mode == config.NeighborModeGrid {
		s.grid = systems.NewSpatialGrid(half, d.CellSize)
		s.neighbors = s.grid
	} else {
		s.neighbors = systems.BruteForce{}
	}

	if err := s.openOutputs(opts); err != nil {
		s.Close()
		return nil, err
	}

	if len(opts.Initial) > 0 {
		for _, a := range opts.Initial {
			s.spawnAgent(a.Pos, a.Vel, a.Role)
		}
	} else {
		s.spawnInitialPopulation()
	}

	logger.Info("simulation initialized",
		"run_id", s.runID,
		"seed", s.seed,
		"agents", len(s.entities),
		"predators", cfg.Population.Predators,
		"neighbors", cfg.Neighbors.Mode,
		"obstacles", cfg.Obstacles.Kind,
		"workers", s.parallel.numWorkers,
	)

	return s, nil
}

// openOutputs sets up the optional CSV output and run archive.
func (s *Simulation) openOutputs(opts Options) error {
	cfgYAML, err := s.cfg.YAML()
	if err != nil {
		return err
	}
	run := telemetry.NewRun(s.seed, cfgYAML)
	s.runID = run.ID

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return err
	}
	s.output = output
	if err := s.output.WriteConfig(s.cfg); err != nil {
		return fmt.Errorf("writing config copy: %w", err)
	}

	if opts.ArchiveDB != "" {
		archive, err := telemetry.OpenArchive(opts.ArchiveDB)
		if err != nil {
			return err
		}
		s.archive = archive
		if err := s.archive.StartRun(run); err != nil {
			return err
		}
	}

	return nil
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int32 { return s.tick }

// Config returns the active configuration.
func (s *Simulation) Config() *config.Config { return s.cfg }

// RunID returns the unique ID of this run.
func (s *Simulation) RunID() string { return s.runID }

// WanderActive reports whether wander noise applies on the next tick.
func (s *Simulation) WanderActive() bool { return s.wander.Active() }

// Points returns the sphere sample set.
func (s *Simulation) Points() sphere.Points { return s.points }

// Agents returns a copy of every agent's current state, in spawn order.
func (s *Simulation) Agents() []systems.AgentState {
	agents := make([]systems.AgentState, len(s.entities))
	for i, e := range s.entities {
		pos, vel, boid := s.mapper.Get(e)
		agents[i] = systems.AgentState{Pos: pos.Vec(), Vel: vel.Vec(), Role: boid.Role}
	}
	return agents
}

// Close stops the worker pool and closes every output.
func (s *Simulation) Close() error {
	s.parallel.stopWorkers()

	var firstErr error
	if err := s.output.Close(); err != nil {
		firstErr = err
	}
	if err := s.archive.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
