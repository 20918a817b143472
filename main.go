package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/sim"
	"github.com/pthm-cable/flock/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml or config.toml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	workers := flag.Int("workers", -1, "Behavior workers (-1 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	snapshotEvery := flag.Int("snapshot-every", 0, "Save a snapshot every N ticks (0 = bookmarks only)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	archivePath := flag.String("archive", "", "SQLite database that archives run windows")
	trajectoryPath := flag.String("trajectory", "", "CSV file for per-agent trajectories")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = until interrupted)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg().Clone()

	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}
	if *workers >= 0 {
		cfg.Physics.Workers = *workers
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	opts := sim.Options{
		Config:        cfg,
		Seed:          rngSeed,
		Logger:        logger,
		LogStats:      *logStats,
		OutputDir:     *outputDir,
		ArchiveDB:     *archivePath,
		SnapshotDir:   *snapshotDir,
		SnapshotEvery: *snapshotEvery,
	}

	if *trajectoryPath != "" {
		rec, err := telemetry.NewTrajectoryRecorder(*trajectoryPath, cfg.Telemetry.TrajectoryEvery)
		if err != nil {
			logger.Error("failed to open trajectory file", "error", err)
			os.Exit(1)
		}
		defer rec.Close()
		opts.Visual = rec
	}

	s, err := sim.New(opts)
	if err != nil {
		logger.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting simulation",
		"seed", rngSeed,
		"agents", cfg.Population.Agents,
		"max_ticks", *maxTicks,
	)

	if err := s.Run(ctx, int32(*maxTicks)); err != nil && ctx.Err() == nil {
		logger.Error("simulation failed", "error", err)
	}
}
