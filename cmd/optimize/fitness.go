package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/sim"
	"github.com/pthm-cable/flock/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int32
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestWindows []telemetry.WindowStats
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 2.0,
		bestFitness: math.Inf(1),
	}
}

// BestWindows returns the window stats of the best seed of the best evaluation.
func (fe *FitnessEvaluator) BestWindows() []telemetry.WindowStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestWindows
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	quality float64
	windows []telemetry.WindowStats
	err     error
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean flock quality over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(x, s)
			results[idx] = seedResult{
				quality: fe.computeQuality(windows),
				windows: windows,
				err:     err,
			}
		}(i, seed)
	}
	wg.Wait()

	var totalQuality float64
	bestSeed := -1
	for i, r := range results {
		if r.err != nil {
			slog.Warn("evaluation run failed", "seed", fe.seeds[i], "error", r.err)
			continue
		}
		totalQuality += r.quality
		if bestSeed < 0 || r.quality > results[bestSeed].quality {
			bestSeed = i
		}
	}

	avgQuality := totalQuality / float64(len(fe.seeds))
	fitness := -avgQuality

	fe.mu.Lock()
	if fitness < fe.bestFitness && bestSeed >= 0 {
		fe.bestFitness = fitness
		fe.bestWindows = results[bestSeed].windows
	}
	fe.lastQuality = avgQuality
	fe.mu.Unlock()

	return fitness
}

// runSimulation executes a single headless simulation run and returns its
// window stats.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.WindowStats, error) {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Telemetry.StatsWindow = fe.statsWindow
	cfg.Physics.Workers = 1 // seeds already run in parallel

	var windows []telemetry.WindowStats
	s, err := sim.New(sim.Options{
		Config: cfg,
		Seed:   seed,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for s.Tick() < fe.maxTicks {
		s.Step()
	}
	return windows, nil
}

// Quality targets and component weights.
const (
	targetPolarization = 0.85
	targetSpacingRatio = 0.4 // nearest neighbor distance as a fraction of vision radius

	qualityWeightPolarization = 0.35
	qualityWeightSpacing      = 0.30
	qualityWeightStability    = 0.20
	qualityWeightClearance    = 0.15

	qualityWarmupWindows = 2 // skip first N windows (warmup)
)

// computeQuality computes flock quality ∈ [0, 1] from window stats.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	targetSpacing := targetSpacingRatio * fe.baseConfig.Boid.VisionRadius

	var polSum, spacingSum, clearanceSum float64
	spreads := make([]float64, 0, len(valid))

	for _, w := range valid {
		// 1. Polarization close to target
		polErr := (w.Polarization - targetPolarization) / 0.2
		polSum += math.Exp(-polErr * polErr)

		// 2. Neighbor spacing close to target
		if w.NearestNeighbor > 0 && targetSpacing > 0 {
			logErr := math.Log(w.NearestNeighbor / targetSpacing)
			spacingSum += math.Exp(-logErr * logErr)
		}

		// 4. Few probes where every direction was blocked
		agents := float64(w.BoidCount + w.PredatorCount)
		if agents > 0 {
			blockedRate := float64(w.BlockedProbes) / agents
			clearanceSum += math.Exp(-blockedRate)
		}

		spreads = append(spreads, w.Spread)
	}

	n := float64(len(valid))

	// 3. Spread stability (CV across windows)
	stabilityScore := 0.0
	if len(spreads) >= 2 {
		c := cv(spreads)
		stabilityScore = math.Exp(-c * c)
	}

	quality := qualityWeightPolarization*polSum/n +
		qualityWeightSpacing*spacingSum/n +
		qualityWeightStability*stabilityScore +
		qualityWeightClearance*clearanceSum/n

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
