// Package main searches the steering weights for a cohesive, polarized flock
// with CMA-ES over headless runs.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flock/config"
)

type options struct {
	configPath string
	outputDir  string
	ticks      int
	seeds      int
	evals      int
	popSize    int
	stepSize   float64
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Base config file (empty = use defaults)")
	flag.StringVar(&o.outputDir, "output", "", "Directory for the search log and the best config")
	flag.IntVar(&o.ticks, "max-ticks", 3000, "Ticks per headless run")
	flag.IntVar(&o.seeds, "seeds", 3, "Runs per candidate, one per seed")
	flag.IntVar(&o.evals, "max-evals", 200, "Candidate budget")
	flag.IntVar(&o.popSize, "population", 0, "CMA-ES population (0 = 4 + 1.5·dim)")
	flag.Float64Var(&o.stepSize, "step", 0.3, "Initial CMA-ES step in normalized units")
	flag.Parse()
	return o
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(parseFlags(), logger); err != nil {
		logger.Error("optimize failed", "error", err)
		os.Exit(1)
	}
}

func run(o options, logger *slog.Logger) error {
	if o.outputDir == "" {
		return errors.New("--output is required")
	}
	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := config.Init(o.configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	base := config.Cfg()

	params := NewParamVector()
	seeds := make([]int64, o.seeds)
	for i := range seeds {
		seeds[i] = 42 + 1000*int64(i)
	}
	evaluator := NewFitnessEvaluator(params, int32(o.ticks), seeds, base)

	popSize := o.popSize
	if popSize <= 0 {
		popSize = 4 + 3*params.Dim()/2
	}

	trace, err := newSearchLog(filepath.Join(o.outputDir, "optimize_log.csv"), params, o.evals, logger)
	if err != nil {
		return err
	}
	defer trace.Close()

	logger.Info("starting search",
		"params", params.Dim(),
		"population", popSize,
		"max_evals", o.evals,
		"seeds", o.seeds,
		"ticks", o.ticks,
	)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			candidate := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(candidate)
			trace.record(candidate, fitness, evaluator.LastQuality())
			return fitness
		},
	}
	result, err := optimize.Minimize(problem,
		params.Normalize(params.ExtractFromConfig(base)),
		&optimize.Settings{FuncEvaluations: o.evals},
		&optimize.CmaEsChol{InitStepSize: o.stepSize, Population: popSize},
	)
	if err != nil {
		// Budget exhaustion surfaces as an error; the best candidate is still valid
		logger.Warn("search stopped", "reason", err)
	}

	best := trace.best
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return errors.New("no candidate was evaluated")
	}

	attrs := []any{"evals", trace.evals, "quality", trace.bestQuality, "elapsed", time.Since(trace.started).Round(time.Second)}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, best[i])
	}
	logger.Info("search complete", attrs...)

	return writeBest(o.outputDir, base, params, best, evaluator, logger)
}

// writeBest stores the winning config and the window series of its best run.
func writeBest(dir string, base *config.Config, params *ParamVector, best []float64, ev *FitnessEvaluator, logger *slog.Logger) error {
	cfg := base.Clone()
	params.ApplyToConfig(cfg, best)
	cfgPath := filepath.Join(dir, "best_config.yaml")
	if err := cfg.WriteYAML(cfgPath); err != nil {
		return fmt.Errorf("write best config: %w", err)
	}
	logger.Info("best config saved", "path", cfgPath)

	windows := ev.BestWindows()
	if len(windows) == 0 {
		return nil
	}
	winPath := filepath.Join(dir, "best_windows.csv")
	f, err := os.Create(winPath)
	if err != nil {
		return fmt.Errorf("create windows file: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&windows, f); err != nil {
		return fmt.Errorf("write best windows: %w", err)
	}
	logger.Info("best windows saved", "path", winPath, "windows", len(windows))
	return nil
}

// searchLog appends one CSV row per evaluated candidate and tracks the best.
type searchLog struct {
	file   *os.File
	w      *csv.Writer
	logger *slog.Logger
	budget int

	started     time.Time
	evals       int
	best        []float64
	bestFitness float64
	bestQuality float64
}

func newSearchLog(path string, params *ParamVector, budget int, logger *slog.Logger) (*searchLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create search log: %w", err)
	}
	w := csv.NewWriter(f)
	header := append([]string{"eval", "fitness", "quality"}, params.Names()...)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write search log header: %w", err)
	}
	return &searchLog{
		file:        f,
		w:           w,
		logger:      logger,
		budget:      budget,
		started:     time.Now(),
		bestFitness: 1e9,
	}, nil
}

func (l *searchLog) record(candidate []float64, fitness, quality float64) {
	l.evals++
	if fitness < l.bestFitness {
		l.bestFitness = fitness
		l.bestQuality = quality
		l.best = candidate
	}

	row := make([]string, 0, len(candidate)+3)
	row = append(row, strconv.Itoa(l.evals),
		strconv.FormatFloat(fitness, 'f', 6, 64),
		strconv.FormatFloat(quality, 'f', 6, 64))
	for _, v := range candidate {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := l.w.Write(row); err != nil {
		l.logger.Warn("search log write failed", "error", err)
	}
	l.w.Flush()

	elapsed := time.Since(l.started)
	eta := time.Duration(0)
	if left := l.budget - l.evals; left > 0 {
		eta = elapsed / time.Duration(l.evals) * time.Duration(left)
	}
	l.logger.Info("eval",
		"n", l.evals,
		"of", l.budget,
		"quality", quality,
		"best", l.bestQuality,
		"elapsed", elapsed.Round(time.Second),
		"eta", eta.Round(time.Second),
	)
}

func (l *searchLog) Close() error {
	l.w.Flush()
	return errors.Join(l.w.Error(), l.file.Close())
}
