package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-" db:"window_start"`
	WindowEndTick   int32   `csv:"window_end" db:"window_end"`
	SimTimeSec      float64 `csv:"sim_time" db:"sim_time"`

	// Population at window end
	BoidCount     int `csv:"boids" db:"boids"`
	PredatorCount int `csv:"predators" db:"predators"`

	// Speed distribution of boids (sampled at window end)
	SpeedMean float64 `csv:"speed_mean" db:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std" db:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10" db:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50" db:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90" db:"speed_p90"`

	// Flock shape (sampled at window end)
	Polarization    float64 `csv:"polarization" db:"polarization"`         // |mean unit heading|, 1 = fully aligned
	MeanNeighbors   float64 `csv:"mean_neighbors" db:"mean_neighbors"`     // sensed neighbors per boid, last tick
	NearestNeighbor float64 `csv:"nearest_neighbor" db:"nearest_neighbor"` // mean distance to the closest boid
	Spread          float64 `csv:"spread" db:"spread"`                     // mean distance to the centroid

	// Events during window
	ObstacleDeviations int `csv:"obstacle_deviations" db:"obstacle_deviations"`
	BlockedProbes      int `csv:"blocked_probes" db:"blocked_probes"`
	WanderImpulses     int `csv:"wander_impulses" db:"wander_impulses"`
	PredatorEncounters int `csv:"predator_encounters" db:"predator_encounters"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution returns the mean, population standard deviation and
// percentiles of values. All zeros for an empty slice.
func ComputeDistribution(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// FlockShape summarizes the geometry of a group of agents.
type FlockShape struct {
	Polarization    float64
	NearestNeighbor float64
	Spread          float64
}

// ComputeFlockShape measures polarization, nearest-neighbor distance and
// spread. Agents at rest count toward the heading average as zero vectors.
func ComputeFlockShape(positions, velocities []r3.Vec) FlockShape {
	n := len(positions)
	if n == 0 {
		return FlockShape{}
	}

	var heading, centroid r3.Vec
	for i := range positions {
		centroid = r3.Add(centroid, positions[i])
		if norm := r3.Norm(velocities[i]); norm > 0 {
			heading = r3.Add(heading, r3.Scale(1/norm, velocities[i]))
		}
	}
	inv := 1 / float64(n)
	centroid = r3.Scale(inv, centroid)

	dists := make([]float64, n)
	for i, p := range positions {
		dists[i] = r3.Norm(r3.Sub(p, centroid))
	}

	shape := FlockShape{
		Polarization: r3.Norm(heading) * inv,
		Spread:       stat.Mean(dists, nil),
	}

	if n < 2 {
		return shape
	}

	// O(n²), only evaluated once per window
	for i := range positions {
		best := math.Inf(1)
		for j := range positions {
			if i == j {
				continue
			}
			if d := r3.Norm2(r3.Sub(positions[i], positions[j])); d < best {
				best = d
			}
		}
		dists[i] = math.Sqrt(best)
	}
	shape.NearestNeighbor = stat.Mean(dists, nil)

	return shape
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("boids", s.BoidCount),
		slog.Int("predators", s.PredatorCount),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("polarization", s.Polarization),
		slog.Float64("mean_neighbors", s.MeanNeighbors),
		slog.Float64("nearest_neighbor", s.NearestNeighbor),
		slog.Float64("spread", s.Spread),
		slog.Int("obstacle_deviations", s.ObstacleDeviations),
		slog.Int("blocked_probes", s.BlockedProbes),
		slog.Int("wander_impulses", s.WanderImpulses),
		slog.Int("predator_encounters", s.PredatorEncounters),
	)
}

// LogStats logs the window stats using the given logger.
func (s WindowStats) LogStats(logger *slog.Logger) {
	logger.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"boids", s.BoidCount,
		"predators", s.PredatorCount,
		"speed_mean", s.SpeedMean,
		"speed_p50", s.SpeedP50,
		"polarization", s.Polarization,
		"mean_neighbors", s.MeanNeighbors,
		"nearest_neighbor", s.NearestNeighbor,
		"spread", s.Spread,
		"obstacle_deviations", s.ObstacleDeviations,
		"blocked_probes", s.BlockedProbes,
		"wander_impulses", s.WanderImpulses,
		"predator_encounters", s.PredatorEncounters,
	)
}
