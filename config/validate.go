package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate reports every out-of-range value. Values are never clamped.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Physics.DT <= 0 {
		fail("physics.dt must be > 0, got %v", c.Physics.DT)
	}
	if c.Physics.Workers < 0 {
		fail("physics.workers must be >= 0, got %d", c.Physics.Workers)
	}

	for i, axis := range []string{"x", "y", "z"} {
		if c.Bounds.Size[i] < 0 {
			fail("bounds.size.%s must be >= 0, got %v", axis, c.Bounds.Size[i])
		} else if c.Bounds.Thickness >= c.Bounds.Size[i] && c.Bounds.Size[i] > 0 {
			fail("bounds.thickness (%v) must be smaller than bounds.size.%s (%v)", c.Bounds.Thickness, axis, c.Bounds.Size[i])
		}
	}
	if c.Bounds.Thickness < 0 {
		fail("bounds.thickness must be >= 0, got %v", c.Bounds.Thickness)
	}

	if c.Population.Agents <= 0 {
		fail("population.agents must be > 0, got %d", c.Population.Agents)
	}
	if c.Population.Predators < 0 || c.Population.Predators > c.Population.Agents {
		fail("population.predators must be in [0, %d], got %d", c.Population.Agents, c.Population.Predators)
	}

	if c.Boid.Speed <= 0 {
		fail("boid.speed must be > 0, got %v", c.Boid.Speed)
	}
	if c.Boid.VisionRadius < 0 {
		fail("boid.vision_radius must be >= 0, got %v", c.Boid.VisionRadius)
	}
	if c.Boid.VisionAngleDeg < 0 || c.Boid.VisionAngleDeg > 180 {
		fail("boid.vision_angle_deg must be in [0, 180], got %v", c.Boid.VisionAngleDeg)
	}
	if c.Boid.InertFactor < 0 {
		fail("boid.inert_factor must be >= 0, got %v", c.Boid.InertFactor)
	}
	if c.Boid.EscapeFactor < 0 {
		fail("boid.escape_factor must be >= 0, got %v", c.Boid.EscapeFactor)
	}
	if c.Boid.FallbackRepulsion < 0 {
		fail("boid.fallback_repulsion must be >= 0, got %v", c.Boid.FallbackRepulsion)
	}

	if c.Wander.DormancyDuration < 0 {
		fail("wander.dormancy_duration must be >= 0, got %v", c.Wander.DormancyDuration)
	}
	if c.Sphere.SampleCount <= 0 {
		fail("sphere.sample_count must be > 0, got %d", c.Sphere.SampleCount)
	}

	switch c.Neighbors.Mode {
	case NeighborModeBrute, NeighborModeGrid:
	default:
		fail("neighbors.mode must be %q or %q, got %q", NeighborModeBrute, NeighborModeGrid, c.Neighbors.Mode)
	}
	if c.Neighbors.CellSize < 0 {
		fail("neighbors.cell_size must be >= 0, got %v", c.Neighbors.CellSize)
	}
	if c.Neighbors.Mode == NeighborModeGrid && c.Neighbors.CellSize == 0 && c.Boid.VisionRadius == 0 {
		fail("neighbors.cell_size must be set when boid.vision_radius is 0")
	}

	switch c.Obstacles.Kind {
	case ObstacleKindNone:
	case ObstacleKindNoise:
		if c.Obstacles.Scale <= 0 {
			fail("obstacles.scale must be > 0, got %v", c.Obstacles.Scale)
		}
		if c.Obstacles.Octaves < 1 {
			fail("obstacles.octaves must be >= 1, got %d", c.Obstacles.Octaves)
		}
		if c.Obstacles.RayStep <= 0 {
			fail("obstacles.ray_step must be > 0, got %v", c.Obstacles.RayStep)
		}
	case ObstacleKindSpheres:
		for i, s := range c.Obstacles.Spheres {
			if s.Radius < 0 {
				fail("obstacles.spheres[%d].radius must be >= 0, got %v", i, s.Radius)
			}
		}
	default:
		fail("obstacles.kind must be one of %q, %q, %q, got %q",
			ObstacleKindNone, ObstacleKindNoise, ObstacleKindSpheres, c.Obstacles.Kind)
	}

	if c.Telemetry.StatsWindow < 0 {
		fail("telemetry.stats_window must be >= 0, got %v", c.Telemetry.StatsWindow)
	}
	if c.Telemetry.TrajectoryEvery < 0 {
		fail("telemetry.trajectory_every must be >= 0, got %d", c.Telemetry.TrajectoryEvery)
	}

	if c.Bookmarks.ScatteredThreshold > c.Bookmarks.AlignedThreshold {
		fail("bookmarks.scattered_threshold (%v) must be <= bookmarks.aligned_threshold (%v)",
			c.Bookmarks.ScatteredThreshold, c.Bookmarks.AlignedThreshold)
	}
	if c.Bookmarks.SpreadMultiplier <= 0 {
		fail("bookmarks.spread_multiplier must be > 0, got %v", c.Bookmarks.SpreadMultiplier)
	}

	return errors.Join(errs...)
}
