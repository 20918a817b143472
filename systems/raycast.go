package systems

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
)

// RayBlocker answers whether the segment from origin along the unit vector
// dir, up to maxDist, hits scene geometry. Implementations must be
// deterministic for a fixed scene and safe for concurrent reads.
type RayBlocker interface {
	IsRayBlocked(origin, dir r3.Vec, maxDist float64) bool
}

// RayBlockerFunc adapts a function to RayBlocker.
type RayBlockerFunc func(origin, dir r3.Vec, maxDist float64) bool

// IsRayBlocked implements RayBlocker.
func (f RayBlockerFunc) IsRayBlocked(origin, dir r3.Vec, maxDist float64) bool {
	return f(origin, dir, maxDist)
}

// NoObstacles is an empty scene.
type NoObstacles struct{}

// IsRayBlocked implements RayBlocker.
func (NoObstacles) IsRayBlocked(r3.Vec, r3.Vec, float64) bool { return false }

// Ball is a solid sphere.
type Ball struct {
	Center r3.Vec
	Radius float64
}

// SphereField tests rays against a list of balls by brute force.
type SphereField struct {
	Balls []Ball
}

// IsRayBlocked implements RayBlocker.
func (f *SphereField) IsRayBlocked(origin, dir r3.Vec, maxDist float64) bool {
	for _, b := range f.Balls {
		if rayHitsBall(origin, dir, maxDist, b) {
			return true
		}
	}
	return false
}

// rayHitsBall reports whether the segment [origin, origin+dir*maxDist]
// touches ball b. dir must be a unit vector.
func rayHitsBall(origin, dir r3.Vec, maxDist float64, b Ball) bool {
	oc := r3.Sub(origin, b.Center)
	c := r3.Norm2(oc) - b.Radius*b.Radius
	if c <= 0 {
		return true // origin inside
	}
	half := r3.Dot(oc, dir)
	disc := half*half - c
	if disc < 0 {
		return false
	}
	t := -half - math.Sqrt(disc)
	return t >= 0 && t <= maxDist
}

// NoiseField is a solid-where-dense volume built from octave simplex noise.
type NoiseField struct {
	noise     opensimplex.Noise
	scale     float64
	octaves   int
	threshold float64
	step      float64
}

// NewNoiseField creates a noise volume. Points whose density exceeds
// threshold are solid; rays are marched with the given step.
func NewNoiseField(seed int64, scale float64, octaves int, threshold, step float64) *NoiseField {
	return &NoiseField{
		noise:     opensimplex.NewNormalized(seed),
		scale:     scale,
		octaves:   octaves,
		threshold: threshold,
		step:      step,
	}
}

// Density returns the normalized noise density at p, in [0, 1).
func (f *NoiseField) Density(p r3.Vec) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	frequency := f.scale

	for i := 0; i < f.octaves; i++ {
		total += f.noise.Eval3(p.X*frequency, p.Y*frequency, p.Z*frequency) * amplitude
		maxVal += amplitude
		amplitude *= 0.5
		frequency *= 2
	}

	return total / maxVal
}

// Solid reports whether p lies inside the volume.
func (f *NoiseField) Solid(p r3.Vec) bool {
	return f.Density(p) > f.threshold
}

// IsRayBlocked implements RayBlocker by marching along the ray.
func (f *NoiseField) IsRayBlocked(origin, dir r3.Vec, maxDist float64) bool {
	for t := f.step; t < maxDist; t += f.step {
		if f.Solid(r3.Add(origin, r3.Scale(t, dir))) {
			return true
		}
	}
	return f.Solid(r3.Add(origin, r3.Scale(maxDist, dir)))
}

// NewBlocker builds the scene described by the obstacle config.
func NewBlocker(cfg config.ObstaclesConfig) (RayBlocker, error) {
	switch cfg.Kind {
	case config.ObstacleKindNone, "":
		return NoObstacles{}, nil
	case config.ObstacleKindNoise:
		return NewNoiseField(cfg.Seed, cfg.Scale, cfg.Octaves, cfg.Threshold, cfg.RayStep), nil
	case config.ObstacleKindSpheres:
		field := &SphereField{Balls: make([]Ball, len(cfg.Spheres))}
		for i, s := range cfg.Spheres {
			field.Balls[i] = Ball{
				Center: r3.Vec{X: s.Center[0], Y: s.Center[1], Z: s.Center[2]},
				Radius: s.Radius,
			}
		}
		return field, nil
	}
	return nil, fmt.Errorf("unknown obstacle kind %q", cfg.Kind)
}
