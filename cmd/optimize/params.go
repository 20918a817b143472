// Package main provides CMA-ES optimization for flock steering parameters.
package main

import (
	"github.com/pthm-cable/flock/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Steering weights
			{Name: "coherence", Path: "factors.coherence", Min: 0, Max: 10, Default: 2.0},
			{Name: "align", Path: "factors.align", Min: 0, Max: 10, Default: 3.0},
			{Name: "avoid", Path: "factors.avoid", Min: 0, Max: 6, Default: 1.5},
			{Name: "collide", Path: "factors.collide", Min: 1, Max: 30, Default: 12.0},
			{Name: "random", Path: "factors.random", Min: 0, Max: 6, Default: 2.0},
			// Motion
			{Name: "inert_factor", Path: "boid.inert_factor", Min: 0.5, Max: 10, Default: 4.0},
			{Name: "vision_angle_deg", Path: "boid.vision_angle_deg", Min: 60, Max: 180, Default: 135},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Names returns the parameter names in vector order.
func (pv *ParamVector) Names() []string {
	names := make([]string, len(pv.Specs))
	for i, spec := range pv.Specs {
		names[i] = spec.Name
	}
	return names
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Factors.Coherence = clamped[0]
	cfg.Factors.Align = clamped[1]
	cfg.Factors.Avoid = clamped[2]
	cfg.Factors.Collide = clamped[3]
	cfg.Factors.Random = clamped[4]
	cfg.Boid.InertFactor = clamped[5]
	cfg.Boid.VisionAngleDeg = clamped[6]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Factors.Coherence,
		cfg.Factors.Align,
		cfg.Factors.Avoid,
		cfg.Factors.Collide,
		cfg.Factors.Random,
		cfg.Boid.InertFactor,
		cfg.Boid.VisionAngleDeg,
	}
}
