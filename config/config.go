// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Physics    PhysicsConfig    `yaml:"physics" toml:"physics"`
	Bounds     BoundsConfig     `yaml:"bounds" toml:"bounds"`
	Population PopulationConfig `yaml:"population" toml:"population"`
	Boid       BoidConfig       `yaml:"boid" toml:"boid"`
	Factors    FactorsConfig    `yaml:"factors" toml:"factors"`
	Predator   PredatorConfig   `yaml:"predator" toml:"predator"`
	Wander     WanderConfig     `yaml:"wander" toml:"wander"`
	Sphere     SphereConfig     `yaml:"sphere" toml:"sphere"`
	Neighbors  NeighborsConfig  `yaml:"neighbors" toml:"neighbors"`
	Obstacles  ObstaclesConfig  `yaml:"obstacles" toml:"obstacles"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" toml:"telemetry"`
	Bookmarks  BookmarksConfig  `yaml:"bookmarks" toml:"bookmarks"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-" toml:"-"`
}

// PhysicsConfig holds the fixed timestep and worker settings.
type PhysicsConfig struct {
	DT      float64 `yaml:"dt" toml:"dt"`           // seconds per tick
	Workers int     `yaml:"workers" toml:"workers"` // 0 or 1 = single-threaded
}

// BoundsConfig describes the axis-aligned box centered at the origin.
type BoundsConfig struct {
	Size      [3]float64 `yaml:"size" toml:"size"`           // full extents along X, Y, Z
	Thickness float64    `yaml:"thickness" toml:"thickness"` // inset margin for spawning and probing
	Wrap      bool       `yaml:"wrap" toml:"wrap"`           // reflect agents that escape the box
}

// PopulationConfig holds population sizes.
type PopulationConfig struct {
	Agents    int `yaml:"agents" toml:"agents"`
	Predators int `yaml:"predators" toml:"predators"` // the first N agents are predators
}

// BoidConfig holds movement and perception parameters shared by all agents.
type BoidConfig struct {
	Speed             float64 `yaml:"speed" toml:"speed"`
	VisionRadius      float64 `yaml:"vision_radius" toml:"vision_radius"`
	VisionAngleDeg    float64 `yaml:"vision_angle_deg" toml:"vision_angle_deg"`
	InertFactor       float64 `yaml:"inert_factor" toml:"inert_factor"`             // overspeed bleed per second
	EscapeFactor      float64 `yaml:"escape_factor" toml:"escape_factor"`           // separation multiplier for predators
	FallbackRepulsion float64 `yaml:"fallback_repulsion" toml:"fallback_repulsion"` // 0 = avoid * speed
}

// FactorsConfig holds the steering weights of ordinary agents.
type FactorsConfig struct {
	Coherence float64 `yaml:"coherence" toml:"coherence"`
	Align     float64 `yaml:"align" toml:"align"`
	Avoid     float64 `yaml:"avoid" toml:"avoid"`
	Collide   float64 `yaml:"collide" toml:"collide"`
	Random    float64 `yaml:"random" toml:"random"`
}

// PredatorConfig holds the steering weights of predators.
// Predators never align with or separate from the flock.
type PredatorConfig struct {
	Coherence float64 `yaml:"coherence" toml:"coherence"`
	Collide   float64 `yaml:"collide" toml:"collide"`
	Random    float64 `yaml:"random" toml:"random"`
}

// WanderConfig holds the wander duty cycle.
type WanderConfig struct {
	DormancyDuration float64 `yaml:"dormancy_duration" toml:"dormancy_duration"` // seconds between impulses
}

// SphereConfig holds the sphere sampler parameters.
type SphereConfig struct {
	SampleCount int     `yaml:"sample_count" toml:"sample_count"`
	StepAngle   float64 `yaml:"step_angle" toml:"step_angle"` // 0 = golden angle
}

// Neighbor scan modes.
const (
	NeighborModeBrute = "brute"
	NeighborModeGrid  = "grid"
)

// NeighborsConfig selects the neighbor scan strategy.
type NeighborsConfig struct {
	Mode     string  `yaml:"mode" toml:"mode"`
	CellSize float64 `yaml:"cell_size" toml:"cell_size"` // 0 = vision radius
}

// Obstacle field kinds.
const (
	ObstacleKindNone    = "none"
	ObstacleKindNoise   = "noise"
	ObstacleKindSpheres = "spheres"
)

// ObstaclesConfig describes the scene queried by the obstacle prober.
type ObstaclesConfig struct {
	Kind      string           `yaml:"kind" toml:"kind"`
	Seed      int64            `yaml:"seed" toml:"seed"`
	Scale     float64          `yaml:"scale" toml:"scale"`         // noise frequency
	Octaves   int              `yaml:"octaves" toml:"octaves"`     // FBM octaves
	Threshold float64          `yaml:"threshold" toml:"threshold"` // density above this is solid
	RayStep   float64          `yaml:"ray_step" toml:"ray_step"`   // march step for noise rays
	Spheres   []SphereObstacle `yaml:"spheres" toml:"spheres"`
}

// SphereObstacle is a solid ball in the scene.
type SphereObstacle struct {
	Center [3]float64 `yaml:"center" toml:"center"`
	Radius float64    `yaml:"radius" toml:"radius"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow     float64 `yaml:"stats_window" toml:"stats_window"`         // seconds
	PerfWindow      int     `yaml:"perf_window" toml:"perf_window"`           // ticks
	TrajectoryEvery int     `yaml:"trajectory_every" toml:"trajectory_every"` // ticks between recorded frames
	HistorySize     int     `yaml:"history_size" toml:"history_size"`         // bookmark history windows
}

// BookmarksConfig holds flock event detection thresholds.
type BookmarksConfig struct {
	AlignedThreshold   float64 `yaml:"aligned_threshold" toml:"aligned_threshold"`
	ScatteredThreshold float64 `yaml:"scattered_threshold" toml:"scattered_threshold"`
	SpreadMultiplier   float64 `yaml:"spread_multiplier" toml:"spread_multiplier"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	HalfBounds      [3]float64 // Bounds.Size / 2
	InsetHalfBounds [3]float64 // (Bounds.Size - Thickness) / 2
	StepAngle       float64    // resolved sphere step angle
	Fallback        float64    // resolved zero-distance repulsion
	CellSize        float64    // resolved grid cell size
	DormancyTicks   int        // wander dormancy in ticks
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults, validated and with derived values computed.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML or TOML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing toml config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates the config and recomputes derived values.
// Call it after mutating a loaded config in code.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	for i := range 3 {
		c.Derived.HalfBounds[i] = c.Bounds.Size[i] / 2
		c.Derived.InsetHalfBounds[i] = (c.Bounds.Size[i] - c.Bounds.Thickness) / 2
	}

	c.Derived.StepAngle = c.Sphere.StepAngle
	if c.Derived.StepAngle == 0 {
		c.Derived.StepAngle = math.Pi * (3 - math.Sqrt(5))
	}

	c.Derived.Fallback = c.Boid.FallbackRepulsion
	if c.Derived.Fallback == 0 {
		c.Derived.Fallback = c.Factors.Avoid * c.Boid.Speed
	}

	c.Derived.CellSize = c.Neighbors.CellSize
	if c.Derived.CellSize == 0 {
		c.Derived.CellSize = c.Boid.VisionRadius
	}

	ticks := int(math.Ceil(c.Wander.DormancyDuration/c.Physics.DT - 1e-9))
	if ticks < 1 {
		ticks = 1
	}
	c.Derived.DormancyTicks = ticks
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Obstacles.Spheres = append([]SphereObstacle(nil), c.Obstacles.Spheres...)
	return &cp
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// YAML returns the YAML encoding of the configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}
