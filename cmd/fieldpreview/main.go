// Field preview tool - dumps the probe sphere or a slice of the obstacle
// field as CSV for plotting.
//
// Usage:
//
//	go run ./cmd/fieldpreview -mode sphere -out sphere.csv
//	go run ./cmd/fieldpreview -mode noise -z 0 -out slice.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/sphere"
	"github.com/pthm-cable/flock/systems"
)

// spherePoint is one row of the sphere dump.
type spherePoint struct {
	Index int     `csv:"index"`
	X     float64 `csv:"x"`
	Y     float64 `csv:"y"`
	Z     float64 `csv:"z"`
	// Deviation from straight ahead in degrees
	Angle float64 `csv:"angle_deg"`
}

// fieldSample is one row of the obstacle slice dump.
type fieldSample struct {
	X       float64 `csv:"x"`
	Y       float64 `csv:"y"`
	Density float64 `csv:"density"`
	Solid   bool    `csv:"solid"`
}

func main() {
	configPath := flag.String("config", "", "Path to config file (empty = use defaults)")
	mode := flag.String("mode", "sphere", "What to dump: sphere or noise")
	sliceZ := flag.Float64("z", 0, "Z coordinate of the noise slice")
	resolution := flag.Int("resolution", 128, "Noise slice samples per axis")
	outPath := flag.String("out", "", "Output CSV path (empty = stdout)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	switch *mode {
	case "sphere":
		err = gocsv.Marshal(spherePoints(cfg), out)
	case "noise":
		err = gocsv.Marshal(noiseSlice(cfg, *sliceZ, *resolution), out)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write preview: %v\n", err)
		os.Exit(1)
	}
}

func spherePoints(cfg *config.Config) []spherePoint {
	pts := sphere.Generate(cfg.Sphere.SampleCount, cfg.Boid.VisionRadius, cfg.Derived.StepAngle)
	rows := make([]spherePoint, pts.Len())
	for i := range rows {
		p := pts.At(i)
		rows[i] = spherePoint{
			Index: i,
			X:     p.X,
			Y:     p.Y,
			Z:     p.Z,
			Angle: systems.AngleDeg(sphere.Forward, p),
		}
	}
	return rows
}

// noiseSlice samples the noise field on the z plane across the bounds box.
// The field is built from the config even when obstacles are disabled.
func noiseSlice(cfg *config.Config, z float64, resolution int) []fieldSample {
	o := cfg.Obstacles
	field := systems.NewNoiseField(o.Seed, o.Scale, o.Octaves, o.Threshold, o.RayStep)

	half := cfg.Derived.HalfBounds
	resolution = max(resolution, 2)
	rows := make([]fieldSample, 0, resolution*resolution)
	for j := 0; j < resolution; j++ {
		y := -half[1] + 2*half[1]*float64(j)/float64(resolution-1)
		for i := 0; i < resolution; i++ {
			x := -half[0] + 2*half[0]*float64(i)/float64(resolution-1)
			p := r3.Vec{X: x, Y: y, Z: z}
			rows = append(rows, fieldSample{
				X:       x,
				Y:       y,
				Density: field.Density(p),
				Solid:   field.Solid(p),
			})
		}
	}
	return rows
}
