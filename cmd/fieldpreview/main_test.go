package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/flock/config"
)

func TestSpherePoints(t *testing.T) {
	cfg := config.Default()
	rows := spherePoints(cfg)

	if len(rows) != cfg.Sphere.SampleCount {
		t.Fatalf("got %d rows, want %d", len(rows), cfg.Sphere.SampleCount)
	}
	if rows[0].Angle > 1e-9 {
		t.Errorf("first point deviates %v degrees, want straight ahead", rows[0].Angle)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Angle < rows[i-1].Angle-1e-9 {
			t.Fatalf("angle decreases at %d: %v < %v", i, rows[i].Angle, rows[i-1].Angle)
		}
	}
}

func TestNoiseSlice(t *testing.T) {
	cfg := config.Default()
	rows := noiseSlice(cfg, 0, 8)

	if len(rows) != 64 {
		t.Fatalf("got %d samples, want 64", len(rows))
	}
	half := cfg.Derived.HalfBounds
	if rows[0].X != -half[0] || rows[63].Y != half[1] {
		t.Errorf("slice corners = (%v, %v) and (%v, %v)", rows[0].X, rows[0].Y, rows[63].X, rows[63].Y)
	}
	for _, r := range rows {
		if math.IsNaN(r.Density) || r.Solid != (r.Density > cfg.Obstacles.Threshold) {
			t.Fatalf("bad sample %+v", r)
		}
	}
}
