package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestSmooth(t *testing.T) {
	m := Motion{Speed: 6, Inert: 4, DT: 0.02}

	tests := []struct {
		name    string
		v       r3.Vec
		wantMag float64
	}{
		{"underspeed snaps up", r3.Vec{X: 1, Y: 2}, 6},
		{"tiny", r3.Vec{Z: 1e-6}, 6},
		{"at speed", r3.Vec{Z: 6}, 6},
		{"overspeed bleeds", r3.Vec{X: 10}, 10 - 4*0.02},
		{"overspeed diagonal", r3.Vec{X: 6, Y: 6, Z: 6}, math.Sqrt(108) - 4*0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Smooth(tt.v)
			if math.Abs(r3.Norm(got)-tt.wantMag) > 1e-9 {
				t.Errorf("|v| = %f, want %f", r3.Norm(got), tt.wantMag)
			}
			if !vecNear(SafeUnit(got), SafeUnit(tt.v), 1e-9) {
				t.Errorf("direction changed: %v -> %v", tt.v, got)
			}
		})
	}
}

func TestSmoothOverspeedDecreasesStrictly(t *testing.T) {
	m := Motion{Speed: 1, Inert: 0.5, DT: 0.1}
	v := r3.Vec{X: 3, Y: -1}
	for i := 0; i < 10; i++ {
		next := m.Smooth(v)
		if r3.Norm(next) >= r3.Norm(v) {
			t.Fatalf("step %d: |v| %f did not decrease from %f", i, r3.Norm(next), r3.Norm(v))
		}
		v = next
	}
}

func TestSmoothZero(t *testing.T) {
	m := Motion{Speed: 6, Inert: 4, DT: 0.02}
	if got := m.Smooth(r3.Vec{}); got != (r3.Vec{}) {
		t.Errorf("Smooth(0) = %v, want zero", got)
	}
}

func TestIntegrate(t *testing.T) {
	m := Motion{Speed: 2, Inert: 1, DT: 0.5}
	pos, vel := m.Integrate(r3.Vec{X: 1}, r3.Vec{Z: 1}, r3.Vec{Z: 1})

	// vel + accel*dt = (0,0,1.5), underspeed -> (0,0,2)
	if !vecNear(vel, r3.Vec{Z: 2}, 1e-12) {
		t.Errorf("vel = %v, want (0,0,2)", vel)
	}
	if !vecNear(pos, r3.Vec{X: 1, Z: 1}, 1e-12) {
		t.Errorf("pos = %v, want (1,0,1)", pos)
	}
}

func TestBoundsApply(t *testing.T) {
	b := Bounds{Half: r3.Vec{X: 10, Y: 5, Z: 10}, Wrap: true}

	tests := []struct {
		name string
		in   r3.Vec
		want r3.Vec
	}{
		{"inside", r3.Vec{X: 9, Y: -4, Z: 0}, r3.Vec{X: 9, Y: -4, Z: 0}},
		{"on the face", r3.Vec{X: 10}, r3.Vec{X: 10}},
		{"escaped +x", r3.Vec{X: 10.5, Y: 1}, r3.Vec{X: -9.975, Y: 1}},
		{"escaped -y", r3.Vec{Y: -6}, r3.Vec{Y: 5.7}},
		{"escaped corner", r3.Vec{X: 11, Y: 6, Z: -12}, r3.Vec{X: -10.45, Y: -5.7, Z: 11.4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Apply(tt.in); !vecNear(got, tt.want, 1e-9) {
				t.Errorf("Apply(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	b.Wrap = false
	if got := b.Apply(r3.Vec{X: 50}); got != (r3.Vec{X: 50}) {
		t.Errorf("wrap disabled: got %v", got)
	}
}
