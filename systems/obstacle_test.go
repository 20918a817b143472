package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/sphere"
)

var testInset = r3.Vec{X: 28, Y: 18, Z: 28}

func newTestProber(blocker RayBlocker) *ObstacleProber {
	points := sphere.Generate(120, 5, sphere.GoldenAngle)
	return NewObstacleProber(points, blocker, testInset, 5)
}

func TestProbeClearAhead(t *testing.T) {
	p := newTestProber(NoObstacles{})

	for _, vel := range []r3.Vec{{Z: 6}, {X: 6}, {X: -1, Y: 2, Z: -3}, {}} {
		res := p.Probe(r3.Vec{}, vel)
		if res.Deviation != (r3.Vec{}) {
			t.Errorf("vel %v: Deviation = %v, want zero", vel, res.Deviation)
		}
		if res.Index != 0 || res.AllBlocked {
			t.Errorf("vel %v: Index = %d AllBlocked = %v, want 0 false", vel, res.Index, res.AllBlocked)
		}
	}
}

func TestProbeFirstRayFollowsHeading(t *testing.T) {
	var first r3.Vec
	calls := 0
	blocker := RayBlockerFunc(func(_, dir r3.Vec, _ float64) bool {
		if calls == 0 {
			first = dir
		}
		calls++
		return false
	})

	vel := r3.Vec{X: 3, Y: -4}
	newTestProber(blocker).Probe(r3.Vec{}, vel)

	want := SafeUnit(vel)
	if !vecNear(first, want, 1e-9) {
		t.Errorf("first cast = %v, want %v", first, want)
	}
}

func TestProbeBlockedAhead(t *testing.T) {
	// Block a narrow cone around +Z
	blocker := RayBlockerFunc(func(_, dir r3.Vec, _ float64) bool {
		return dir.Z > 0.999
	})
	p := newTestProber(blocker)
	vel := r3.Vec{Z: 6}

	res := p.Probe(r3.Vec{}, vel)
	if res.Index != 1 {
		t.Errorf("Index = %d, want 1", res.Index)
	}
	if math.Abs(r3.Norm(res.Deviation)-1) > 1e-9 {
		t.Errorf("|Deviation| = %f, want 1", r3.Norm(res.Deviation))
	}

	cast := p.points.At(1)
	want := SafeUnit(r3.Sub(cast, vel))
	if !vecNear(res.Deviation, want, 1e-9) {
		t.Errorf("Deviation = %v, want %v", res.Deviation, want)
	}
}

func TestProbeAllBlocked(t *testing.T) {
	blocker := RayBlockerFunc(func(r3.Vec, r3.Vec, float64) bool { return true })

	res := newTestProber(blocker).Probe(r3.Vec{}, r3.Vec{Z: 6})
	if !res.AllBlocked || res.Index != -1 {
		t.Errorf("AllBlocked = %v Index = %d, want true -1", res.AllBlocked, res.Index)
	}
	if res.Deviation != (r3.Vec{}) {
		t.Errorf("Deviation = %v, want zero", res.Deviation)
	}
}

func TestProbeBoundaryTurnsAway(t *testing.T) {
	p := newTestProber(NoObstacles{})
	pos := r3.Vec{Z: testInset.Z - 1}
	vel := r3.Vec{Z: 6}

	res := p.Probe(pos, vel)
	if res.Index <= 0 {
		t.Fatalf("Index = %d, want a deviated sample", res.Index)
	}
	if res.Deviation.Z >= 0 {
		t.Errorf("Deviation = %v, want a component away from the wall", res.Deviation)
	}
	cast := p.points.At(res.Index)
	if math.Abs(pos.Z+cast.Z) > testInset.Z {
		t.Errorf("chosen sample %v leaves the inset box", cast)
	}
}

func TestProbeRayLength(t *testing.T) {
	var got float64
	blocker := RayBlockerFunc(func(_, _ r3.Vec, maxDist float64) bool {
		got = maxDist
		return false
	})
	newTestProber(blocker).Probe(r3.Vec{}, r3.Vec{Z: 1})
	if got != 5 {
		t.Errorf("maxDist = %f, want 5", got)
	}
}
