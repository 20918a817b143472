package systems

import "testing"

func TestWanderCycle(t *testing.T) {
	for _, dormancy := range []int{1, 3, 75} {
		w := NewWanderScheduler(dormancy)

		if !w.Active() {
			t.Fatalf("dormancy %d: tick 0 should be active", dormancy)
		}
		w.Advance()

		for tick := 1; tick <= dormancy; tick++ {
			if w.Active() {
				t.Fatalf("dormancy %d: tick %d should be dormant", dormancy, tick)
			}
			w.Advance()
		}

		if !w.Active() {
			t.Fatalf("dormancy %d: tick %d should be active", dormancy, dormancy+1)
		}
		w.Advance()
		if w.Active() {
			t.Fatalf("dormancy %d: impulse should last one tick", dormancy)
		}
		if w.Impulses() != 2 {
			t.Errorf("dormancy %d: Impulses = %d, want 2", dormancy, w.Impulses())
		}
	}
}

func TestWanderMinimumDormancy(t *testing.T) {
	w := NewWanderScheduler(0)
	w.Advance()
	if w.State() != WanderDormant {
		t.Fatalf("State = %v, want dormant", w.State())
	}
	w.Advance()
	if w.State() != WanderActive {
		t.Errorf("State = %v, want active", w.State())
	}
}
