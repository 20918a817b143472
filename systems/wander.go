package systems

// WanderState is the wander cycle state.
type WanderState uint8

const (
	WanderActive WanderState = iota
	WanderDormant
)

func (s WanderState) String() string {
	if s == WanderActive {
		return "active"
	}
	return "dormant"
}

// WanderScheduler toggles the global wander flag. It is active for a single
// tick, then dormant for a fixed number of ticks, forever.
type WanderScheduler struct {
	state    WanderState
	elapsed  int
	dormancy int
	impulses int
}

// NewWanderScheduler creates a scheduler that starts active.
// dormancyTicks below 1 is treated as 1.
func NewWanderScheduler(dormancyTicks int) *WanderScheduler {
	return &WanderScheduler{
		state:    WanderActive,
		dormancy: max(1, dormancyTicks),
	}
}

// Active reports whether wander noise applies on the current tick.
func (w *WanderScheduler) Active() bool { return w.state == WanderActive }

// State returns the current state.
func (w *WanderScheduler) State() WanderState { return w.state }

// Impulses returns how many active ticks have completed.
func (w *WanderScheduler) Impulses() int { return w.impulses }

// Advance moves the cycle forward by one tick. Call once at the end of
// every tick.
func (w *WanderScheduler) Advance() {
	switch w.state {
	case WanderActive:
		w.state = WanderDormant
		w.elapsed = 0
		w.impulses++
	case WanderDormant:
		w.elapsed++
		if w.elapsed >= w.dormancy {
			w.state = WanderActive
		}
	}
}
