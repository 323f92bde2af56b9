package bot

// Timeout tracks a tick-counted window inside a state.
type Timeout struct {
	Started bool
	// Ticks since the timeout started.
	Ticks uint32
	// TotalTicks is a secondary counter left to the lifecycle callbacks;
	// repeat-fire states use it to count across resets.
	TotalTicks uint32
}

// Lifecycle is the phase of a timeout advanced this tick.
type Lifecycle int

const (
	// LifecycleStarted fires once when the timeout begins.
	LifecycleStarted Lifecycle = iota
	// LifecycleUpdated fires on each tick inside the window.
	LifecycleUpdated
	// LifecycleEnded fires when the window elapses.
	LifecycleEnded
)

// NextTimeout advances t against maxTicks and reports its phase. The
// returned timeout replaces t in the caller's state.
func NextTimeout(t Timeout, maxTicks uint32) (Timeout, Lifecycle) {
	if !t.Started {
		t.Started = true
		t.Ticks = 0
		return t, LifecycleStarted
	}
	t.Ticks++
	t.TotalTicks++
	if t.Ticks >= maxTicks {
		return t, LifecycleEnded
	}
	return t, LifecycleUpdated
}
