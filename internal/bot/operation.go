package bot

import "time"

// OperationKind is the run/halt mode of the control loop.
type OperationKind int

const (
	// OperationRunning runs without a deadline.
	OperationRunning OperationKind = iota
	// OperationHalting stops all inputs without a deadline.
	OperationHalting
	// OperationRunUntil runs until a wall-clock instant, then cycles to a
	// halt window.
	OperationRunUntil
	// OperationHaltUntil halts until a wall-clock instant, then cycles to
	// a run window.
	OperationHaltUntil
)

// Operation is the duty-cycle state: either plain running/halting, or a
// run/halt pair cycling on wall-clock deadlines.
type Operation struct {
	Kind OperationKind
	// Deadline applies to RunUntil and HaltUntil.
	Deadline time.Time

	runDuration  time.Duration
	haltDuration time.Duration
}

// NewOperation builds the initial operation from the configured cycle
// durations. Zero durations mean plain running.
func NewOperation(run, halt time.Duration, now time.Time) Operation {
	if run <= 0 || halt <= 0 {
		return Operation{Kind: OperationRunning}
	}
	return Operation{
		Kind:         OperationRunUntil,
		Deadline:     now.Add(run),
		runDuration:  run,
		haltDuration: halt,
	}
}

// Halting reports whether inputs are suppressed this tick.
func (o Operation) Halting() bool {
	return o.Kind == OperationHalting || o.Kind == OperationHaltUntil
}

// Advance moves the duty cycle against now. cycledToHalt is true on the
// tick a run window elapsed; the driver uses it to park the player.
func (o Operation) Advance(now time.Time) (next Operation, cycledToHalt bool) {
	switch o.Kind {
	case OperationRunUntil:
		if !now.Before(o.Deadline) {
			o.Kind = OperationHaltUntil
			o.Deadline = now.Add(o.haltDuration)
			return o, true
		}
	case OperationHaltUntil:
		if !now.Before(o.Deadline) {
			o.Kind = OperationRunUntil
			o.Deadline = now.Add(o.runDuration)
		}
	}
	return o, false
}

// Halt forces a plain halt, dropping any cycle deadlines.
func (o Operation) Halt() Operation {
	return Operation{Kind: OperationHalting}
}

// Run forces plain running, dropping any cycle deadlines.
func (o Operation) Run() Operation {
	return Operation{Kind: OperationRunning}
}
