package bot

// Threshold holds a detected value with hysteresis: the value only clears
// after maxFailCount consecutive misses, so a single dropped detection does
// not flap downstream state.
type Threshold[T any] struct {
	value        *T
	failCount    uint32
	maxFailCount uint32
}

// NewThreshold returns an empty threshold clearing after maxFailCount misses.
func NewThreshold[T any](maxFailCount uint32) Threshold[T] {
	return Threshold[T]{maxFailCount: maxFailCount}
}

// Value returns the held value, or nil when cleared.
func (t *Threshold[T]) Value() *T { return t.value }

// Has reports whether a value is held.
func (t *Threshold[T]) Has() bool { return t.value != nil }

// Hit stores v and resets the miss counter. Reports whether the threshold
// was previously empty, i.e. this hit is an appearance edge.
func (t *Threshold[T]) Hit(v T) bool {
	appeared := t.value == nil
	t.value = &v
	t.failCount = 0
	return appeared
}

// Miss counts a failed detection, clearing the value once the consecutive
// miss count reaches the maximum.
func (t *Threshold[T]) Miss() {
	if t.value == nil {
		return
	}
	t.failCount++
	if t.failCount >= t.maxFailCount {
		t.value = nil
		t.failCount = 0
	}
}

// Reset clears the value and the miss counter.
func (t *Threshold[T]) Reset() {
	t.value = nil
	t.failCount = 0
}
