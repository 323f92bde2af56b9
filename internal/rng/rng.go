// Package rng provides the deterministic random source shared by the tick
// driver. It is seeded once at startup from the persisted seed so bot
// behavior is reproducible across restarts.
package rng

import (
	"math/rand/v2"
	"time"
)

type Rng struct {
	r *rand.Rand
}

func New(seed uint64) *Rng {
	return &Rng{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// RangeInt returns a uniform value in [lo, hi). An empty range returns lo.
func (r *Rng) RangeInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.r.IntN(hi-lo)
}

// RangeMillis returns a uniform duration in [lo, hi) milliseconds.
func (r *Rng) RangeMillis(lo, hi int) time.Duration {
	return time.Duration(r.RangeInt(lo, hi)) * time.Millisecond
}

// DelayMillis returns base milliseconds plus a uniform jitter in [0, spread).
func (r *Rng) DelayMillis(base, spread int) time.Duration {
	return time.Duration(r.RangeInt(base, base+spread)) * time.Millisecond
}

// Float64 returns a uniform value in [0, 1).
func (r *Rng) Float64() float64 {
	return r.r.Float64()
}

// Choose picks a uniform element from items. Returns false when items is
// empty.
func Choose[T any](r *Rng, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[r.r.IntN(len(items))], true
}
