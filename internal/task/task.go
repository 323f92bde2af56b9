// Package task wraps possibly long-running vision work as cancellable,
// rate-limited background tasks. The tick driver polls completion and never
// blocks; the work itself runs on a bounded worker pool.
package task

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// workers bounds the number of concurrently running detection tasks across
// the process. Vision work is CPU-heavy; four slots keep workers from
// starving the tick thread.
var workers = semaphore.NewWeighted(4)

type status int

const (
	statusPending status = iota
	statusOk
	statusErr
)

// Update is the per-tick triage of a task slot: a fresh value, a fresh
// failure, or nothing new yet.
type Update[T any] struct {
	status status
	value  T
	err    error
}

func Pending[T any]() Update[T] {
	return Update[T]{status: statusPending}
}

func Ok[T any](value T) Update[T] {
	return Update[T]{status: statusOk, value: value}
}

func Fail[T any](err error) Update[T] {
	return Update[T]{status: statusErr, err: err}
}

// Ok returns the value and whether this update carries one.
func (u Update[T]) Ok() (T, bool) {
	return u.value, u.status == statusOk
}

// Err returns the error and whether this update carries one.
func (u Update[T]) Err() (error, bool) {
	return u.err, u.status == statusErr
}

func (u Update[T]) IsPending() bool {
	return u.status == statusPending
}

// Task is one in-flight or completed detection running on a worker. A slot
// (*Task set to nil) cancels by abandonment: the worker may still finish but
// its result is never consumed.
type Task[T any] struct {
	done        chan struct{}
	value       T
	err         error
	completedAt time.Time
	consumed    bool
}

// Completed reports whether the worker has finished.
func (t *Task[T]) Completed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func spawn[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		// Acquire never fails with a background context.
		_ = workers.Acquire(context.Background(), 1)
		defer workers.Release(1)

		t.value, t.err = fn()
		t.completedAt = time.Now()
		close(t.done)
	}()
	return t
}

// Poll drives one task slot through its lifecycle:
//
//   - empty slot: start fn on a worker, report Pending;
//   - running: report Pending;
//   - completed less than repeatDelay ago: report Pending, keeping the
//     caller's cached value usable;
//   - just completed: consume the result, report Ok or Fail;
//   - consumed less than repeatDelay ago: report Pending, keeping the
//     caller's cached value usable;
//   - consumed at least repeatDelay ago: restart fn on a worker.
//
// The delay between consumption and restart is what rate-limits
// re-detection; results themselves are delivered as soon as they exist.
func Poll[T any](slot **Task[T], repeatDelay time.Duration, fn func() (T, error)) Update[T] {
	if *slot == nil {
		*slot = spawn(fn)
		return Pending[T]()
	}
	t := *slot
	if !t.Completed() {
		return Pending[T]()
	}
	if !t.consumed {
		t.consumed = true
		if t.err != nil {
			return Fail[T](t.err)
		}
		return Ok(t.value)
	}
	if time.Since(t.completedAt) >= repeatDelay {
		*slot = spawn(fn)
	}
	return Pending[T]()
}
