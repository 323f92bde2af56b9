package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperationWithoutCycleRunsPlain(t *testing.T) {
	op := NewOperation(0, time.Second, time.Now())
	assert.Equal(t, OperationRunning, op.Kind)

	op, cycled := op.Advance(time.Now().Add(time.Hour))
	assert.Equal(t, OperationRunning, op.Kind)
	assert.False(t, cycled)
}

func TestOperationCyclesRunToHalt(t *testing.T) {
	start := time.Now()
	op := NewOperation(time.Second, 500*time.Millisecond, start)
	require.Equal(t, OperationRunUntil, op.Kind)

	op, cycled := op.Advance(start.Add(999 * time.Millisecond))
	assert.False(t, cycled)
	assert.Equal(t, OperationRunUntil, op.Kind)

	op, cycled = op.Advance(start.Add(time.Second))
	assert.True(t, cycled)
	assert.Equal(t, OperationHaltUntil, op.Kind)
	assert.True(t, op.Halting())
}

func TestOperationCyclesHaltBackToRun(t *testing.T) {
	start := time.Now()
	op := NewOperation(time.Second, 500*time.Millisecond, start)
	op, _ = op.Advance(start.Add(time.Second))
	require.Equal(t, OperationHaltUntil, op.Kind)

	// cycledToHalt only fires on the run-to-halt edge.
	op, cycled := op.Advance(start.Add(1500 * time.Millisecond))
	assert.False(t, cycled)
	assert.Equal(t, OperationRunUntil, op.Kind)
	assert.False(t, op.Halting())
}

func TestOperationHaltDropsCycle(t *testing.T) {
	op := NewOperation(time.Second, time.Second, time.Now())
	op = op.Halt()
	assert.Equal(t, OperationHalting, op.Kind)

	op, cycled := op.Advance(time.Now().Add(time.Hour))
	assert.False(t, cycled)
	assert.Equal(t, OperationHalting, op.Kind)

	op = op.Run()
	assert.Equal(t, OperationRunning, op.Kind)
}

func TestNextTimeoutLifecycle(t *testing.T) {
	timeout, lifecycle := NextTimeout(Timeout{}, 2)
	assert.Equal(t, LifecycleStarted, lifecycle)

	timeout, lifecycle = NextTimeout(timeout, 2)
	assert.Equal(t, LifecycleUpdated, lifecycle)
	assert.Equal(t, uint32(1), timeout.Ticks)

	_, lifecycle = NextTimeout(timeout, 2)
	assert.Equal(t, LifecycleEnded, lifecycle)
}
