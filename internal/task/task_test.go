package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCompleted[T any](t *testing.T, slot *Task[T]) {
	t.Helper()
	require.Eventually(t, slot.Completed, time.Second, time.Millisecond)
}

func TestPollStartsTaskAndReportsPending(t *testing.T) {
	var slot *Task[int]

	update := Poll(&slot, 0, func() (int, error) { return 7, nil })
	assert.True(t, update.IsPending())
	require.NotNil(t, slot)
}

func TestPollConsumesResultOnce(t *testing.T) {
	var slot *Task[int]

	Poll(&slot, time.Hour, func() (int, error) { return 7, nil })
	waitCompleted(t, slot)

	update := Poll(&slot, time.Hour, func() (int, error) { return 0, nil })
	v, ok := update.Ok()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	// The consumed result is not re-delivered and the slot is held back
	// until the repeat delay elapses.
	update = Poll(&slot, time.Hour, func() (int, error) { return 0, nil })
	assert.True(t, update.IsPending())
	assert.NotNil(t, slot)
}

func TestPollReportsError(t *testing.T) {
	var slot *Task[int]
	boom := errors.New("boom")

	Poll(&slot, time.Hour, func() (int, error) { return 0, boom })
	waitCompleted(t, slot)

	update := Poll(&slot, time.Hour, func() (int, error) { return 0, nil })
	err, ok := update.Err()
	require.True(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestPollRestartsAfterRepeatDelayElapsed(t *testing.T) {
	var slot *Task[int]

	Poll(&slot, 0, func() (int, error) { return 7, nil })
	waitCompleted(t, slot)
	v, ok := Poll(&slot, 0, func() (int, error) { return 0, nil }).Ok()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	// Zero delay: the next poll respawns immediately with the new fn.
	update := Poll(&slot, 0, func() (int, error) { return 9, nil })
	assert.True(t, update.IsPending())
	waitCompleted(t, slot)
	v, ok = Poll(&slot, 0, func() (int, error) { return 0, nil }).Ok()
	require.True(t, ok)
	assert.Equal(t, 9, v)
}

func TestSlotClearCancelsByAbandonment(t *testing.T) {
	var slot *Task[int]
	release := make(chan struct{})

	Poll(&slot, 0, func() (int, error) {
		<-release
		return 1, nil
	})
	abandoned := slot
	slot = nil
	close(release)
	waitCompleted(t, abandoned)

	// A fresh poll starts a brand new task; the abandoned result is gone.
	update := Poll(&slot, 0, func() (int, error) { return 2, nil })
	assert.True(t, update.IsPending())
	waitCompleted(t, slot)
	v, ok := Poll(&slot, 0, func() (int, error) { return 0, nil }).Ok()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}
