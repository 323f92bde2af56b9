package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingQueue(s *DefaultKeySender) []queuedInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queuedInput(nil), s.queue...)
}

func TestSendQueuesPressWithoutBlocking(t *testing.T) {
	s := NewDefaultKeySender(KeySenderMethod{}, nil)

	start := time.Now()
	require.NoError(t, s.Send(KeyA))
	require.NoError(t, s.Send(KeyB))
	elapsed := time.Since(start)

	// The humanized delay lives in the queue, not in the caller.
	assert.Less(t, elapsed, s.downDelay)

	queue := pendingQueue(s)
	require.Len(t, queue, 4)
	assert.True(t, queue[0].down)
	assert.False(t, queue[1].down)
	assert.Equal(t, KeyA, queue[0].key)
	assert.Equal(t, KeyB, queue[2].key)
}

func TestSendSerializesOverlappingPresses(t *testing.T) {
	s := NewDefaultKeySender(KeySenderMethod{}, nil)

	require.NoError(t, s.Send(KeySpace))
	require.NoError(t, s.Send(KeySpace))

	queue := pendingQueue(s)
	require.Len(t, queue, 4)
	// The second down waits for the first press to release.
	assert.False(t, queue[2].due.Before(queue[1].due))
	for i := 1; i < len(queue); i++ {
		assert.False(t, queue[i].due.Before(queue[i-1].due))
	}
}

func TestFlushReleasesOnlyDueEvents(t *testing.T) {
	s := NewDefaultKeySender(KeySenderMethod{}, nil)
	require.NoError(t, s.Send(KeyA))

	s.Flush(time.Now().Add(-time.Second))
	assert.Len(t, pendingQueue(s), 2)

	s.Flush(time.Now().Add(time.Minute))
	assert.Empty(t, pendingQueue(s))
}

func TestCloseDropsQueuedPresses(t *testing.T) {
	s := NewDefaultKeySender(KeySenderMethod{}, nil)
	require.NoError(t, s.Send(KeyA))

	require.NoError(t, s.Close())

	assert.Empty(t, pendingQueue(s))
}
