package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdHitReportsAppearanceEdge(t *testing.T) {
	threshold := NewThreshold[int](3)

	assert.True(t, threshold.Hit(5))
	require.True(t, threshold.Has())
	assert.Equal(t, 5, *threshold.Value())

	// A second hit is not an edge.
	assert.False(t, threshold.Hit(6))
	assert.Equal(t, 6, *threshold.Value())
}

func TestThresholdHoldsValueThroughMisses(t *testing.T) {
	threshold := NewThreshold[int](3)
	threshold.Hit(5)

	threshold.Miss()
	threshold.Miss()
	assert.True(t, threshold.Has())

	threshold.Miss()
	assert.False(t, threshold.Has())
}

func TestThresholdHitResetsMissCount(t *testing.T) {
	threshold := NewThreshold[int](3)
	threshold.Hit(5)

	threshold.Miss()
	threshold.Miss()
	threshold.Hit(5)

	// The counter restarted; two more misses are not enough to clear.
	threshold.Miss()
	threshold.Miss()
	assert.True(t, threshold.Has())
}

func TestThresholdMissWithoutValueDoesNothing(t *testing.T) {
	threshold := NewThreshold[int](1)

	threshold.Miss()
	threshold.Hit(5)
	threshold.Miss()
	assert.False(t, threshold.Has())
}

func TestThresholdReset(t *testing.T) {
	threshold := NewThreshold[int](3)
	threshold.Hit(5)

	threshold.Reset()
	assert.False(t, threshold.Has())
	assert.True(t, threshold.Hit(5))
}
