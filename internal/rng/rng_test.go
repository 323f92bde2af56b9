package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicAcrossInstances(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.RangeInt(0, 1000), b.RangeInt(0, 1000))
	}
}

func TestRangeIntBounds(t *testing.T) {
	r := New(7)
	for i := 0; i < 1000; i++ {
		v := r.RangeInt(10, 20)
		require.GreaterOrEqual(t, v, 10)
		require.Less(t, v, 20)
	}
}

func TestRangeIntEmptyRange(t *testing.T) {
	r := New(7)
	assert.Equal(t, 5, r.RangeInt(5, 5))
	assert.Equal(t, 5, r.RangeInt(5, 3))
}

func TestChoose(t *testing.T) {
	r := New(9)

	_, ok := Choose(r, []int(nil))
	assert.False(t, ok)

	items := []string{"a", "b", "c"}
	v, ok := Choose(r, items)
	require.True(t, ok)
	assert.Contains(t, items, v)
}
