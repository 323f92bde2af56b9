package pathing

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNeighborsSameLevelWithinDoubleJump(t *testing.T) {
	platforms := []Platform{
		New(0, 10, 20),
		New(15, 25, 20), // gap 5 <= 25
		New(60, 70, 20), // gap 35 > 25
	}

	linked := FindNeighbors(platforms, 25, 7, 41)

	require.Len(t, linked, 3)
	assert.Contains(t, linked[0].Neighbors, platforms[1])
	assert.NotContains(t, linked[0].Neighbors, platforms[2])
}

func TestFindNeighborsVertical(t *testing.T) {
	base := New(0, 30, 10)
	jumpable := New(5, 20, 15)   // dy 5 <= jump 7
	grappable := New(5, 20, 45)  // dy 35 <= grapple 41
	tooHigh := New(5, 20, 60)    // dy 50 > grapple
	noOverlap := New(50, 60, 15) // dy ok but no x overlap

	linked := FindNeighbors([]Platform{base, jumpable, grappable, tooHigh, noOverlap}, 25, 7, 41)

	neighbors := linked[0].Neighbors
	assert.Contains(t, neighbors, jumpable)
	assert.Contains(t, neighbors, grappable)
	assert.NotContains(t, neighbors, tooHigh)
	assert.NotContains(t, neighbors, noOverlap)

	// Dropping down works regardless of height.
	fromHigh := linked[3]
	assert.Contains(t, fromHigh.Neighbors, base)
}

func TestBound(t *testing.T) {
	minimap := image.Rect(0, 0, 100, 100)
	linked := FindNeighbors([]Platform{
		New(10, 40, 20),
		New(30, 80, 60),
	}, 25, 7, 41)

	bound, ok := Bound(minimap, linked)

	require.True(t, ok)
	assert.Equal(t, 10, bound.Min.X)
	assert.Equal(t, 80, bound.Max.X)
	// y flipped: highest platform (y=60) maps to top 100-60=40, padded by 1.
	assert.Equal(t, 39, bound.Min.Y)
	assert.Equal(t, 81, bound.Max.Y)
}

func TestBoundEmpty(t *testing.T) {
	_, ok := Bound(image.Rect(0, 0, 100, 100), nil)
	assert.False(t, ok)
}

func TestGroupByYSortsRanges(t *testing.T) {
	linked := FindNeighbors([]Platform{
		New(20, 25, 10),
		New(1, 5, 10),
		New(10, 15, 10),
		New(0, 10, 5),
	}, 25, 7, 41)

	grouped := GroupByY(linked)

	require.Len(t, grouped, 2)
	require.Len(t, grouped[10], 3)
	assert.Equal(t, 1, grouped[10][0].XStart)
	assert.Equal(t, 10, grouped[10][1].XStart)
	assert.Equal(t, 20, grouped[10][2].XStart)
}
