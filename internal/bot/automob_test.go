package bot

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbell/mapler/internal/pathing"

	"github.com/google/uuid"
)

func autoMobContext(platforms ...pathing.Platform) *Context {
	ctx, _, _ := newTestContext()
	idle := testIdleMinimap(image.Rect(0, 0, 200, 150))
	idle.Platforms = pathing.FindNeighbors(platforms,
		doubleJumpThreshold, jumpThreshold, grapplingMaxThreshold)
	ctx.Minimap = Minimap{Idle: idle}
	return ctx
}

func TestQuadrantRotatesClockwise(t *testing.T) {
	assert.Equal(t, QuadrantTopRight, QuadrantTopLeft.nextClockwise())
	assert.Equal(t, QuadrantBottomRight, QuadrantTopRight.nextClockwise())
	assert.Equal(t, QuadrantBottomLeft, QuadrantBottomRight.nextClockwise())
	assert.Equal(t, QuadrantTopLeft, QuadrantBottomLeft.nextClockwise())
}

func TestAutoMobPathingPointAdvancesQuadrant(t *testing.T) {
	ctx := autoMobContext()
	state := NewPlayerState(PlayerConfig{})
	pos := image.Pt(10, 140) // top-left in bottom-left coordinates
	state.LastKnownPos = &pos
	bound := image.Rect(0, 0, 200, 150)

	point := state.AutoMobPathingPoint(ctx, bound)

	quadrant, ok := state.AutoMobLastQuadrant()
	require.True(t, ok)
	assert.Equal(t, QuadrantTopRight, quadrant)
	// The point falls inside the next quadrant, x-wise.
	assert.GreaterOrEqual(t, point.X, 100)
	assert.Less(t, point.X, 200)

	state.AutoMobPathingPoint(ctx, bound)
	quadrant, _ = state.AutoMobLastQuadrant()
	assert.Equal(t, QuadrantBottomRight, quadrant)
}

func TestAutoMobPathingPointPrefersPlatformInQuadrant(t *testing.T) {
	// One platform overlapping the top-right quadrant (top-left y < 75
	// means bottom-left y > 75).
	ctx := autoMobContext(pathing.New(120, 180, 100))
	state := NewPlayerState(PlayerConfig{})
	state.autoMobHasQuadrant = true
	state.autoMobLastQuadrant = QuadrantTopLeft
	bound := image.Rect(0, 0, 200, 150)

	point := state.AutoMobPathingPoint(ctx, bound)

	assert.Equal(t, 100, point.Y)
	assert.GreaterOrEqual(t, point.X, 120)
	assert.Less(t, point.X, 180)
}

func TestAutoMobPickReachableYPosition(t *testing.T) {
	ctx := autoMobContext()
	state := NewPlayerState(PlayerConfig{})
	state.autoMobReachableY = map[int]uint32{
		100: autoMobReachableYSolidifyCount,
		120: autoMobReachableYSolidifyCount,
		150: autoMobReachableYSolidifyCount,
	}

	picked, ok := state.AutoMobPickReachableYPosition(ctx, image.Pt(50, 125))
	require.True(t, ok)
	assert.Equal(t, image.Pt(50, 120), picked)
}

func TestAutoMobPickDropsSolidifiedIgnoredX(t *testing.T) {
	ctx := autoMobContext()
	state := NewPlayerState(PlayerConfig{})
	state.autoMobReachableY = map[int]uint32{50: autoMobReachableYSolidifyCount}
	state.autoMobIgnoreXs = map[int][]ignoreRange{
		50: {{Start: 53, End: 58, Count: autoMobIgnoreXsSolidifyCount}},
	}

	_, ok := state.AutoMobPickReachableYPosition(ctx, image.Pt(55, 50))
	assert.False(t, ok)

	// An unsolidified range does not drop the mob.
	state.autoMobIgnoreXs[50] = []ignoreRange{{Start: 53, End: 58, Count: 1}}
	_, ok = state.AutoMobPickReachableYPosition(ctx, image.Pt(55, 50))
	assert.True(t, ok)
}

func TestAutoMobPickDropsPositionOutsideQuadrants(t *testing.T) {
	ctx := autoMobContext()
	state := NewPlayerState(PlayerConfig{})
	state.autoMobReachableY = map[int]uint32{50: autoMobReachableYSolidifyCount}
	current := image.Rect(0, 0, 50, 100)
	next := image.Rect(50, 0, 100, 100)
	state.autoMobQuadrantBound = &current
	state.autoMobNextQuadBound = &next

	_, ok := state.AutoMobPickReachableYPosition(ctx, image.Pt(150, 50))
	assert.False(t, ok)

	_, ok = state.AutoMobPickReachableYPosition(ctx, image.Pt(60, 50))
	assert.True(t, ok)
}

func TestAutoMobPopulatesReachableYFromPlatforms(t *testing.T) {
	ctx := autoMobContext(pathing.New(0, 100, 40), pathing.New(0, 100, 80))
	state := NewPlayerState(PlayerConfig{})
	pos := image.Pt(10, 60)
	state.LastKnownPos = &pos

	state.autoMobPopulateReachableY(ctx)

	assert.Equal(t, uint32(autoMobReachableYSolidifyCount), state.autoMobReachableY[40])
	assert.Equal(t, uint32(autoMobReachableYSolidifyCount), state.autoMobReachableY[80])
	// The player's own y starts one short of solid.
	assert.Equal(t, uint32(autoMobReachableYSolidifyCount-1), state.autoMobReachableY[60])
}

func TestAutoMobTrackReachableY(t *testing.T) {
	state := NewPlayerState(PlayerConfig{})
	state.autoMobReachableY = map[int]uint32{100: 1, 120: 2}
	pos := image.Pt(50, 120)
	state.LastKnownPos = &pos

	// Aimed for 100 but landed at 120: 100 decrements away, 120 grows.
	state.autoMobTrackReachableY(100)

	_, has100 := state.autoMobReachableY[100]
	assert.False(t, has100)
	assert.Equal(t, uint32(3), state.autoMobReachableY[120])
}

func TestAutoMobTrackIgnoreXsAbortAndRecover(t *testing.T) {
	ctx := autoMobContext(pathing.New(0, 200, 50))
	state := NewPlayerState(PlayerConfig{})
	state.autoMobReachableY = map[int]uint32{50: autoMobReachableYSolidifyCount}
	state.SetNormalAction(uuid.New(), ActionAutoMob{
		Position: Position{X: 55, Y: 50},
	})

	for i := uint32(1); i <= autoMobIgnoreXsSolidifyCount; i++ {
		state.autoMobTrackIgnoreXs(ctx, true)
		ranges := state.autoMobIgnoreXs[50]
		require.Len(t, ranges, 1)
		assert.Equal(t, i, ranges[0].Count)
	}
	assert.Equal(t, ignoreRange{Start: 52, End: 59, Count: autoMobIgnoreXsSolidifyCount},
		state.autoMobIgnoreXs[50][0])

	// A solidified range no longer decrements on success.
	state.autoMobTrackIgnoreXs(ctx, false)
	assert.Equal(t, uint32(autoMobIgnoreXsSolidifyCount), state.autoMobIgnoreXs[50][0].Count)
}

func TestAutoMobTrackIgnoreXsRemovedAtZero(t *testing.T) {
	ctx := autoMobContext(pathing.New(0, 200, 50))
	state := NewPlayerState(PlayerConfig{})
	state.autoMobReachableY = map[int]uint32{50: autoMobReachableYSolidifyCount}
	state.autoMobIgnoreXs = map[int][]ignoreRange{
		50: {{Start: 52, End: 59, Count: 1}},
	}
	state.SetNormalAction(uuid.New(), ActionAutoMob{
		Position: Position{X: 55, Y: 50},
	})

	state.autoMobTrackIgnoreXs(ctx, false)
	assert.Empty(t, state.autoMobIgnoreXs[50])
}

func TestMergeIgnoreRangesSolidifiedAbsorbsOverlap(t *testing.T) {
	ranges := []ignoreRange{
		{Start: 45, End: 55, Count: autoMobIgnoreXsSolidifyCount},
		{Start: 54, End: 64, Count: 1},
	}
	require.True(t, shouldMergeIgnoreRanges(ranges))

	merged := mergeIgnoreRanges(ranges)
	require.Len(t, merged, 1)
	assert.Equal(t, ignoreRange{Start: 45, End: 64, Count: autoMobIgnoreXsSolidifyCount}, merged[0])
}

func TestMergeIgnoreRangesUnsolidifiedStaySeparate(t *testing.T) {
	ranges := []ignoreRange{
		{Start: 45, End: 55, Count: 1},
		{Start: 54, End: 64, Count: 1},
	}
	assert.False(t, shouldMergeIgnoreRanges(ranges))
	assert.Len(t, mergeIgnoreRanges(ranges), 2)
}

func TestAutoMobPopulateIgnoreXsFromPlatformGaps(t *testing.T) {
	ctx, _, _ := newTestContext()
	idle := testIdleMinimap(image.Rect(0, 0, 100, 100))
	idle.Platforms = pathing.FindNeighbors([]pathing.Platform{
		pathing.New(1, 5, 10),
		pathing.New(10, 15, 10),
		pathing.New(20, 25, 10),
		pathing.New(0, 10, 5),
	}, doubleJumpThreshold, jumpThreshold, grapplingMaxThreshold)
	ctx.Minimap = Minimap{Idle: idle}
	state := NewPlayerState(PlayerConfig{})

	state.autoMobPopulateIgnoreXs(ctx)

	assert.Equal(t, []ignoreRange{
		{Start: 0, End: 1, Count: autoMobIgnoreXsSolidifyCount},
		{Start: 5, End: 10, Count: autoMobIgnoreXsSolidifyCount},
		{Start: 15, End: 20, Count: autoMobIgnoreXsSolidifyCount},
		{Start: 25, End: 100, Count: autoMobIgnoreXsSolidifyCount},
	}, state.autoMobIgnoreXs[10])
	assert.Equal(t, []ignoreRange{
		{Start: 10, End: 100, Count: autoMobIgnoreXsSolidifyCount},
	}, state.autoMobIgnoreXs[5])
}
