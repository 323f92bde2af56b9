package bot

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/game"
	"github.com/riverbell/mapler/internal/notify"
	"github.com/riverbell/mapler/internal/task"
)

func waitTask[T any](t *testing.T, slot *task.Task[T]) {
	t.Helper()
	require.NotNil(t, slot)
	require.Eventually(t, slot.Completed, time.Second, time.Millisecond)
}

func TestCenterOfBBoxConvertsToBottomLeft(t *testing.T) {
	minimap := image.Rect(0, 0, 100, 100)
	bbox := image.Rect(40, 40, 60, 60)

	assert.Equal(t, image.Pt(50, 41), centerOfBBox(bbox, minimap))
}

func TestRuneAppearanceSchedulesOneNotification(t *testing.T) {
	ctx, sink, _ := newTestContext()
	withDetector(ctx, &detect.Mock{
		DetectMinimapRuneFn: func(minimap image.Rectangle) (image.Rectangle, error) {
			return image.Rect(40, 40, 60, 60), nil
		},
	})
	minimap := image.Rect(0, 0, 100, 100)
	rune := NewThreshold[image.Point](3)
	var slot *task.Task[image.Point]

	rune = updateRuneTask(ctx, &slot, minimap, rune)
	assert.False(t, rune.Has())
	waitTask(t, slot)

	rune = updateRuneTask(ctx, &slot, minimap, rune)
	require.True(t, rune.Has())
	assert.Equal(t, image.Pt(50, 41), *rune.Value())
	assert.Equal(t, []notify.Kind{notify.RuneAppear}, sink.kinds)

	// Still held: no second notification.
	rune = updateRuneTask(ctx, &slot, minimap, rune)
	assert.Equal(t, []notify.Kind{notify.RuneAppear}, sink.kinds)
}

func TestRuneNotNotifiedWhileHalting(t *testing.T) {
	ctx, sink, _ := newTestContext()
	ctx.Operation = Operation{Kind: OperationHalting}
	withDetector(ctx, &detect.Mock{
		DetectMinimapRuneFn: func(minimap image.Rectangle) (image.Rectangle, error) {
			return image.Rect(40, 40, 60, 60), nil
		},
	})
	rune := NewThreshold[image.Point](3)
	var slot *task.Task[image.Point]

	rune = updateRuneTask(ctx, &slot, image.Rect(0, 0, 100, 100), rune)
	waitTask(t, slot)
	rune = updateRuneTask(ctx, &slot, image.Rect(0, 0, 100, 100), rune)

	require.True(t, rune.Has())
	assert.Empty(t, sink.kinds)
}

func TestRuneHeldWhileSolving(t *testing.T) {
	ctx, _, _ := newTestContext()
	ctx.Player = &SolvingRune{}
	rune := NewThreshold[image.Point](3)
	rune.Hit(image.Pt(10, 10))
	var slot *task.Task[image.Point]

	// No detection runs while the player is at the rune.
	rune = updateRuneTask(ctx, &slot, image.Rect(0, 0, 100, 100), rune)
	assert.Nil(t, slot)
	assert.True(t, rune.Has())
}

func TestMergePortalsInvalidatesAfterMisses(t *testing.T) {
	portal := image.Rect(10, 10, 20, 20)
	old := map[image.Rectangle]struct{}{portal: {}}
	invalidate := map[image.Rectangle]uint32{}

	// Missing twice: still kept.
	kept := mergePortalsAndInvalidate(old, nil, invalidate)
	assert.Contains(t, kept, portal)
	kept = mergePortalsAndInvalidate(old, nil, invalidate)
	assert.Contains(t, kept, portal)

	// Third miss drops it and clears the counter.
	kept = mergePortalsAndInvalidate(old, nil, invalidate)
	assert.NotContains(t, kept, portal)
	assert.Empty(t, invalidate)
}

func TestMergePortalsSeenAgainResetsCounter(t *testing.T) {
	portal := image.Rect(10, 10, 20, 20)
	old := map[image.Rectangle]struct{}{portal: {}}
	invalidate := map[image.Rectangle]uint32{}

	mergePortalsAndInvalidate(old, nil, invalidate)
	mergePortalsAndInvalidate(old, nil, invalidate)
	mergePortalsAndInvalidate(old, map[image.Rectangle]struct{}{portal: {}}, invalidate)
	assert.Equal(t, uint32(0), invalidate[portal])

	kept := mergePortalsAndInvalidate(old, nil, invalidate)
	assert.Contains(t, kept, portal)
}

func TestMergePortalsOverflowClearsAll(t *testing.T) {
	old := map[image.Rectangle]struct{}{}
	for i := 0; i < maxPortalsCount+1; i++ {
		old[image.Rect(i*10, 0, i*10+5, 5)] = struct{}{}
	}
	invalidate := map[image.Rectangle]uint32{image.Rect(0, 0, 5, 5): 1}

	kept := mergePortalsAndInvalidate(old, nil, invalidate)
	assert.Nil(t, kept)
	assert.Empty(t, invalidate)
}

func TestMinimapFallsBackToDetectingOnBothAnchorsMismatch(t *testing.T) {
	ctx, _, _ := newTestContext()
	frame := game.NewFrame(100, 100)
	withDetector(ctx, &detect.Mock{
		FrameFn: func() *game.Frame { return frame },
	})

	idle := testIdleMinimap(image.Rect(0, 0, 100, 100))
	idle.anchors = anchors{
		TL: anchor{Point: image.Pt(0, 0), Pixel: [4]byte{200, 200, 200, 255}},
		BR: anchor{Point: image.Pt(99, 99), Pixel: [4]byte{200, 200, 200, 255}},
	}
	var state MinimapState
	state.resetSubTasks()

	next, _ := Minimap{Idle: idle}.Update(ctx, &state)
	assert.False(t, next.IsIdle())
}

func TestMinimapPartialOverlapOnOneAnchorMismatch(t *testing.T) {
	ctx, _, _ := newTestContext()
	frame := game.NewFrame(100, 100)
	frame.SetPixel(0, 0, [4]byte{200, 200, 200, 255})
	withDetector(ctx, &detect.Mock{
		FrameFn: func() *game.Frame { return frame },
	})

	idle := testIdleMinimap(image.Rect(0, 0, 100, 100))
	idle.anchors = anchors{
		TL: anchor{Point: image.Pt(0, 0), Pixel: [4]byte{200, 200, 200, 255}},
		BR: anchor{Point: image.Pt(99, 99), Pixel: [4]byte{200, 200, 200, 255}},
	}
	var state MinimapState
	state.resetSubTasks()

	next, _ := Minimap{Idle: idle}.Update(ctx, &state)
	require.True(t, next.IsIdle())
	assert.True(t, next.Idle.PartiallyOverlapping)
}

func TestMinimapKeptWhileInCashShop(t *testing.T) {
	ctx, _, _ := newTestContext()
	ctx.Player = &CashShopThenExit{}

	idle := testIdleMinimap(image.Rect(0, 0, 100, 100))
	var state MinimapState
	state.resetSubTasks()

	next, _ := Minimap{Idle: idle}.Update(ctx, &state)
	assert.True(t, next.IsIdle())
}

func TestIsPositionInsidePortal(t *testing.T) {
	idle := testIdleMinimap(image.Rect(0, 0, 100, 100))
	idle.portals = []image.Rectangle{image.Rect(10, 10, 20, 20)}

	assert.True(t, idle.IsPositionInsidePortal(image.Pt(15, 15)))
	assert.False(t, idle.IsPositionInsidePortal(image.Pt(20, 15)))
	assert.False(t, idle.IsPositionInsidePortal(image.Pt(5, 5)))
}

func TestAnchorMatchTolerance(t *testing.T) {
	base := [4]byte{200, 200, 200, 255}

	assert.True(t, anchorMatch(base, [4]byte{210, 190, 200, 255}))
	// Average channel error beyond 45 rejects.
	assert.False(t, anchorMatch(base, [4]byte{60, 60, 60, 255}))
}

func TestAnchorAtWalksDiagonal(t *testing.T) {
	frame := game.NewFrame(50, 50)
	frame.SetPixel(3, 3, [4]byte{255, 255, 255, 255})

	got, err := anchorAt(frame, image.Pt(0, 0), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(3, 3), got.Point)

	_, err = anchorAt(frame, image.Pt(49, 49), 10, -1)
	assert.ErrorIs(t, err, detect.ErrNotFound)
}
