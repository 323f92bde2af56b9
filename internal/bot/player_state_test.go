package bot

import (
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/game"
)

func TestUpdatePositionConvertsToBottomLeft(t *testing.T) {
	ctx, _, _ := newTestContext()
	ctx.Minimap = Minimap{Idle: testIdleMinimap(image.Rect(0, 0, 100, 100))}
	withDetector(ctx, &detect.Mock{
		DetectPlayerFn: func(minimap image.Rectangle) (image.Rectangle, error) {
			return image.Rect(10, 20, 14, 24), nil
		},
	})
	state := NewPlayerState(testPlayerConfig())

	ok := state.updatePositionState(ctx)

	require.True(t, ok)
	require.NotNil(t, state.LastKnownPos)
	assert.Equal(t, image.Pt(12, 76), *state.LastKnownPos)
}

func TestUpdatePositionFailsWithoutMinimap(t *testing.T) {
	ctx, _, _ := newTestContext()
	state := NewPlayerState(testPlayerConfig())

	assert.False(t, state.updatePositionState(ctx))
	assert.Nil(t, state.LastKnownPos)
}

func TestUpdatePositionConsumesIgnoreOnce(t *testing.T) {
	ctx, _, _ := newTestContext()
	ctx.Minimap = Minimap{Idle: testIdleMinimap(image.Rect(0, 0, 100, 100))}
	detected := image.Rect(40, 40, 44, 44)
	withDetector(ctx, &detect.Mock{
		DetectPlayerFn: func(minimap image.Rectangle) (image.Rectangle, error) {
			return detected, nil
		},
	})
	state := NewPlayerState(testPlayerConfig())
	pos := image.Pt(90, 90)
	state.LastKnownPos = &pos
	state.ignorePosUpdate = true

	require.True(t, state.updatePositionState(ctx))
	assert.Equal(t, image.Pt(90, 90), *state.LastKnownPos)

	require.True(t, state.updatePositionState(ctx))
	assert.Equal(t, image.Pt(42, 56), *state.LastKnownPos)
}

func TestStationaryAfterMoveTimeoutWithoutMovement(t *testing.T) {
	ctx, _, _ := newTestContext()
	ctx.Minimap = Minimap{Idle: testIdleMinimap(image.Rect(0, 0, 100, 100))}
	withDetector(ctx, &detect.Mock{
		DetectPlayerFn: func(minimap image.Rectangle) (image.Rectangle, error) {
			return image.Rect(40, 40, 44, 44), nil
		},
	})
	state := NewPlayerState(testPlayerConfig())

	for range moveTimeout + 1 {
		require.True(t, state.updatePositionState(ctx))
		ctx.Tick++
	}

	assert.True(t, state.IsStationary)
}

func TestPositionChangeResetsStuckTracking(t *testing.T) {
	ctx, _, _ := newTestContext()
	ctx.Minimap = Minimap{Idle: testIdleMinimap(image.Rect(0, 0, 100, 100))}
	bbox := image.Rect(40, 40, 44, 44)
	withDetector(ctx, &detect.Mock{
		DetectPlayerFn: func(minimap image.Rectangle) (image.Rectangle, error) {
			return bbox, nil
		},
	})
	state := NewPlayerState(testPlayerConfig())
	require.True(t, state.updatePositionState(ctx))
	state.unstuckCount = 3
	state.unstuckTransitionedCount = 1
	state.IsStationary = true

	bbox = image.Rect(50, 40, 54, 44)
	ctx.Tick++
	require.True(t, state.updatePositionState(ctx))

	assert.Equal(t, uint32(0), state.unstuckCount)
	assert.Equal(t, uint32(0), state.unstuckTransitionedCount)
	assert.False(t, state.IsStationary)
}

func TestVelocityGrowsWhileMoving(t *testing.T) {
	state := NewPlayerState(testPlayerConfig())

	for tick := uint64(0); tick < 10; tick++ {
		state.updateVelocity(image.Pt(int(tick)*5, 50), tick)
	}

	assert.Greater(t, state.Velocity[0], 1.0)
	assert.Zero(t, state.Velocity[1])
}

func TestRuneValidationFailureCountsTowardCashShop(t *testing.T) {
	ctx, _, _ := newTestContext()
	state := NewPlayerState(testPlayerConfig())
	state.runeFailedCount = maxRuneFailedCount - 1
	state.runeValidateTimeout = &Timeout{Started: true, Ticks: runeValidateTimeoutTicks}

	state.updateRuneValidatingState(ctx)

	assert.Nil(t, state.runeValidateTimeout)
	assert.Equal(t, uint32(0), state.runeFailedCount)
	assert.True(t, state.runeCashShop)
}

func TestRuneValidationSuccessResetsFailures(t *testing.T) {
	ctx, _, _ := newTestContext()
	ctx.Buffs[detect.BuffRune] = Buff{phase: buffPresent}
	state := NewPlayerState(testPlayerConfig())
	state.runeFailedCount = maxRuneFailedCount - 1
	state.runeValidateTimeout = &Timeout{Started: true, Ticks: runeValidateTimeoutTicks}

	state.updateRuneValidatingState(ctx)

	assert.Nil(t, state.runeValidateTimeout)
	assert.Equal(t, uint32(0), state.runeFailedCount)
	assert.False(t, state.runeCashShop)
}

func TestReplacePriorityActionKeepsPreSwapPosition(t *testing.T) {
	state := NewPlayerState(testPlayerConfig())
	pos := image.Pt(50, 50)
	state.LastKnownPos = &pos

	prev, had := state.ReplacePriorityAction(uuid.New(), ActionSolveRune{})

	assert.False(t, had)
	assert.Equal(t, uuid.Nil, prev)
	assert.True(t, state.ignorePosUpdate)
	assert.True(t, state.resetToIdleNextUpdate)
}

func TestTakePriorityActionBouncesThroughIdle(t *testing.T) {
	state := NewPlayerState(testPlayerConfig())
	id := uuid.New()
	state.SetPriorityAction(id, ActionSolveRune{})
	state.resetToIdleNextUpdate = false

	taken, ok := state.TakePriorityAction()

	assert.True(t, ok)
	assert.Equal(t, id, taken)
	assert.True(t, state.resetToIdleNextUpdate)
	assert.False(t, state.HasPriorityAction())
}

func TestClearActionCompletedPrefersPriority(t *testing.T) {
	state := NewPlayerState(testPlayerConfig())
	state.SetNormalAction(uuid.New(), ActionMove{})
	state.priorityActionID = uuid.New()
	state.priorityAction = ActionSolveRune{}

	state.clearActionCompleted()

	assert.False(t, state.HasPriorityAction())
	assert.True(t, state.HasNormalAction())
}

func TestActionNamesRoundTrip(t *testing.T) {
	assert.Equal(t, "move", actionName(ActionMove{}))
	assert.Equal(t, "key", actionName(ActionKey{Key: game.KeyA}))
	assert.Equal(t, "auto_mob", actionName(ActionAutoMob{}))
	assert.Equal(t, "ping_pong", actionName(ActionPingPong{}))
	assert.Equal(t, "solve_rune", actionName(ActionSolveRune{}))
	assert.Equal(t, "panic", actionName(ActionPanic{}))
	assert.Equal(t, "familiars_swapping", actionName(ActionFamiliarsSwap{}))
}
