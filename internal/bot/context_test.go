package bot

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/task"
)

func TestPollDetectionPendingWithoutFrameOrSlot(t *testing.T) {
	ctx, _, _ := newTestContext()
	var slot *task.Task[image.Rectangle]

	update := pollDetection(ctx, 0, &slot, func(d *detect.Cached) (image.Rectangle, error) {
		return d.DetectPlayer(image.Rect(0, 0, 100, 100))
	})

	assert.True(t, update.IsPending())
	assert.Nil(t, slot)
}

func TestPollDetectionRespawnWithoutFrameMisses(t *testing.T) {
	ctx, _, _ := newTestContext()
	withDetector(ctx, &detect.Mock{
		DetectPlayerFn: func(minimap image.Rectangle) (image.Rectangle, error) {
			return image.Rect(10, 10, 14, 14), nil
		},
	})
	var slot *task.Task[image.Rectangle]
	poll := func() task.Update[image.Rectangle] {
		return pollDetection(ctx, 0, &slot, func(d *detect.Cached) (image.Rectangle, error) {
			return d.DetectPlayer(image.Rect(0, 0, 100, 100))
		})
	}

	poll()
	waitTask(t, slot)
	bbox, ok := poll().Ok()
	require.True(t, ok)
	assert.Equal(t, image.Rect(10, 10, 14, 14), bbox)

	// The frame is gone when the task comes up for respawn; the restarted
	// task must miss instead of running against a stale detector.
	ctx.Detector = nil
	poll()
	waitTask(t, slot)
	err, failed := poll().Err()
	require.True(t, failed)
	assert.ErrorIs(t, err, detect.ErrNotFound)
}
