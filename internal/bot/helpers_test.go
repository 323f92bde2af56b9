package bot

import (
	"image"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/game"
	"github.com/riverbell/mapler/internal/notify"
	"github.com/riverbell/mapler/internal/rng"
)

// sinkRecorder collects scheduled notification kinds.
type sinkRecorder struct {
	kinds []notify.Kind
}

func (s *sinkRecorder) Schedule(kind notify.Kind) error {
	s.kinds = append(s.kinds, kind)
	return nil
}

func (s *sinkRecorder) UpdateScheduledFrames(capture func() []byte) {}

// keyRecorder collects sent inputs.
type keyRecorder struct {
	sent   []game.KeyKind
	downs  []game.KeyKind
	ups    []game.KeyKind
	clicks []image.Point
}

func (k *keyRecorder) Send(key game.KeyKind) error {
	k.sent = append(k.sent, key)
	return nil
}

func (k *keyRecorder) SendDown(key game.KeyKind) error {
	k.downs = append(k.downs, key)
	return nil
}

func (k *keyRecorder) SendUp(key game.KeyKind) error {
	k.ups = append(k.ups, key)
	return nil
}

func (k *keyRecorder) SendMouse(x, y int, action game.MouseAction) error {
	k.clicks = append(k.clicks, image.Pt(x, y))
	return nil
}

func newTestContext() (*Context, *sinkRecorder, *keyRecorder) {
	sink := &sinkRecorder{}
	keys := &keyRecorder{}
	ctx := &Context{
		Keys:   keys,
		RNG:    rng.New(7),
		Notify: sink,
		Player: &Detecting{},
	}
	return ctx, sink, keys
}

// testIdleMinimap builds an idle minimap with fresh thresholds, the shape
// the detecting state produces.
func testIdleMinimap(bbox image.Rectangle) *MinimapIdle {
	return &MinimapIdle{
		BBox:              bbox,
		rune:              NewThreshold[image.Point](3),
		hasEliteBoss:      NewThreshold[struct{}](2),
		hasGuildiePlayer:  NewThreshold[struct{}](2),
		hasStrangerPlayer: NewThreshold[struct{}](2),
		hasFriendPlayer:   NewThreshold[struct{}](2),
	}
}

func withDetector(ctx *Context, mock *detect.Mock) {
	ctx.Detector = detect.NewCached(mock)
}
