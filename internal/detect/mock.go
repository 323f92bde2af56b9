package detect

import (
	"image"

	"github.com/riverbell/mapler/internal/game"
)

// Mock is a func-field Detector for tests. Unset methods fail with
// ErrNotFound so callers exercise their failure paths by default.
type Mock struct {
	FrameFn                            func() *game.Frame
	DetectMinimapFn                    func(whiteness uint8) (image.Rectangle, error)
	DetectMinimapRuneFn                func(minimap image.Rectangle) (image.Rectangle, error)
	DetectMinimapPortalsFn             func(minimap image.Rectangle) ([]image.Rectangle, error)
	DetectPlayerFn                     func(minimap image.Rectangle) (image.Rectangle, error)
	DetectPlayerKindFn                 func(minimap image.Rectangle, kind OtherPlayerKind) (bool, error)
	DetectPlayerHealthBarFn            func() (image.Rectangle, error)
	DetectPlayerCurrentMaxHealthBarsFn func(bar image.Rectangle) (image.Rectangle, image.Rectangle, error)
	DetectPlayerHealthFn               func(current, max image.Rectangle) (int, int, error)
	DetectPlayerIsDeadFn               func() (bool, error)
	DetectTombOKButtonFn               func() (image.Rectangle, error)
	DetectEliteBossBarFn               func() (bool, error)
	DetectArrowSpamOpenFn              func() (bool, error)
	DetectPlayerBuffFn                 func(kind BuffKind) (bool, error)
	DetectSkillOffCooldownFn           func(kind SkillKind) (bool, error)
}

var _ Detector = (*Mock)(nil)

func (m *Mock) Frame() *game.Frame {
	if m.FrameFn != nil {
		return m.FrameFn()
	}
	return nil
}

func (m *Mock) DetectMinimap(whiteness uint8) (image.Rectangle, error) {
	if m.DetectMinimapFn != nil {
		return m.DetectMinimapFn(whiteness)
	}
	return image.Rectangle{}, ErrNotFound
}

func (m *Mock) DetectMinimapRune(minimap image.Rectangle) (image.Rectangle, error) {
	if m.DetectMinimapRuneFn != nil {
		return m.DetectMinimapRuneFn(minimap)
	}
	return image.Rectangle{}, ErrNotFound
}

func (m *Mock) DetectMinimapPortals(minimap image.Rectangle) ([]image.Rectangle, error) {
	if m.DetectMinimapPortalsFn != nil {
		return m.DetectMinimapPortalsFn(minimap)
	}
	return nil, ErrNotFound
}

func (m *Mock) DetectPlayer(minimap image.Rectangle) (image.Rectangle, error) {
	if m.DetectPlayerFn != nil {
		return m.DetectPlayerFn(minimap)
	}
	return image.Rectangle{}, ErrNotFound
}

func (m *Mock) DetectPlayerKind(minimap image.Rectangle, kind OtherPlayerKind) (bool, error) {
	if m.DetectPlayerKindFn != nil {
		return m.DetectPlayerKindFn(minimap, kind)
	}
	return false, ErrNotFound
}

func (m *Mock) DetectPlayerHealthBar() (image.Rectangle, error) {
	if m.DetectPlayerHealthBarFn != nil {
		return m.DetectPlayerHealthBarFn()
	}
	return image.Rectangle{}, ErrNotFound
}

func (m *Mock) DetectPlayerCurrentMaxHealthBars(bar image.Rectangle) (image.Rectangle, image.Rectangle, error) {
	if m.DetectPlayerCurrentMaxHealthBarsFn != nil {
		return m.DetectPlayerCurrentMaxHealthBarsFn(bar)
	}
	return image.Rectangle{}, image.Rectangle{}, ErrNotFound
}

func (m *Mock) DetectPlayerHealth(current, max image.Rectangle) (int, int, error) {
	if m.DetectPlayerHealthFn != nil {
		return m.DetectPlayerHealthFn(current, max)
	}
	return 0, 0, ErrNotFound
}

func (m *Mock) DetectPlayerIsDead() (bool, error) {
	if m.DetectPlayerIsDeadFn != nil {
		return m.DetectPlayerIsDeadFn()
	}
	return false, ErrNotFound
}

func (m *Mock) DetectTombOKButton() (image.Rectangle, error) {
	if m.DetectTombOKButtonFn != nil {
		return m.DetectTombOKButtonFn()
	}
	return image.Rectangle{}, ErrNotFound
}

func (m *Mock) DetectEliteBossBar() (bool, error) {
	if m.DetectEliteBossBarFn != nil {
		return m.DetectEliteBossBarFn()
	}
	return false, ErrNotFound
}

func (m *Mock) DetectArrowSpamOpen() (bool, error) {
	if m.DetectArrowSpamOpenFn != nil {
		return m.DetectArrowSpamOpenFn()
	}
	return false, ErrNotFound
}

func (m *Mock) DetectPlayerBuff(kind BuffKind) (bool, error) {
	if m.DetectPlayerBuffFn != nil {
		return m.DetectPlayerBuffFn(kind)
	}
	return false, ErrNotFound
}

func (m *Mock) DetectSkillOffCooldown(kind SkillKind) (bool, error) {
	if m.DetectSkillOffCooldownFn != nil {
		return m.DetectSkillOffCooldownFn(kind)
	}
	return false, ErrNotFound
}
