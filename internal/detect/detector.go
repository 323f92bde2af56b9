// Package detect defines the vision capability the control core consumes.
// Concrete detection (template matching, ML rune recognition) lives in a
// host collaborator; the core only sees this interface plus raw frame
// pixels.
package detect

import (
	"errors"
	"image"

	"github.com/riverbell/mapler/internal/game"
)

var ErrNotFound = errors.New("detection target not found")

// OtherPlayerKind distinguishes the minimap dot color of other players.
type OtherPlayerKind int

const (
	OtherPlayerGuildie OtherPlayerKind = iota
	OtherPlayerStranger
	OtherPlayerFriend
)

func (k OtherPlayerKind) String() string {
	switch k {
	case OtherPlayerGuildie:
		return "guildie"
	case OtherPlayerStranger:
		return "stranger"
	case OtherPlayerFriend:
		return "friend"
	}
	return "unknown"
}

// BuffKind identifies a detectable player buff icon.
type BuffKind int

const (
	BuffRune BuffKind = iota
	BuffSayramElixir
	BuffExpCoupon
)

const BuffKindCount = 3

// SkillKind identifies a skill whose cooldown state is detected on screen.
type SkillKind int

const (
	SkillErdaShower SkillKind = iota
)

const SkillKindCount = 1

// Detector is the full set of vision operations the core expects. All
// rectangles are in top-left frame coordinates. Every method may fail; the
// callers absorb transient failures through thresholds and the task harness.
type Detector interface {
	// Frame returns the captured frame backing this detector.
	Frame() *game.Frame

	DetectMinimap(whiteness uint8) (image.Rectangle, error)
	DetectMinimapRune(minimap image.Rectangle) (image.Rectangle, error)
	DetectMinimapPortals(minimap image.Rectangle) ([]image.Rectangle, error)
	DetectPlayer(minimap image.Rectangle) (image.Rectangle, error)
	DetectPlayerKind(minimap image.Rectangle, kind OtherPlayerKind) (bool, error)

	DetectPlayerHealthBar() (image.Rectangle, error)
	DetectPlayerCurrentMaxHealthBars(bar image.Rectangle) (image.Rectangle, image.Rectangle, error)
	DetectPlayerHealth(current, max image.Rectangle) (int, int, error)
	DetectPlayerIsDead() (bool, error)
	DetectTombOKButton() (image.Rectangle, error)

	DetectEliteBossBar() (bool, error)
	DetectArrowSpamOpen() (bool, error)
	DetectPlayerBuff(kind BuffKind) (bool, error)
	DetectSkillOffCooldown(kind SkillKind) (bool, error)
}
