package game

import (
	"errors"
	"strings"
	"syscall"

	"github.com/lxn/win"
)

var ErrWindowNotFound = errors.New("game window not found")

// Handle is an opaque reference to a game window. It is either fixed (an
// already resolved HWND) or resolved lazily by window class name, with an
// optional popup-style discriminator for picking a tool window over the main
// client.
type Handle struct {
	class string
	popup bool

	fixed win.HWND
}

// NewHandle creates a handle resolved by class name lookup.
func NewHandle(class string) Handle {
	return Handle{class: class}
}

// NewPopupHandle creates a handle that resolves to a popup-style window of
// the given class.
func NewPopupHandle(class string) Handle {
	return Handle{class: class, popup: true}
}

// FixedHandle wraps an already known window.
func FixedHandle(hwnd win.HWND) Handle {
	return Handle{fixed: hwnd}
}

func (h Handle) Class() string {
	return h.class
}

// Query resolves the handle to a concrete window. Fixed handles resolve to
// themselves; class handles search through top-level windows each call since
// the game may have restarted.
func (h Handle) Query() (win.HWND, error) {
	if h.fixed != 0 {
		return h.fixed, nil
	}
	if h.class == "" {
		return 0, ErrWindowNotFound
	}

	className, err := syscall.UTF16PtrFromString(h.class)
	if err != nil {
		return 0, err
	}
	hwnd := win.FindWindow(className, nil)
	if hwnd == 0 {
		return 0, ErrWindowNotFound
	}
	if h.popup {
		style := win.GetWindowLong(hwnd, win.GWL_STYLE)
		if uint32(style)&win.WS_POPUP == 0 {
			return 0, ErrWindowNotFound
		}
	}
	return hwnd, nil
}

// Matches reports whether the given window title belongs to this handle's
// class family. Used by capture-handle enumeration on the host side.
func (h Handle) Matches(title string) bool {
	return h.class != "" && strings.Contains(title, h.class)
}
