package game

import "github.com/lxn/win"

// KeyKind identifies a physical key the bot can press. Values map 1:1 to
// Windows virtual-key codes through vkCode.
type KeyKind int

const (
	KeyNone KeyKind = iota
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeySpace
	KeyEnter
	KeyEsc
	KeyShift
	KeyCtrl
	KeyAlt
	KeyTilde
	KeyQuote
	KeySemicolon
	KeyComma
	KeyPeriod
	KeySlash
	KeyInsert
	KeyDelete
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var keyNames = map[KeyKind]string{
	KeyNone: "none", KeyA: "a", KeyB: "b", KeyC: "c", KeyD: "d", KeyE: "e",
	KeyF: "f", KeyG: "g", KeyH: "h", KeyI: "i", KeyJ: "j", KeyK: "k",
	KeyL: "l", KeyM: "m", KeyN: "n", KeyO: "o", KeyP: "p", KeyQ: "q",
	KeyR: "r", KeyS: "s", KeyT: "t", KeyU: "u", KeyV: "v", KeyW: "w",
	KeyX: "x", KeyY: "y", KeyZ: "z",
	Key0: "0", Key1: "1", Key2: "2", Key3: "3", Key4: "4", Key5: "5",
	Key6: "6", Key7: "7", Key8: "8", Key9: "9",
	KeyUp: "up", KeyDown: "down", KeyLeft: "left", KeyRight: "right",
	KeySpace: "space", KeyEnter: "enter", KeyEsc: "esc", KeyShift: "shift",
	KeyCtrl: "ctrl", KeyAlt: "alt", KeyTilde: "~", KeyQuote: "'",
	KeySemicolon: ";", KeyComma: ",", KeyPeriod: ".", KeySlash: "/",
	KeyInsert: "insert", KeyDelete: "delete", KeyHome: "home", KeyEnd: "end",
	KeyPageUp: "pageup", KeyPageDown: "pagedown",
	KeyF1: "f1", KeyF2: "f2", KeyF3: "f3", KeyF4: "f4", KeyF5: "f5",
	KeyF6: "f6", KeyF7: "f7", KeyF8: "f8", KeyF9: "f9", KeyF10: "f10",
	KeyF11: "f11", KeyF12: "f12",
}

func (k KeyKind) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "unknown"
}

// vkCode returns the Windows virtual-key code for k.
func vkCode(k KeyKind) uint16 {
	switch {
	case k >= KeyA && k <= KeyZ:
		return uint16('A' + (k - KeyA))
	case k >= Key0 && k <= Key9:
		return uint16('0' + (k - Key0))
	case k >= KeyF1 && k <= KeyF12:
		return uint16(win.VK_F1 + uint32(k-KeyF1))
	}
	switch k {
	case KeyUp:
		return win.VK_UP
	case KeyDown:
		return win.VK_DOWN
	case KeyLeft:
		return win.VK_LEFT
	case KeyRight:
		return win.VK_RIGHT
	case KeySpace:
		return win.VK_SPACE
	case KeyEnter:
		return win.VK_RETURN
	case KeyEsc:
		return win.VK_ESCAPE
	case KeyShift:
		return win.VK_SHIFT
	case KeyCtrl:
		return win.VK_CONTROL
	case KeyAlt:
		return win.VK_MENU
	case KeyTilde:
		return win.VK_OEM_3
	case KeyQuote:
		return win.VK_OEM_7
	case KeySemicolon:
		return win.VK_OEM_1
	case KeyComma:
		return win.VK_OEM_COMMA
	case KeyPeriod:
		return win.VK_OEM_PERIOD
	case KeySlash:
		return win.VK_OEM_2
	case KeyInsert:
		return win.VK_INSERT
	case KeyDelete:
		return win.VK_DELETE
	case KeyHome:
		return win.VK_HOME
	case KeyEnd:
		return win.VK_END
	case KeyPageUp:
		return win.VK_PRIOR
	case KeyPageDown:
		return win.VK_NEXT
	}
	return 0
}

// KeyBinding is a key press observed from or bound for the game window,
// published to the host through the KeyReceiver.
type KeyBinding struct {
	Key KeyKind
}
