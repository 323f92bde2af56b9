package game

import (
	"sync"

	"github.com/lxn/win"
)

// KeyReceiver observes key presses on the game window and broadcasts them to
// subscribers. The host consumes these for preset key binding editing; the
// core itself never reads them.
//
// Detection is poll-based: the tick driver calls Poll once per tick and the
// receiver samples the async key state of every known key, emitting a
// KeyBinding on each up-to-down edge while the bound window is foreground.
type KeyReceiver struct {
	handle Handle
	kind   KeyInputKind

	mu   sync.Mutex
	down map[KeyKind]bool
	subs []chan KeyBinding
}

func NewKeyReceiver(handle Handle, kind KeyInputKind) *KeyReceiver {
	return &KeyReceiver{
		handle: handle,
		kind:   kind,
		down:   make(map[KeyKind]bool),
	}
}

// Rebind points the receiver at a different window.
func (r *KeyReceiver) Rebind(handle Handle, kind KeyInputKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handle = handle
	r.kind = kind
	clear(r.down)
}

// Subscribe returns a channel receiving future key presses. Slow subscribers
// drop events rather than stalling the tick loop.
func (r *KeyReceiver) Subscribe() <-chan KeyBinding {
	ch := make(chan KeyBinding, 16)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

// Poll samples key states and publishes newly pressed keys.
func (r *KeyReceiver) Poll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	hwnd, err := r.handle.Query()
	if err != nil {
		return
	}
	if r.kind == KeyInputForeground && win.GetForegroundWindow() != hwnd {
		return
	}

	for key := KeyA; key <= KeyF12; key++ {
		vk := vkCode(key)
		if vk == 0 {
			continue
		}
		pressed := getAsyncKeyState(int32(vk))&^0x1 != 0
		if pressed && !r.down[key] {
			r.publish(KeyBinding{Key: key})
		}
		r.down[key] = pressed
	}
}

func (r *KeyReceiver) publish(binding KeyBinding) {
	for _, sub := range r.subs {
		select {
		case sub <- binding:
		default:
		}
	}
}
