package game

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unsafe"

	"github.com/gorilla/websocket"
	"github.com/lxn/win"
)

// MouseAction is what to do at a screen coordinate.
type MouseAction int

const (
	MouseMove MouseAction = iota
	MouseClick
)

// KeyInputKind decides how synthesized inputs reach the game window.
type KeyInputKind int

const (
	// KeyInputFixed posts messages directly to the window, allowing the
	// game to stay in the background.
	KeyInputFixed KeyInputKind = iota
	// KeyInputForeground synthesizes global input, requiring the game to be
	// the foreground window.
	KeyInputForeground
)

// KeySenderMethod selects the transport for key and mouse events.
type KeySenderMethod struct {
	Handle Handle
	Kind   KeyInputKind
	// RpcURL, when non-empty, routes inputs to a helper process over a
	// websocket instead of synthesizing them locally.
	RpcURL string
	// RpcToken authenticates against the helper.
	RpcToken string
}

// KeySender delivers key and mouse events to the game.
type KeySender interface {
	Send(key KeyKind) error
	SendDown(key KeyKind) error
	SendUp(key KeyKind) error
	SendMouse(x, y int, action MouseAction) error
}

// DelayRng resamples humanized input delays. Implemented by rng.Rng.
type DelayRng interface {
	DelayMillis(base, spread int) time.Duration
}

// DefaultKeySender synthesizes inputs through the Windows API or forwards
// them to an RPC helper, depending on its current method. Input delays are
// resampled periodically from the deterministic RNG so press timing does not
// form a fixed pattern.
//
// Send never sleeps: a press is queued as a down and a delayed up, and the
// tick driver flushes due events once per tick. Reducers run on the tick
// thread and must not stall it.
type DefaultKeySender struct {
	mu     sync.Mutex
	method KeySenderMethod
	rng    DelayRng

	downDelay time.Duration
	upDelay   time.Duration

	queue []queuedInput
	// queueTail is when the last queued press fully releases; the next
	// press lines up behind it.
	queueTail time.Time

	rpcConn *websocket.Conn
}

type queuedInput struct {
	key  KeyKind
	down bool
	due  time.Time
}

// Update input delays once per this many ticks.
const inputDelayRefreshTicks = 15

func NewDefaultKeySender(method KeySenderMethod, rng DelayRng) *DefaultKeySender {
	s := &DefaultKeySender{method: method, rng: rng}
	s.resampleDelays()
	return s
}

// SetMethod rebinds the sender to a different window handle, input kind or
// RPC server. An open RPC connection to a previous server is dropped.
func (s *DefaultKeySender) SetMethod(method KeySenderMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rpcConn != nil && method.RpcURL != s.method.RpcURL {
		s.rpcConn.Close()
		s.rpcConn = nil
	}
	s.method = method
}

// UpdateInputDelay resamples the humanized key delays. Called by the tick
// driver once per tick; resampling itself happens on a coarser cadence.
func (s *DefaultKeySender) UpdateInputDelay(tick uint64) {
	if tick%inputDelayRefreshTicks != 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resampleDelays()
}

func (s *DefaultKeySender) resampleDelays() {
	if s.rng == nil {
		s.downDelay = 40 * time.Millisecond
		s.upDelay = 30 * time.Millisecond
		return
	}
	s.downDelay = s.rng.DelayMillis(35, 25)
	s.upDelay = s.rng.DelayMillis(25, 20)
}

// Send schedules a humanized press: the down fires on the next flush, the
// up one down-delay later. Overlapping presses line up behind one another
// so their order is kept.
func (s *DefaultKeySender) Send(key KeyKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	if start.Before(s.queueTail) {
		start = s.queueTail
	}
	upAt := start.Add(s.downDelay)
	s.queue = append(s.queue,
		queuedInput{key: key, down: true, due: start},
		queuedInput{key: key, down: false, due: upAt},
	)
	s.queueTail = upAt.Add(s.upDelay)
	return nil
}

// Flush sends queued press events whose due time has passed, in order.
// Called by the tick driver once per tick.
func (s *DefaultKeySender) Flush(now time.Time) {
	s.mu.Lock()
	n := 0
	for n < len(s.queue) && !now.Before(s.queue[n].due) {
		n++
	}
	due := append([]queuedInput(nil), s.queue[:n]...)
	s.queue = s.queue[n:]
	s.mu.Unlock()

	for _, in := range due {
		_ = s.sendKey(in.key, in.down)
	}
}

func (s *DefaultKeySender) SendDown(key KeyKind) error {
	return s.sendKey(key, true)
}

func (s *DefaultKeySender) SendUp(key KeyKind) error {
	return s.sendKey(key, false)
}

type rpcInput struct {
	Type   string `json:"type"`
	Key    string `json:"key,omitempty"`
	Down   bool   `json:"down,omitempty"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	Action string `json:"action,omitempty"`
}

func (s *DefaultKeySender) sendKey(key KeyKind, down bool) error {
	s.mu.Lock()
	method := s.method
	s.mu.Unlock()

	if method.RpcURL != "" {
		return s.sendRpc(rpcInput{Type: "key", Key: key.String(), Down: down})
	}

	vk := vkCode(key)
	if vk == 0 {
		return fmt.Errorf("key %v has no virtual-key mapping", key)
	}

	switch method.Kind {
	case KeyInputFixed:
		hwnd, err := method.Handle.Query()
		if err != nil {
			return err
		}
		msg := uint32(win.WM_KEYDOWN)
		var lparam uintptr
		scan := mapVirtualKey(uint32(vk), 0)
		lparam = uintptr(1 | scan<<16)
		if !down {
			msg = win.WM_KEYUP
			lparam |= 1<<30 | 1<<31
		}
		win.PostMessage(hwnd, msg, uintptr(vk), lparam)
		return nil
	case KeyInputForeground:
		var flags uint32
		if !down {
			flags = win.KEYEVENTF_KEYUP
		}
		input := win.KEYBD_INPUT{
			Type: win.INPUT_KEYBOARD,
			Ki: win.KEYBDINPUT{
				WVk:     vk,
				WScan:   uint16(mapVirtualKey(uint32(vk), 0)),
				DwFlags: flags,
			},
		}
		if win.SendInput(1, unsafe.Pointer(&input), int32(unsafe.Sizeof(input))) != 1 {
			return fmt.Errorf("SendInput failed for key %v", key)
		}
		return nil
	}
	return fmt.Errorf("unknown input kind %d", method.Kind)
}

func (s *DefaultKeySender) SendMouse(x, y int, action MouseAction) error {
	s.mu.Lock()
	method := s.method
	s.mu.Unlock()

	if method.RpcURL != "" {
		name := "move"
		if action == MouseClick {
			name = "click"
		}
		return s.sendRpc(rpcInput{Type: "mouse", X: x, Y: y, Action: name})
	}

	hwnd, err := method.Handle.Query()
	if err != nil {
		return err
	}
	pt := win.POINT{X: int32(x), Y: int32(y)}
	win.ClientToScreen(hwnd, &pt)
	win.SetCursorPos(pt.X, pt.Y)
	if action == MouseClick {
		lparam := uintptr(uint32(x) | uint32(y)<<16)
		win.PostMessage(hwnd, win.WM_LBUTTONDOWN, win.MK_LBUTTON, lparam)
		win.PostMessage(hwnd, win.WM_LBUTTONUP, 0, lparam)
	}
	return nil
}

func (s *DefaultKeySender) sendRpc(input rpcInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rpcConn == nil {
		var header http.Header
		if s.method.RpcToken != "" {
			header = http.Header{"Authorization": []string{"Bearer " + s.method.RpcToken}}
		}
		conn, _, err := websocket.DefaultDialer.Dial(s.method.RpcURL, header)
		if err != nil {
			return fmt.Errorf("dialing input RPC server: %w", err)
		}
		s.rpcConn = conn
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	if err := s.rpcConn.WriteMessage(websocket.TextMessage, payload); err != nil {
		// Drop the connection so the next send redials.
		s.rpcConn.Close()
		s.rpcConn = nil
		return fmt.Errorf("writing to input RPC server: %w", err)
	}
	return nil
}

// Close releases any still-queued key ups so no key stays held, then drops
// the RPC connection if one is open.
func (s *DefaultKeySender) Close() error {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, in := range queue {
		if !in.down {
			_ = s.sendKey(in.key, false)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rpcConn != nil {
		err := s.rpcConn.Close()
		s.rpcConn = nil
		return err
	}
	return nil
}
