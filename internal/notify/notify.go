// Package notify queues user-facing notifications raised by the control
// core. Delivery (Discord, Telegram, whatever the host wires) is the host's
// concern; the core only schedules kinds and attaches a frame snapshot when
// one is available.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind int

const (
	FailOrMapChange Kind = iota
	RuneAppear
	EliteBossAppear
	PlayerGuildieAppear
	PlayerStrangerAppear
	PlayerFriendAppear
	PlayerIsDead
	ArrowSpam
)

func (k Kind) String() string {
	switch k {
	case FailOrMapChange:
		return "fail_or_map_change"
	case RuneAppear:
		return "rune_appear"
	case EliteBossAppear:
		return "elite_boss_appear"
	case PlayerGuildieAppear:
		return "player_guildie_appear"
	case PlayerStrangerAppear:
		return "player_stranger_appear"
	case PlayerFriendAppear:
		return "player_friend_appear"
	case PlayerIsDead:
		return "player_is_dead"
	case ArrowSpam:
		return "arrow_spam"
	}
	return "unknown"
}

// Notification is one scheduled item, optionally carrying a PNG frame taken
// on the tick after scheduling.
type Notification struct {
	ID    uuid.UUID
	Kind  Kind
	At    time.Time
	Frame []byte
}

// Sink is what the core schedules into.
type Sink interface {
	Schedule(kind Kind) error
	// UpdateScheduledFrames attaches a frame to items scheduled without
	// one. capture is invoked at most once per call and may return nil.
	UpdateScheduledFrames(capture func() []byte)
}

// Scheduler is the in-process Sink. It deduplicates bursts per kind with a
// cooldown and hands finished items to the host through Drain.
type Scheduler struct {
	mu       sync.Mutex
	queue    []Notification
	lastSent map[Kind]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// Re-raising the same kind within this window is dropped; detection edges
// can flap when the underlying threshold hovers at its fail limit.
const defaultCooldown = 10 * time.Second

func NewScheduler() *Scheduler {
	return &Scheduler{
		lastSent: make(map[Kind]time.Time),
		cooldown: defaultCooldown,
		now:      time.Now,
	}
}

func (s *Scheduler) Schedule(kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastSent[kind]; ok && now.Sub(last) < s.cooldown {
		return nil
	}
	s.lastSent[kind] = now
	s.queue = append(s.queue, Notification{
		ID:   uuid.New(),
		Kind: kind,
		At:   now,
	})
	return nil
}

func (s *Scheduler) UpdateScheduledFrames(capture func() []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var frame []byte
	captured := false
	for i := range s.queue {
		if s.queue[i].Frame != nil {
			continue
		}
		if !captured {
			frame = capture()
			captured = true
		}
		if frame == nil {
			return
		}
		s.queue[i].Frame = frame
	}
}

// Drain removes and returns all queued notifications. The host calls this
// from its delivery loop.
func (s *Scheduler) Drain() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

// Pending returns the number of undelivered notifications.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
