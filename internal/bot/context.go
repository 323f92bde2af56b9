// Package bot implements the real-time control core: a fixed-tick state
// machine engine that derives a world view from captured frames and drives
// key and mouse inputs.
package bot

import (
	"log/slog"
	"time"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/game"
	"github.com/riverbell/mapler/internal/notify"
	"github.com/riverbell/mapler/internal/rng"
	"github.com/riverbell/mapler/internal/task"
)

const (
	// FPS is the tick rate of the control loop.
	FPS = 30
	// MsPerTick is the frame budget in milliseconds.
	MsPerTick = 1000 / FPS

	tickDuration = time.Second / FPS
)

// Flow decides whether a contextual state re-enters its reducer in the same
// tick or commits until the next one.
type Flow int

const (
	// FlowNext commits the state and waits for the next tick.
	FlowNext Flow = iota
	// FlowImmediate re-enters the reducer in the same tick.
	FlowImmediate
)

// Contextual is a state folded through its reducer each tick. S is the state
// type itself, P its persistent companion mutated in place.
type Contextual[S, P any] interface {
	Update(ctx *Context, persistent *P) (S, Flow)
}

// maxImmediateFolds caps Immediate re-entries within one tick so a reducer
// oscillating between states cannot stall the loop.
const maxImmediateFolds = 8

var foldOverrunLog = newRateLimitedLog(5 * time.Second)

func foldContext[S Contextual[S, P], P any](ctx *Context, s S, p *P) S {
	next, flow := s.Update(ctx, p)
	for i := 0; flow == FlowImmediate; i++ {
		if i >= maxImmediateFolds {
			foldOverrunLog.Warn("fold exceeded immediate iteration cap", "cap", maxImmediateFolds)
			break
		}
		next, flow = next.Update(ctx, p)
	}
	return next
}

// Context is the per-tick snapshot passed to every reducer. It carries
// non-owning views of the shared sinks and the contextual states committed
// so far this tick. Reducers consume it and never store it.
type Context struct {
	Handle game.Handle
	Keys   game.KeySender
	RNG    *rng.Rng
	Notify notify.Sink

	// Detector wraps the frame captured this tick. Nil until the first
	// successful grab; folds other than the driver's short-circuit on nil.
	Detector *detect.Cached

	Minimap Minimap
	Player  Player
	// Navigator may be nil when no platform pathing is configured.
	Navigator Navigator
	Skills    [detect.SkillKindCount]Skill
	Buffs     [detect.BuffKindCount]Buff

	Operation Operation
	// Tick increases once per driver iteration.
	Tick uint64
	// DidMinimapChange is set on the tick the minimap fell from Idle back
	// to Detecting, and consumed by the driver's map-change handling.
	DidMinimapChange bool
}

// DetectorCloned returns an owned detector for a worker task. Must only be
// called when a frame is present.
func (c *Context) DetectorCloned() *detect.Cached {
	return c.Detector.Clone()
}

// HasRuneBuff reports the rune buff as seen by the buff fold.
func (c *Context) HasRuneBuff() bool {
	return c.Buffs[detect.BuffRune].Present()
}

// pollDetection runs fn on a worker with an owned detector clone, driving
// the given slot. With no frame this tick it reports Pending without
// touching the slot.
func pollDetection[T any](ctx *Context, repeatDelay time.Duration, slot **task.Task[T], fn func(d *detect.Cached) (T, error)) task.Update[T] {
	if *slot == nil && ctx.Detector == nil {
		return task.Pending[T]()
	}
	var detector *detect.Cached
	if ctx.Detector != nil {
		detector = ctx.DetectorCloned()
	}
	return task.Poll(slot, repeatDelay, func() (T, error) {
		if detector == nil {
			// A respawn can race a frameless tick; treat it as a miss.
			var zero T
			return zero, detect.ErrNotFound
		}
		return fn(detector)
	})
}

// rateLimitedLog drops repeated messages inside a window; the tick loop logs
// from a hot path.
type rateLimitedLog struct {
	interval time.Duration
	last     time.Time
}

func newRateLimitedLog(interval time.Duration) *rateLimitedLog {
	return &rateLimitedLog{interval: interval}
}

func (l *rateLimitedLog) Warn(msg string, args ...any) {
	now := time.Now()
	if now.Sub(l.last) < l.interval {
		return
	}
	l.last = now
	slog.Warn(msg, args...)
}
