package bot

import (
	"fmt"
	"image"
	"time"

	"github.com/riverbell/mapler/internal/game"
)

// ActionCondition decides when the rotator may dispatch an action.
type ActionCondition int

const (
	// ConditionAny dispatches in normal rotation order.
	ConditionAny ActionCondition = iota
	// ConditionEveryMillis dispatches as a priority action on an interval.
	ConditionEveryMillis
	// ConditionErdaShowerOffCooldown dispatches as a priority action when
	// the Erda Shower skill comes off cooldown.
	ConditionErdaShowerOffCooldown
	// ConditionLinked inherits dispatch from the immediately preceding
	// non-linked action.
	ConditionLinked
)

func (c ActionCondition) String() string {
	switch c {
	case ConditionAny:
		return "any"
	case ConditionEveryMillis:
		return "every_millis"
	case ConditionErdaShowerOffCooldown:
		return "erda_shower_off_cooldown"
	case ConditionLinked:
		return "linked"
	}
	return "unknown"
}

// ActionKeyDirection is the facing the player holds while pressing a key.
type ActionKeyDirection int

const (
	DirectionAny ActionKeyDirection = iota
	DirectionLeft
	DirectionRight
)

// ActionKeyWith is the movement combined with a key press.
type ActionKeyWith int

const (
	WithAny ActionKeyWith = iota
	WithStationary
	WithDoubleJump
)

// LinkKeyKind orders a link key relative to the main key.
type LinkKeyKind int

const (
	LinkBefore LinkKeyKind = iota
	LinkAfter
	LinkAtTheSame
	LinkAlong
)

// LinkKeyBinding is a secondary key pressed around the main key.
type LinkKeyBinding struct {
	Kind LinkKeyKind
	Key  game.KeyKind
}

// Position is a destination in bottom-left player coordinates.
type Position struct {
	X int
	Y int
	// XRandomRange widens x by a uniform offset in [-r, r] on dispatch.
	XRandomRange int
	// AllowAdjusting permits the fine horizontal adjustment state when
	// close to the destination.
	AllowAdjusting bool
}

func (p Position) Point() image.Point {
	return image.Pt(p.X, p.Y)
}

// Action is what the rotator hands to the player: a movement, a key press,
// or one of the built-in flows.
type Action interface {
	// name is the action's discriminant, shown in the host UI.
	name() string
}

// ActionMove walks to a position and waits.
type ActionMove struct {
	Position  Position
	Condition ActionCondition
	// EveryMillis applies when Condition is ConditionEveryMillis.
	EveryMillis time.Duration
	WaitAfter   time.Duration
}

func (a ActionMove) name() string { return "move" }

// ActionKey presses a key, optionally at a position and with linked timing.
type ActionKey struct {
	Key       game.KeyKind
	Link      *LinkKeyBinding
	Count     int
	Position  *Position
	Direction ActionKeyDirection
	With      ActionKeyWith
	Condition ActionCondition
	// EveryMillis applies when Condition is ConditionEveryMillis.
	EveryMillis time.Duration
	// QueueToFront puts the action at the head of the priority list
	// instead of the tail.
	QueueToFront bool

	WaitBefore       time.Duration
	WaitBeforeRandom time.Duration
	WaitAfter        time.Duration
	WaitAfterRandom  time.Duration
}

func (a ActionKey) name() string { return "key" }

// ActionAutoMob hunts a detected mob position.
type ActionAutoMob struct {
	Position Position
}

func (a ActionAutoMob) name() string { return "auto_mob" }

// ActionPingPong bounces between the edges of a bound, double jumping and
// pressing the key along the way.
type ActionPingPong struct {
	Key   game.KeyKind
	Bound image.Rectangle
}

func (a ActionPingPong) name() string { return "ping_pong" }

// ActionSolveRune walks to the rune and interacts with it.
type ActionSolveRune struct{}

func (a ActionSolveRune) name() string { return "solve_rune" }

// PanicTo is where a panic action escapes to.
type PanicTo int

const (
	PanicToTown PanicTo = iota
	PanicToChannel
)

// ActionPanic leaves the map, either to town or by changing channel.
type ActionPanic struct {
	To PanicTo
}

func (a ActionPanic) name() string { return "panic" }

// ActionFamiliarsSwap opens the familiar menu and swaps in fresh familiars.
type ActionFamiliarsSwap struct {
	SwappableSlots int
}

func (a ActionFamiliarsSwap) name() string { return "familiars_swapping" }

// actionName formats an action for display.
func actionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.name()
}

// actionCondition extracts the rotator-facing condition of a configured
// action; flows without one rotate as ConditionAny.
func actionCondition(a Action) ActionCondition {
	switch act := a.(type) {
	case ActionMove:
		return act.Condition
	case ActionKey:
		return act.Condition
	default:
		return ConditionAny
	}
}

// actionEveryMillis returns the interval of a ConditionEveryMillis action.
func actionEveryMillis(a Action) time.Duration {
	switch act := a.(type) {
	case ActionMove:
		return act.EveryMillis
	case ActionKey:
		return act.EveryMillis
	default:
		return 0
	}
}

func actionQueueToFront(a Action) bool {
	key, ok := a.(ActionKey)
	return ok && key.QueueToFront
}

// actionString is the long-form display used by logs.
func actionString(a Action) string {
	switch act := a.(type) {
	case ActionMove:
		return fmt.Sprintf("move(%d, %d)", act.Position.X, act.Position.Y)
	case ActionKey:
		return fmt.Sprintf("key(%s x%d)", act.Key, max(1, act.Count))
	case ActionAutoMob:
		return fmt.Sprintf("auto_mob(%d, %d)", act.Position.X, act.Position.Y)
	default:
		return actionName(a)
	}
}
