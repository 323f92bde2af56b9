package bot

import (
	"image"
	"log/slog"
	"time"

	"github.com/riverbell/mapler/internal/game"
)

// Movement thresholds in minimap pixels.
const (
	// moveTimeout is the tick window movement states get before bailing
	// back to Moving.
	moveTimeout = 30

	doubleJumpThreshold        = 25
	doubleJumpAutoMobThreshold = 15
	jumpThreshold              = 7
	grapplingThreshold         = 26
	grapplingMaxThreshold      = 41
	fallingThreshold           = 8
	adjustingThreshold         = 3
)

// Player is the player contextual state. States are pointer structs so
// downstream folds can identify the current state cheaply.
type Player interface {
	Update(ctx *Context, state *PlayerState) (Player, Flow)
}

// foldPlayer runs the player prelude once per tick, then folds the state
// machine until it commits.
func foldPlayer(ctx *Context, p Player, state *PlayerState) Player {
	if state.runeCashShop {
		state.runeCashShop = false
		state.ClearActionsAborted(false)
		p = &CashShopThenExit{}
	}
	if state.resetToIdleNextUpdate {
		state.resetToIdleNextUpdate = false
		p = &Idle{}
	}

	positional := state.updateState(ctx)
	if !positional && !worksWithoutPosition(p) {
		return &Detecting{}
	}

	next, flow := p.Update(ctx, state)
	for i := 0; flow == FlowImmediate; i++ {
		if i >= maxImmediateFolds {
			foldOverrunLog.Warn("player fold exceeded immediate iteration cap", "cap", maxImmediateFolds)
			break
		}
		next, flow = next.Update(ctx, state)
	}
	return next
}

// worksWithoutPosition lists states that keep running while detection cannot
// place the player, e.g. full-screen UIs covering the minimap.
func worksWithoutPosition(p Player) bool {
	switch p.(type) {
	case *Detecting, *CashShopThenExit, *Unstucking, *Stalling, *Panicking, *FamiliarsSwapping:
		return true
	}
	return false
}

// movingIntent is what Moving does once the destination is reached.
type movingIntent int

const (
	intentComplete movingIntent = iota
	intentUseKey
	intentSolveRune
)

// Detecting waits until the player dot is found inside the minimap.
type Detecting struct{}

func (d *Detecting) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	if state.LastKnownPos == nil {
		return d, FlowNext
	}
	return &Idle{}, FlowImmediate
}

// Idle dispatches the next action, priority first.
type Idle struct{}

func (i *Idle) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	state.lastMovement = lastMovementNone
	state.LastDestinations = nil
	state.stallingReturnState = nil

	if ctx.Operation.Halting() {
		return i, FlowNext
	}

	action := state.priorityAction
	if action == nil {
		action = state.normalAction
	}
	if action == nil {
		return i, FlowNext
	}
	return dispatchAction(ctx, state, action)
}

func dispatchAction(ctx *Context, state *PlayerState, action Action) (Player, Flow) {
	switch act := action.(type) {
	case ActionMove:
		dest := act.Position.Point()
		if act.Position.XRandomRange > 0 {
			dest.X += ctx.RNG.RangeInt(-act.Position.XRandomRange, act.Position.XRandomRange+1)
		}
		state.LastDestinations = []image.Point{dest}
		return &Moving{
			Dest:           dest,
			Exact:          true,
			AllowAdjusting: act.Position.AllowAdjusting,
			WaitAfterTicks: durationTicks(act.WaitAfter),
		}, FlowImmediate
	case ActionKey:
		if act.Position != nil {
			dest := act.Position.Point()
			if act.Position.XRandomRange > 0 {
				dest.X += ctx.RNG.RangeInt(-act.Position.XRandomRange, act.Position.XRandomRange+1)
			}
			state.LastDestinations = []image.Point{dest}
			return &Moving{
				Dest:           dest,
				Exact:          true,
				AllowAdjusting: act.Position.AllowAdjusting,
				Intent:         intentUseKey,
				IntentKey:      &act,
			}, FlowImmediate
		}
		return newUseKey(&act), FlowImmediate
	case ActionAutoMob:
		dest := act.Position.Point()
		state.LastDestinations = []image.Point{dest}
		return &Moving{Dest: dest, Exact: true}, FlowImmediate
	case ActionPingPong:
		return &PingPong{Key: act.Key, Bound: act.Bound}, FlowImmediate
	case ActionSolveRune:
		idle := ctx.Minimap.Idle
		if idle == nil {
			state.ClearActionsAborted(true)
			return &Idle{}, FlowNext
		}
		runePos, ok := idle.Rune()
		if !ok {
			// Rune vanished before the player got there.
			state.ClearActionsAborted(true)
			return &Idle{}, FlowNext
		}
		state.LastDestinations = []image.Point{runePos}
		return &Moving{Dest: runePos, Exact: true, Intent: intentSolveRune}, FlowImmediate
	case ActionPanic:
		return &Panicking{To: act.To}, FlowImmediate
	case ActionFamiliarsSwap:
		return &FamiliarsSwapping{Slots: act.SwappableSlots}, FlowImmediate
	default:
		slog.Warn("unknown action dispatched", "action", actionName(action))
		state.ClearActionsAborted(true)
		return &Idle{}, FlowNext
	}
}

// completeAction finishes whichever action is executing and returns to Idle.
func completeAction(ctx *Context, state *PlayerState) (Player, Flow) {
	if mob, ok := state.normalAction.(ActionAutoMob); ok && state.hasAutoMobActionOnly() {
		state.autoMobTrackReachableY(mob.Position.Y)
		state.autoMobTrackIgnoreXs(ctx, false)
	}
	state.clearActionCompleted()
	return &Idle{}, FlowNext
}

// abortAction drops the current action after too many repeats or a stuck
// destination.
func abortAction(ctx *Context, state *PlayerState) (Player, Flow) {
	if state.hasAutoMobActionOnly() {
		state.autoMobTrackIgnoreXs(ctx, true)
	}
	state.ClearActionsAborted(false)
	return &Idle{}, FlowNext
}

// Moving chooses and sequences the movement states toward Dest.
type Moving struct {
	// Dest is in bottom-left player coordinates.
	Dest image.Point
	// Exact requires both axes to settle; intermediate navigator points
	// only need to get close.
	Exact bool
	// Intermediate marks a navigator-produced waypoint.
	Intermediate   bool
	AllowAdjusting bool

	Intent    movingIntent
	IntentKey *ActionKey

	WaitAfterTicks uint32
	Timeout        Timeout
}

func (m *Moving) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	pos := *state.LastKnownPos
	dx := m.Dest.X - pos.X
	dy := m.Dest.Y - pos.Y

	// Let the navigator cut in with an intermediate point when the direct
	// path crosses platforms.
	if ctx.Navigator != nil && !m.Intermediate &&
		ctx.Navigator.NavigatePlayer(ctx, state) {
		if len(state.LastDestinations) > 0 {
			intermediate := state.LastDestinations[0]
			if intermediate != m.Dest {
				return &Moving{
					Dest:         intermediate,
					Intermediate: true,
					Intent:       m.Intent,
					IntentKey:    m.IntentKey,
				}, FlowImmediate
			}
		}
	}

	if state.IsStationary && (absInt(dx) > adjustingThreshold || absInt(dy) > jumpThreshold) {
		if state.trackUnstucking() {
			gamba := state.trackUnstuckingTransitioned()
			return &Unstucking{GambaMode: gamba}, FlowNext
		}
	}

	switch {
	case absInt(dx) >= state.doubleJumpXThreshold(m.Intermediate):
		return m.transition(ctx, state, MovementDoubleJumping,
			&DoubleJumping{Return: *m})
	case absInt(dx) > adjustingThreshold &&
		(m.AllowAdjusting || m.Exact) && !state.Config.DisableAdjusting:
		return m.transition(ctx, state, MovementAdjusting,
			&Adjusting{Return: *m})
	case dy > 0:
		return m.transitionUp(ctx, state, pos, dy)
	case -dy >= state.fallingThreshold(m.Intermediate):
		return m.transition(ctx, state, MovementFalling,
			&Falling{Return: *m})
	case m.Exact && dy < 0 && -dy > jumpThreshold:
		return m.transition(ctx, state, MovementFalling,
			&Falling{Return: *m})
	default:
		return m.arrived(ctx, state)
	}
}

func (m *Moving) transitionUp(ctx *Context, state *PlayerState, pos image.Point, dy int) (Player, Flow) {
	// A portal under the player swallows upward jumps into loading
	// screens; skip climbing and treat the y as close enough.
	if idle := ctx.Minimap.Idle; idle != nil && idle.IsPositionInsidePortal(pos) {
		return m.arrived(ctx, state)
	}

	switch {
	case dy <= jumpThreshold:
		return m.transition(ctx, state, MovementJumping, &Jumping{Return: *m})
	case dy <= grapplingMaxThreshold && !state.shouldDisableGrappling() && dy >= grapplingThreshold:
		return m.transition(ctx, state, MovementGrappling, &Grappling{Return: *m})
	default:
		return m.transition(ctx, state, MovementUpJumping, &UpJumping{Return: *m})
	}
}

func (m *Moving) transition(ctx *Context, state *PlayerState, movement LastMovement, next Player) (Player, Flow) {
	state.lastMovement = movement
	if state.trackLastMovementRepeated() {
		slog.Info("movement repeated past limit, aborting action", "movement", movement)
		return abortAction(ctx, state)
	}
	return next, FlowNext
}

func (m *Moving) arrived(ctx *Context, state *PlayerState) (Player, Flow) {
	state.lastMovement = lastMovementNone
	state.clearLastMovement()
	state.clearUnstucking(false)

	switch m.Intent {
	case intentUseKey:
		return newUseKey(m.IntentKey), FlowImmediate
	case intentSolveRune:
		return &SolvingRune{}, FlowNext
	default:
		if m.Intermediate {
			// Waypoint reached; the caller's Moving resumes next tick
			// with the real destination restored by the navigator.
			return &Idle{}, FlowImmediate
		}
		if m.WaitAfterTicks > 0 {
			stall := &Stalling{MaxTicks: m.WaitAfterTicks}
			state.stallingReturnState = nil
			return stall, FlowNext
		}
		return completeAction(ctx, state)
	}
}

// facing returns the arrow key toward dx and records the direction.
func facing(state *PlayerState, dx int) game.KeyKind {
	if dx < 0 {
		state.LastKnownDirection = DirectionLeft
		return game.KeyLeft
	}
	state.LastKnownDirection = DirectionRight
	return game.KeyRight
}

// DoubleJumping covers large horizontal distance, or teleports for mages.
type DoubleJumping struct {
	Return  Moving
	Timeout Timeout
}

func (d *DoubleJumping) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	pos := *state.LastKnownPos
	dx := d.Return.Dest.X - pos.X

	timeout, lifecycle := NextTimeout(d.Timeout, moveTimeout)
	d.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		arrow := facing(state, dx)
		_ = ctx.Keys.SendDown(arrow)
		if key := state.Config.TeleportKey; key != game.KeyNone {
			_ = ctx.Keys.Send(key)
		} else {
			_ = ctx.Keys.Send(state.Config.JumpKey)
			_ = ctx.Keys.Send(state.Config.JumpKey)
		}
		return d, FlowNext
	case LifecycleEnded:
		_ = ctx.Keys.SendUp(game.KeyLeft)
		_ = ctx.Keys.SendUp(game.KeyRight)
		return &Moving{
			Dest: d.Return.Dest, Exact: d.Return.Exact,
			Intermediate: d.Return.Intermediate, AllowAdjusting: d.Return.AllowAdjusting,
			Intent: d.Return.Intent, IntentKey: d.Return.IntentKey,
			WaitAfterTicks: d.Return.WaitAfterTicks,
		}, FlowNext
	default:
		// Cut the jump short once within the adjusting envelope.
		if absInt(dx) <= adjustingThreshold {
			_ = ctx.Keys.SendUp(game.KeyLeft)
			_ = ctx.Keys.SendUp(game.KeyRight)
			return &Moving{
				Dest: d.Return.Dest, Exact: d.Return.Exact,
				Intermediate: d.Return.Intermediate, AllowAdjusting: d.Return.AllowAdjusting,
				Intent: d.Return.Intent, IntentKey: d.Return.IntentKey,
				WaitAfterTicks: d.Return.WaitAfterTicks,
			}, FlowNext
		}
		return d, FlowNext
	}
}

// Adjusting fine-tunes horizontal position with short walk taps.
type Adjusting struct {
	Return  Moving
	Timeout Timeout
}

func (a *Adjusting) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	pos := *state.LastKnownPos
	dx := a.Return.Dest.X - pos.X

	timeout, lifecycle := NextTimeout(a.Timeout, moveTimeout)
	a.Timeout = timeout
	if lifecycle == LifecycleEnded || absInt(dx) <= adjustingThreshold {
		_ = ctx.Keys.SendUp(game.KeyLeft)
		_ = ctx.Keys.SendUp(game.KeyRight)
		return a.Return.resumed(), FlowNext
	}

	arrow := facing(state, dx)
	if lifecycle == LifecycleStarted {
		_ = ctx.Keys.SendDown(arrow)
	} else if timeout.Ticks%3 == 0 {
		// Tap instead of holding once close, so momentum does not
		// overshoot.
		_ = ctx.Keys.Send(arrow)
	}
	return a, FlowNext
}

// resumed rebuilds the Moving state a movement returns to, dropping the
// movement's own timeout.
func (m Moving) resumed() *Moving {
	m.Timeout = Timeout{}
	return &m
}

// Jumping hops small vertical distance onto a platform above.
type Jumping struct {
	Return  Moving
	Timeout Timeout
}

func (j *Jumping) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	timeout, lifecycle := NextTimeout(j.Timeout, moveTimeout)
	j.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		_ = ctx.Keys.Send(state.Config.JumpKey)
		return j, FlowNext
	case LifecycleEnded:
		return j.Return.resumed(), FlowNext
	default:
		return j, FlowNext
	}
}

// UpJumping climbs with the up-jump key or the composite up + double jump.
type UpJumping struct {
	Return  Moving
	Timeout Timeout
}

func (u *UpJumping) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	timeout, lifecycle := NextTimeout(u.Timeout, moveTimeout)
	u.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		_ = ctx.Keys.SendDown(game.KeyUp)
		if key := state.Config.UpJumpKey; key != game.KeyNone {
			_ = ctx.Keys.Send(key)
		} else {
			_ = ctx.Keys.Send(state.Config.JumpKey)
			_ = ctx.Keys.Send(state.Config.JumpKey)
		}
		return u, FlowNext
	case LifecycleEnded:
		_ = ctx.Keys.SendUp(game.KeyUp)
		return u.Return.resumed(), FlowNext
	default:
		return u, FlowNext
	}
}

// Grappling rides the rope lift toward a platform well above.
type Grappling struct {
	Return  Moving
	Timeout Timeout
}

func (g *Grappling) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	pos := *state.LastKnownPos
	dy := g.Return.Dest.Y - pos.Y

	timeout, lifecycle := NextTimeout(g.Timeout, moveTimeout*2)
	g.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		_ = ctx.Keys.Send(state.Config.GrapplingKey)
		return g, FlowNext
	case LifecycleEnded:
		return g.Return.resumed(), FlowNext
	default:
		// Drop off the rope once level with the destination.
		if dy <= 0 {
			_ = ctx.Keys.Send(state.Config.JumpKey)
			return g.Return.resumed(), FlowNext
		}
		return g, FlowNext
	}
}

// Falling drops through the platform with down + jump.
type Falling struct {
	Return  Moving
	Timeout Timeout
}

func (f *Falling) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	pos := *state.LastKnownPos
	dy := f.Return.Dest.Y - pos.Y

	timeout, lifecycle := NextTimeout(f.Timeout, moveTimeout)
	f.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		_ = ctx.Keys.SendDown(game.KeyDown)
		_ = ctx.Keys.Send(state.Config.JumpKey)
		return f, FlowNext
	case LifecycleEnded:
		_ = ctx.Keys.SendUp(game.KeyDown)
		return f.Return.resumed(), FlowNext
	default:
		if dy >= 0 {
			_ = ctx.Keys.SendUp(game.KeyDown)
			return f.Return.resumed(), FlowNext
		}
		return f, FlowNext
	}
}

// Unstucking jolts the player free after repeated stuck movements. In gamba
// mode, inputs are randomized as a last resort.
type Unstucking struct {
	GambaMode bool
	Timeout   Timeout
}

func (u *Unstucking) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	timeout, lifecycle := NextTimeout(u.Timeout, moveTimeout)
	u.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		// A stray settings dialog from a mis-pressed key eats inputs;
		// dismiss it first.
		_ = ctx.Keys.Send(game.KeyEsc)
		return u, FlowNext
	case LifecycleEnded:
		_ = ctx.Keys.SendUp(game.KeyLeft)
		_ = ctx.Keys.SendUp(game.KeyRight)
		return &Detecting{}, FlowNext
	default:
		if u.GambaMode {
			arrows := []game.KeyKind{game.KeyLeft, game.KeyRight, game.KeyUp, game.KeyDown}
			arrow := arrows[ctx.RNG.RangeInt(0, len(arrows))]
			_ = ctx.Keys.Send(arrow)
			_ = ctx.Keys.Send(state.Config.JumpKey)
		} else if timeout.Ticks%2 == 0 {
			arrow := game.KeyLeft
			if state.LastKnownDirection == DirectionLeft {
				arrow = game.KeyRight
			}
			_ = ctx.Keys.Send(arrow)
			_ = ctx.Keys.Send(state.Config.JumpKey)
		}
		return u, FlowNext
	}
}

// Stalling waits out a tick budget, then restores the saved return state.
type Stalling struct {
	MaxTicks uint32
	Timeout  Timeout
}

func (s *Stalling) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	timeout, lifecycle := NextTimeout(s.Timeout, s.MaxTicks)
	s.Timeout = timeout
	if lifecycle != LifecycleEnded {
		return s, FlowNext
	}
	if ret := state.stallingReturnState; ret != nil {
		state.stallingReturnState = nil
		return ret, FlowImmediate
	}
	return completeAction(ctx, state)
}

// solvingRunePhase sequences interact, solve window and validation arming.
type solvingRunePhase int

const (
	runeInteract solvingRunePhase = iota
	runeAwaitSolve
)

// SolvingRune interacts with the rune; key solving itself is delegated to
// the host's solver through the interact flow, and validation is armed once
// the keys went out.
type SolvingRune struct {
	Phase   solvingRunePhase
	Timeout Timeout
}

func (r *SolvingRune) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	switch r.Phase {
	case runeInteract:
		timeout, lifecycle := NextTimeout(r.Timeout, moveTimeout)
		r.Timeout = timeout
		switch lifecycle {
		case LifecycleStarted:
			_ = ctx.Keys.Send(state.Config.InteractKey)
			return r, FlowNext
		case LifecycleEnded:
			r.Phase = runeAwaitSolve
			r.Timeout = Timeout{}
			return r, FlowNext
		default:
			return r, FlowNext
		}
	default:
		// The solve window; when it elapses the validation timeout arms
		// and the rune buff decides success later.
		timeout, lifecycle := NextTimeout(r.Timeout, moveTimeout*4)
		r.Timeout = timeout
		if lifecycle != LifecycleEnded {
			return r, FlowNext
		}
		state.runeValidateTimeout = &Timeout{}
		if _, ok := state.TakePriorityAction(); ok {
			state.resetToIdleNextUpdate = false
		}
		return &Idle{}, FlowNext
	}
}

// cashShopPhase sequences entering, idling inside and exiting.
type cashShopPhase int

const (
	cashShopEnter cashShopPhase = iota
	cashShopStay
	cashShopExit
)

// CashShopThenExit parks the player in the cash shop to reset rune spam,
// then leaves. Pixel validation is unavailable inside, everything is timed.
type CashShopThenExit struct {
	Phase   cashShopPhase
	Timeout Timeout
}

func (c *CashShopThenExit) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	switch c.Phase {
	case cashShopEnter:
		timeout, lifecycle := NextTimeout(c.Timeout, moveTimeout)
		c.Timeout = timeout
		switch lifecycle {
		case LifecycleStarted:
			_ = ctx.Keys.Send(state.Config.CashShopKey)
			return c, FlowNext
		case LifecycleEnded:
			c.Phase = cashShopStay
			c.Timeout = Timeout{}
			return c, FlowNext
		default:
			return c, FlowNext
		}
	case cashShopStay:
		timeout, lifecycle := NextTimeout(c.Timeout, FPS*10)
		c.Timeout = timeout
		if lifecycle == LifecycleEnded {
			c.Phase = cashShopExit
			c.Timeout = Timeout{}
		}
		return c, FlowNext
	default:
		timeout, lifecycle := NextTimeout(c.Timeout, moveTimeout*2)
		c.Timeout = timeout
		switch lifecycle {
		case LifecycleStarted:
			_ = ctx.Keys.Send(game.KeyEsc)
			_ = ctx.Keys.Send(game.KeyEnter)
			return c, FlowNext
		case LifecycleEnded:
			return &Detecting{}, FlowNext
		default:
			return c, FlowNext
		}
	}
}

// Panicking escapes the map, either to town or to another channel.
type Panicking struct {
	To      PanicTo
	Timeout Timeout
	pressed bool
}

func (p *Panicking) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	timeout, lifecycle := NextTimeout(p.Timeout, FPS*4)
	p.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		key := state.Config.ToTownKey
		if p.To == PanicToChannel {
			key = state.Config.ChangeChannelKey
		}
		_ = ctx.Keys.Send(key)
		p.pressed = true
		return p, FlowNext
	case LifecycleEnded:
		// Confirm dialogs in both flows accept Enter.
		_ = ctx.Keys.Send(game.KeyEnter)
		if _, ok := state.priorityAction.(ActionPanic); ok {
			state.clearActionCompleted()
		} else if _, ok := state.normalAction.(ActionPanic); ok {
			state.clearActionCompleted()
		}
		return &Detecting{}, FlowNext
	default:
		return p, FlowNext
	}
}

// FamiliarsSwapping cycles fresh familiars in through the familiar menu.
type FamiliarsSwapping struct {
	Slots   int
	Timeout Timeout
	opened  bool
}

func (f *FamiliarsSwapping) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	timeout, lifecycle := NextTimeout(f.Timeout, FPS*6)
	f.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		_ = ctx.Keys.Send(state.Config.FamiliarKey)
		f.opened = true
		return f, FlowNext
	case LifecycleEnded:
		_ = ctx.Keys.Send(game.KeyEsc)
		if _, ok := state.normalAction.(ActionFamiliarsSwap); ok {
			state.clearActionCompleted()
		} else if _, ok := state.priorityAction.(ActionFamiliarsSwap); ok {
			state.clearActionCompleted()
		}
		return &Idle{}, FlowNext
	default:
		if f.opened && timeout.Ticks%moveTimeout == 0 && f.Slots > 0 {
			// Swap one slot per window with a click in the menu grid.
			_ = ctx.Keys.SendMouse(480+40*int(timeout.Ticks/moveTimeout), 300, game.MouseClick)
		}
		return f, FlowNext
	}
}

// PingPong bounces between the bound edges, attacking while double jumping.
type PingPong struct {
	Key   game.KeyKind
	Bound image.Rectangle
	// movingRight is the current bounce direction.
	movingRight bool
	started     bool
	Timeout     Timeout
}

func (p *PingPong) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	if ctx.Operation.Halting() || !state.hasPingPongActionOnly() {
		_ = ctx.Keys.SendUp(game.KeyLeft)
		_ = ctx.Keys.SendUp(game.KeyRight)
		return &Idle{}, FlowNext
	}

	pos := *state.LastKnownPos
	if !p.started {
		p.started = true
		p.movingRight = pos.X < (p.Bound.Min.X+p.Bound.Max.X)/2
	}
	if p.movingRight && pos.X >= p.Bound.Max.X {
		p.movingRight = false
	} else if !p.movingRight && pos.X <= p.Bound.Min.X {
		p.movingRight = true
	}

	arrow := game.KeyLeft
	state.LastKnownDirection = DirectionLeft
	if p.movingRight {
		arrow = game.KeyRight
		state.LastKnownDirection = DirectionRight
	}

	timeout, lifecycle := NextTimeout(p.Timeout, moveTimeout/2)
	p.Timeout = timeout
	switch lifecycle {
	case LifecycleStarted:
		_ = ctx.Keys.SendDown(arrow)
		_ = ctx.Keys.Send(state.Config.JumpKey)
		_ = ctx.Keys.Send(state.Config.JumpKey)
		return p, FlowNext
	case LifecycleEnded:
		_ = ctx.Keys.Send(p.Key)
		p.Timeout = Timeout{}
		return p, FlowNext
	default:
		return p, FlowNext
	}
}

// useKeyPhase sequences wait-before, presses and wait-after.
type useKeyPhase int

const (
	useKeyPrecondition useKeyPhase = iota
	useKeyWaitBefore
	useKeyPressing
	useKeyLinkAfter
	useKeyWaitAfter
)

// UseKey performs an ActionKey press sequence with direction, link key and
// randomized waits.
type UseKey struct {
	Action *ActionKey

	Phase     useKeyPhase
	remaining int
	waitTicks uint32
	Timeout   Timeout
}

func newUseKey(action *ActionKey) *UseKey {
	count := max(1, action.Count)
	return &UseKey{Action: action, remaining: count}
}

func (u *UseKey) Update(ctx *Context, state *PlayerState) (Player, Flow) {
	act := u.Action

	switch u.Phase {
	case useKeyPrecondition:
		switch act.Direction {
		case DirectionLeft:
			_ = ctx.Keys.Send(game.KeyLeft)
			state.LastKnownDirection = DirectionLeft
		case DirectionRight:
			_ = ctx.Keys.Send(game.KeyRight)
			state.LastKnownDirection = DirectionRight
		}
		if act.With == WithStationary && !state.IsStationary {
			// Wait for the player to settle before the press.
			return u, FlowNext
		}
		if act.With == WithDoubleJump {
			_ = ctx.Keys.Send(state.Config.JumpKey)
			_ = ctx.Keys.Send(state.Config.JumpKey)
		}
		u.Phase = useKeyWaitBefore
		u.waitTicks = randomizedTicks(ctx, act.WaitBefore, act.WaitBeforeRandom)
		u.Timeout = Timeout{}
		return u, FlowImmediate
	case useKeyWaitBefore:
		if done, flow := u.wait(); !done {
			return u, flow
		}
		u.Phase = useKeyPressing
		return u, FlowImmediate
	case useKeyPressing:
		u.pressOnce(ctx, state)
		u.remaining--
		if act.Link != nil && act.Link.Kind == LinkAfter {
			u.Phase = useKeyLinkAfter
			u.waitTicks = durationTicks(state.Config.Class.linkDelay())
			u.Timeout = Timeout{}
			return u, FlowNext
		}
		if u.remaining > 0 {
			return u, FlowNext
		}
		u.Phase = useKeyWaitAfter
		u.waitTicks = randomizedTicks(ctx, act.WaitAfter, act.WaitAfterRandom)
		u.Timeout = Timeout{}
		return u, FlowImmediate
	case useKeyLinkAfter:
		if done, flow := u.wait(); !done {
			return u, flow
		}
		_ = ctx.Keys.Send(act.Link.Key)
		if u.remaining > 0 {
			u.Phase = useKeyPressing
			return u, FlowNext
		}
		u.Phase = useKeyWaitAfter
		u.waitTicks = randomizedTicks(ctx, act.WaitAfter, act.WaitAfterRandom)
		u.Timeout = Timeout{}
		return u, FlowImmediate
	default:
		if done, flow := u.wait(); !done {
			return u, flow
		}
		return completeAction(ctx, state)
	}
}

func (u *UseKey) wait() (bool, Flow) {
	if u.waitTicks == 0 {
		return true, FlowImmediate
	}
	timeout, lifecycle := NextTimeout(u.Timeout, u.waitTicks)
	u.Timeout = timeout
	if lifecycle == LifecycleEnded {
		return true, FlowImmediate
	}
	return false, FlowNext
}

func (u *UseKey) pressOnce(ctx *Context, state *PlayerState) {
	act := u.Action
	link := act.Link
	if link != nil && link.Kind == LinkBefore {
		_ = ctx.Keys.Send(link.Key)
	}
	if link != nil && link.Kind == LinkAtTheSame {
		_ = ctx.Keys.SendDown(link.Key)
	}
	if link != nil && link.Kind == LinkAlong {
		_ = ctx.Keys.SendDown(link.Key)
		_ = ctx.Keys.Send(act.Key)
		_ = ctx.Keys.SendUp(link.Key)
		return
	}
	_ = ctx.Keys.Send(act.Key)
	if link != nil && link.Kind == LinkAtTheSame {
		_ = ctx.Keys.SendUp(link.Key)
	}
}

// durationTicks converts a wall duration to whole ticks, rounding up so a
// short wait still spans at least one tick.
func durationTicks(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ticks := (d + tickDuration - 1) / tickDuration
	return uint32(ticks)
}

func randomizedTicks(ctx *Context, base, random time.Duration) uint32 {
	if random > 0 {
		base += time.Duration(ctx.RNG.RangeInt(0, int(random.Milliseconds())+1)) * time.Millisecond
	}
	return durationTicks(base)
}
