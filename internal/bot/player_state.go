package bot

import (
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/game"
	"github.com/riverbell/mapler/internal/notify"
	"github.com/riverbell/mapler/internal/task"
)

const (
	// maxRuneFailedCount bounds rune solving failures before the player
	// escapes through the cash shop.
	maxRuneFailedCount = 8

	horizontalMovementRepeatCount = 20
	verticalMovementRepeatCount   = 8

	autoMobHorizontalMovementRepeatCount = 4
	autoMobVerticalMovementRepeatCount   = 3

	// autoMobReachableYSolidifyCount is how many times a reachable y must
	// confirm before it is treated as a y with platforms.
	autoMobReachableYSolidifyCount = 4
	// autoMobIgnoreXsSolidifyCount is how many aborts solidify an ignored
	// x range.
	autoMobIgnoreXsSolidifyCount = 3
	// autoMobIgnoreXsRange spans an ignored x position to [x-3, x+3].
	autoMobIgnoreXsRange = 3
	// autoMobReachableYThreshold is the acceptable y distance between a
	// mob and a matched reachable y.
	autoMobReachableYThreshold = 10

	// unstuckCountThreshold is how many stuck movement transitions force
	// the unstucking state.
	unstuckCountThreshold = 6
	// unstuckGambaModeCount is how many unstucking entries enable the
	// random-input last resort.
	unstuckGambaModeCount = 3

	velocitySamples = moveTimeout

	runeValidateTimeoutTicks = 375
)

// Class selects linked key timing quirks.
type Class int

const (
	ClassGeneric Class = iota
	ClassCadena
	ClassBlaster
	ClassArk
)

// linkDelay is the wait between an action key and its link key.
func (c Class) linkDelay() time.Duration {
	switch c {
	case ClassCadena:
		return 160 * time.Millisecond
	case ClassBlaster:
		return 200 * time.Millisecond
	default:
		return 85 * time.Millisecond
	}
}

// LastMovement is the previous movement-related contextual state, used to
// coordinate movement states and abort actions that keep repeating.
type LastMovement int

const (
	lastMovementNone LastMovement = iota
	MovementAdjusting
	MovementDoubleJumping
	MovementFalling
	MovementGrappling
	MovementUpJumping
	MovementJumping
)

func (m LastMovement) horizontal() bool {
	return m == MovementAdjusting || m == MovementDoubleJumping
}

// PlayerConfig carries the per-character keys and pathing toggles.
type PlayerConfig struct {
	Class            Class
	DisableAdjusting bool

	RunePlatformsPathing           bool
	RunePlatformsPathingUpJumpOnly bool

	AutoMobPlatformsPathing           bool
	AutoMobPlatformsPathingUpJumpOnly bool
	AutoMobPlatformsBound             bool

	InteractKey game.KeyKind
	// GrapplingKey is KeyNone when the class has no rope lift.
	GrapplingKey game.KeyKind
	// TeleportKey is KeyNone for non-mages; set, it replaces double jump.
	TeleportKey game.KeyKind
	JumpKey     game.KeyKind
	// UpJumpKey is KeyNone for the composite up arrow + double jump.
	UpJumpKey        game.KeyKind
	CashShopKey      game.KeyKind
	FamiliarKey      game.KeyKind
	ToTownKey        game.KeyKind
	ChangeChannelKey game.KeyKind
	PotionKey        game.KeyKind

	// UsePotionBelowPercent enables health tracking when positive.
	UsePotionBelowPercent float64
	// UpdateHealthInterval rate-limits the health detection, defaulting
	// to one second.
	UpdateHealthInterval time.Duration
}

type healthPair struct {
	Current int
	Max     int
}

type velocitySample struct {
	Pos  image.Point
	Tick uint64
}

type ignoreRange struct {
	// Start inclusive, End exclusive.
	Start int
	End   int
	Count uint32
}

func (r ignoreRange) contains(x int) bool {
	return x >= r.Start && x < r.End
}

// PlayerState is the player's persistent companion mutated in place across
// ticks.
type PlayerState struct {
	Config PlayerConfig

	normalActionID   uuid.UUID
	normalAction     Action
	priorityActionID uuid.UUID
	// priorityAction overrides normalAction mid-execution.
	priorityAction Action

	health        healthPair
	hasHealth     bool
	healthTask    *task.Task[healthPair]
	healthBar     *image.Rectangle
	healthBarTask *task.Task[image.Rectangle]

	isStationaryTimeout Timeout
	// IsStationary reports no position change within the move timeout.
	IsStationary bool

	isDead           bool
	isDeadTask       *task.Task[bool]
	isDeadButtonTask *task.Task[image.Rectangle]

	isArrowSpam   bool
	arrowSpamTask *task.Task[bool]

	// LastKnownDirection approximates the player facing for key actions.
	LastKnownDirection ActionKeyDirection
	// LastDestinations tracks destination points for the host UI. Resets
	// when all destinations are reached or in the idle state.
	LastDestinations []image.Point
	// LastKnownPos is the latest detected position, bottom-left.
	LastKnownPos *image.Point

	// ignorePosUpdate keeps LastKnownPos for one update after a priority
	// action swap so the re-dispatch acts on the pre-swap position.
	ignorePosUpdate bool
	// resetToIdleNextUpdate bounces the machine through Idle before the
	// next action executes; set each time an action is received.
	resetToIdleNextUpdate bool

	lastMovement         LastMovement
	lastMovementNormal   map[LastMovement]uint32
	lastMovementPriority map[LastMovement]uint32

	autoMobReachableY     map[int]uint32
	autoMobIgnoreXs       map[int][]ignoreRange
	autoMobHasQuadrant    bool
	autoMobLastQuadrant   Quadrant
	autoMobQuadrantBound  *image.Rectangle
	autoMobNextQuadBound  *image.Rectangle

	unstuckCount             uint32
	unstuckTransitionedCount uint32

	runeFailedCount uint32
	// runeCashShop forces CashShopThenExit on the next tick.
	runeCashShop bool
	// runeValidateTimeout is set once rune keys were all sent; when it
	// elapses the rune buff decides success.
	runeValidateTimeout *Timeout

	// stallingReturnState is restored after Stalling times out.
	stallingReturnState Player

	velocitySampleBuf []velocitySample
	// Velocity is the smoothed absolute per-tick velocity.
	Velocity [2]float64
}

func NewPlayerState(config PlayerConfig) *PlayerState {
	return &PlayerState{
		Config:               config,
		lastMovementNormal:   make(map[LastMovement]uint32),
		lastMovementPriority: make(map[LastMovement]uint32),
		autoMobReachableY:    make(map[int]uint32),
		autoMobIgnoreXs:      make(map[int][]ignoreRange),
	}
}

// Reset drops everything except configuration. Used whenever the minimap or
// the configuration changes.
func (s *PlayerState) Reset() {
	config := s.Config
	*s = *NewPlayerState(config)
	s.resetToIdleNextUpdate = true
}

func (s *PlayerState) Health() (current, max int, ok bool) {
	return s.health.Current, s.health.Max, s.hasHealth
}

func (s *PlayerState) IsDead() bool { return s.isDead }

// NormalActionName is the normal action discriminant for the host UI.
func (s *PlayerState) NormalActionName() (string, bool) {
	if s.normalAction == nil {
		return "", false
	}
	return actionName(s.normalAction), true
}

func (s *PlayerState) NormalActionID() (uuid.UUID, bool) {
	if s.normalAction == nil {
		return uuid.Nil, false
	}
	return s.normalActionID, true
}

func (s *PlayerState) HasNormalAction() bool { return s.normalAction != nil }

// SetNormalAction installs action and bounces through Idle on next update.
func (s *PlayerState) SetNormalAction(id uuid.UUID, action Action) {
	s.resetToIdleNextUpdate = true
	s.normalActionID = id
	s.normalAction = action
}

func (s *PlayerState) ResetNormalAction() {
	s.resetToIdleNextUpdate = true
	s.normalAction = nil
}

func (s *PlayerState) PriorityActionName() (string, bool) {
	if s.priorityAction == nil {
		return "", false
	}
	return actionName(s.priorityAction), true
}

func (s *PlayerState) PriorityActionID() (uuid.UUID, bool) {
	if s.priorityAction == nil {
		return uuid.Nil, false
	}
	return s.priorityActionID, true
}

func (s *PlayerState) HasPriorityAction() bool { return s.priorityAction != nil }

func (s *PlayerState) SetPriorityAction(id uuid.UUID, action Action) {
	_, _ = s.ReplacePriorityAction(id, action)
}

// TakePriorityAction removes the current priority action and returns its id.
func (s *PlayerState) TakePriorityAction() (uuid.UUID, bool) {
	s.resetToIdleNextUpdate = true
	if s.priorityAction == nil {
		return uuid.Nil, false
	}
	s.priorityAction = nil
	return s.priorityActionID, true
}

// ReplacePriorityAction swaps in a new priority action and returns the
// replaced action's id, if one was executing.
func (s *PlayerState) ReplacePriorityAction(id uuid.UUID, action Action) (uuid.UUID, bool) {
	prevID := s.priorityActionID
	had := s.priorityAction != nil
	s.resetToIdleNextUpdate = true
	s.ignorePosUpdate = s.LastKnownPos != nil
	s.priorityActionID = id
	s.priorityAction = action
	return prevID, had
}

// IsValidatingRune reports an in-flight rune solve validation.
func (s *PlayerState) IsValidatingRune() bool {
	return s.runeValidateTimeout != nil
}

func (s *PlayerState) hasRuneAction() bool {
	_, ok := s.priorityAction.(ActionSolveRune)
	return ok
}

func (s *PlayerState) hasAutoMobActionOnly() bool {
	if s.HasPriorityAction() {
		return false
	}
	_, ok := s.normalAction.(ActionAutoMob)
	return ok
}

func (s *PlayerState) hasPingPongActionOnly() bool {
	if s.HasPriorityAction() {
		return false
	}
	_, ok := s.normalAction.(ActionPingPong)
	return ok
}

// ClearActionsAborted drops both queued actions; shouldIdle additionally
// bounces through Idle.
func (s *PlayerState) ClearActionsAborted(shouldIdle bool) {
	s.resetToIdleNextUpdate = shouldIdle
	s.priorityAction = nil
	s.normalAction = nil
}

// clearActionCompleted clears whichever action finished; priority preempts
// normal.
func (s *PlayerState) clearActionCompleted() {
	s.clearLastMovement()
	if s.HasPriorityAction() {
		s.priorityAction = nil
	} else {
		s.normalAction = nil
	}
}

func (s *PlayerState) clearLastMovement() {
	if s.HasPriorityAction() {
		clear(s.lastMovementPriority)
	} else {
		clear(s.lastMovementNormal)
	}
}

func (s *PlayerState) clearUnstucking(includeTransitioned bool) {
	s.unstuckCount = 0
	if includeTransitioned {
		s.unstuckTransitionedCount = 0
	}
}

func (s *PlayerState) trackRuneFailCount() {
	s.runeFailedCount++
	if s.runeFailedCount >= maxRuneFailedCount {
		s.runeFailedCount = 0
		s.runeCashShop = true
	}
}

// trackUnstuckingTransitioned reports whether unstucking should enter the
// random-input last resort.
func (s *PlayerState) trackUnstuckingTransitioned() bool {
	s.unstuckTransitionedCount++
	if s.unstuckTransitionedCount >= unstuckGambaModeCount {
		s.unstuckTransitionedCount = 0
		return true
	}
	return false
}

// trackUnstucking reports whether the player should transition to
// unstucking.
func (s *PlayerState) trackUnstucking() bool {
	s.unstuckCount++
	if s.unstuckCount >= unstuckCountThreshold {
		s.unstuckCount = 0
		return true
	}
	return false
}

// trackLastMovementRepeated counts the last movement against its repeat
// limit and reports whether the current action should abort.
func (s *PlayerState) trackLastMovementRepeated() bool {
	if s.lastMovement == lastMovementNone {
		return false
	}

	var countMax uint32
	if s.lastMovement.horizontal() {
		countMax = horizontalMovementRepeatCount
		if s.hasAutoMobActionOnly() {
			countMax = autoMobHorizontalMovementRepeatCount
		}
	} else {
		countMax = verticalMovementRepeatCount
		if s.hasAutoMobActionOnly() {
			countMax = autoMobVerticalMovementRepeatCount
		}
	}

	countMap := s.lastMovementNormal
	if s.HasPriorityAction() {
		countMap = s.lastMovementPriority
	}
	if countMap[s.lastMovement] < countMax {
		countMap[s.lastMovement]++
	}
	slog.Debug("last movement tracked", "movement", s.lastMovement, "count", countMap[s.lastMovement])
	return countMap[s.lastMovement] >= countMax
}

// fallingThreshold is the minimum y distance before the player drops down.
// Relaxed in auto mob and intermediate destinations for more fluid movement.
func (s *PlayerState) fallingThreshold(isIntermediate bool) int {
	if s.hasAutoMobActionOnly() || isIntermediate {
		return jumpThreshold
	}
	return fallingThreshold
}

// doubleJumpXThreshold is the minimum x distance before double jumping.
func (s *PlayerState) doubleJumpXThreshold(isIntermediate bool) int {
	switch {
	case s.hasAutoMobActionOnly() && !isIntermediate:
		return doubleJumpAutoMobThreshold
	case s.hasPingPongActionOnly():
		// Ping pong double jumps forever.
		return 0
	case s.Config.TeleportKey != game.KeyNone:
		// Half the threshold for mage teleports.
		return doubleJumpThreshold / 2
	default:
		return doubleJumpThreshold
	}
}

func (s *PlayerState) shouldDisableGrappling() bool {
	if s.Config.GrapplingKey == game.KeyNone {
		return true
	}
	if s.hasAutoMobActionOnly() &&
		s.Config.AutoMobPlatformsPathing && s.Config.AutoMobPlatformsPathingUpJumpOnly {
		return true
	}
	if s.hasRuneAction() &&
		s.Config.RunePlatformsPathing && s.Config.RunePlatformsPathingUpJumpOnly {
		return true
	}
	return false
}

// updateState refreshes position, health, rune validation, death and
// arrow-spam sub-states. Reports whether the position is known this tick.
func (s *PlayerState) updateState(ctx *Context) bool {
	if !s.updatePositionState(ctx) {
		return false
	}
	s.updateHealthState(ctx)
	s.updateRuneValidatingState(ctx)
	s.updateIsDeadState(ctx)
	s.updateArrowSpamState(ctx)
	return true
}

// updatePositionState detects the player inside the minimap and converts to
// bottom-left, which everything player-facing operates in.
func (s *PlayerState) updatePositionState(ctx *Context) bool {
	if ctx.Minimap.Idle == nil || ctx.Detector == nil {
		return false
	}
	minimapBBox := ctx.Minimap.Idle.BBox

	if s.ignorePosUpdate && s.LastKnownPos != nil {
		s.ignorePosUpdate = false
		return true
	}

	playerBBox, err := ctx.Detector.DetectPlayer(minimapBBox)
	if err != nil {
		return false
	}
	x := (playerBBox.Min.X + playerBBox.Max.X) / 2
	y := minimapBBox.Dy() - playerBBox.Max.Y
	pos := image.Pt(x, y)

	lastKnown := pos
	if s.LastKnownPos != nil {
		lastKnown = *s.LastKnownPos
	}
	if lastKnown != pos {
		s.unstuckCount = 0
		s.unstuckTransitionedCount = 0
		s.isStationaryTimeout = Timeout{}
	}
	s.updateVelocity(pos, ctx.Tick)

	timeout, lifecycle := NextTimeout(s.isStationaryTimeout, moveTimeout)
	s.IsStationary = lifecycle == LifecycleEnded
	if lifecycle != LifecycleEnded {
		s.isStationaryTimeout = timeout
	}
	s.LastKnownPos = &pos
	return true
}

// updateVelocity pushes a sample and recomputes the weighted average of the
// finite differences, exponentially smoothed against the previous value.
func (s *PlayerState) updateVelocity(pos image.Point, tick uint64) {
	if len(s.velocitySampleBuf) == velocitySamples {
		s.velocitySampleBuf = s.velocitySampleBuf[1:]
	}
	s.velocitySampleBuf = append(s.velocitySampleBuf, velocitySample{Pos: pos, Tick: tick})
	if len(s.velocitySampleBuf) < 2 {
		return
	}

	var sumX, sumY, totalWeight float64
	for i := 0; i+1 < len(s.velocitySampleBuf); i++ {
		a := s.velocitySampleBuf[i]
		b := s.velocitySampleBuf[i+1]
		dt := float64(b.Tick - a.Tick)
		if dt == 0 {
			continue
		}
		weight := float64(i + 1)
		sumX += weight * float64(b.Pos.X-a.Pos.X) / dt
		sumY += weight * float64(b.Pos.Y-a.Pos.Y) / dt
		totalWeight += weight
	}
	if totalWeight <= 0 {
		return
	}

	avgX := abs(sumX / totalWeight)
	avgY := abs(sumY / totalWeight)
	s.Velocity[0] = 0.5*avgX + 0.5*s.Velocity[0]
	s.Velocity[1] = 0.5*avgY + 0.5*s.Velocity[1]
}

// updateRuneValidatingState advances the post-solve timeout; when it elapses
// the rune buff's absence counts a failure.
func (s *PlayerState) updateRuneValidatingState(ctx *Context) {
	if s.runeValidateTimeout == nil {
		return
	}
	timeout, lifecycle := NextTimeout(*s.runeValidateTimeout, runeValidateTimeoutTicks)
	if lifecycle != LifecycleEnded {
		s.runeValidateTimeout = &timeout
		return
	}
	s.runeValidateTimeout = nil
	if ctx.HasRuneBuff() {
		s.runeFailedCount = 0
	} else {
		s.trackRuneFailCount()
	}
}

// updateHealthState detects the HP bar once, then rate-limits current/max
// extraction and sips a potion below the configured percentage.
func (s *PlayerState) updateHealthState(ctx *Context) {
	if _, solving := ctx.Player.(*SolvingRune); solving {
		return
	}
	if s.Config.UsePotionBelowPercent <= 0 {
		s.hasHealth = false
		s.healthTask = nil
		s.healthBar = nil
		s.healthBarTask = nil
		return
	}

	if s.healthBar == nil {
		update := pollDetection(ctx, time.Second, &s.healthBarTask, func(d *detect.Cached) (image.Rectangle, error) {
			return d.DetectPlayerHealthBar()
		})
		if bar, ok := update.Ok(); ok {
			s.healthBar = &bar
		}
		return
	}

	interval := s.Config.UpdateHealthInterval
	if interval <= 0 {
		interval = time.Second
	}
	healthBar := *s.healthBar
	update := pollDetection(ctx, interval, &s.healthTask, func(d *detect.Cached) (healthPair, error) {
		currentBar, maxBar, err := d.DetectPlayerCurrentMaxHealthBars(healthBar)
		if err != nil {
			return healthPair{}, err
		}
		current, max, err := d.DetectPlayerHealth(currentBar, maxBar)
		if err != nil {
			return healthPair{}, err
		}
		slog.Debug("health updated", "current", current, "max", max)
		return healthPair{Current: current, Max: max}, nil
	})
	health, ok := update.Ok()
	if !ok {
		return
	}

	s.health = health
	s.hasHealth = true
	if health.Max > 0 &&
		float64(health.Current)/float64(health.Max) <= s.Config.UsePotionBelowPercent {
		_ = ctx.Keys.Send(s.Config.PotionKey)
	}
}

// updateIsDeadState latches death, notifies once and clicks the tomb OK
// button to respawn.
func (s *PlayerState) updateIsDeadState(ctx *Context) {
	update := pollDetection(ctx, 3*time.Second, &s.isDeadTask, func(d *detect.Cached) (bool, error) {
		return d.DetectPlayerIsDead()
	})
	isDead, ok := update.Ok()
	if !ok {
		return
	}
	if isDead && !s.isDead {
		_ = ctx.Notify.Schedule(notify.PlayerIsDead)
	}
	if isDead {
		buttonUpdate := pollDetection(ctx, time.Second, &s.isDeadButtonTask, func(d *detect.Cached) (image.Rectangle, error) {
			return d.DetectTombOKButton()
		})
		if bbox, ok := buttonUpdate.Ok(); ok {
			x := (bbox.Min.X + bbox.Max.X) / 2
			y := (bbox.Min.Y + bbox.Max.Y) / 2
			_ = ctx.Keys.SendMouse(x, y, game.MouseClick)
		} else if _, failed := buttonUpdate.Err(); failed {
			// Nudge the mouse so the button detection is not blocked
			// by the cursor hover state.
			_ = ctx.Keys.SendMouse(300, 100, game.MouseMove)
		}
	}
	s.isDead = isDead
}

// updateArrowSpamState mashes through the arrow-spam dialog.
func (s *PlayerState) updateArrowSpamState(ctx *Context) {
	update := pollDetection(ctx, 3*time.Second, &s.arrowSpamTask, func(d *detect.Cached) (bool, error) {
		return d.DetectArrowSpamOpen()
	})
	isArrowSpam, ok := update.Ok()
	if !ok {
		return
	}
	if isArrowSpam && !s.isArrowSpam {
		_ = ctx.Notify.Schedule(notify.ArrowSpam)
	}
	if isArrowSpam {
		for range 4 {
			_ = ctx.Keys.Send(game.KeyRight)
			_ = ctx.Keys.Send(game.KeyLeft)
		}
	}
	s.isArrowSpam = isArrowSpam
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
