package bot

import (
	"image"
	"log/slog"
	"time"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/game"
	"github.com/riverbell/mapler/internal/notify"
	"github.com/riverbell/mapler/internal/pathing"
	"github.com/riverbell/mapler/internal/task"
)

const (
	minimapBorderWhitenessThreshold uint8 = 160
	maxPortalsCount                       = 16
	portalInvalidateThreshold             = 3
	anchorAcceptableErrorRange            = 45
)

// anchor is a fixed pixel with its sampled color, used to tell whether the
// minimap has moved or another UI overlaps it.
type anchor struct {
	Point image.Point
	Pixel [4]byte
}

type anchors struct {
	TL anchor
	BR anchor
}

type minimapRegion struct {
	Anchors anchors
	BBox    image.Rectangle
}

// MinimapState is the minimap's persistent companion mutated in place across
// ticks.
type MinimapState struct {
	minimapTask *task.Task[minimapRegion]
	runeTask    *task.Task[image.Point]
	portalsTask *task.Task[[]image.Rectangle]
	// portalsInvalidateMap removes false-positive portals over time so
	// player actions do not get wrongly cancelled (e.g. in up jump).
	portalsInvalidateMap map[image.Rectangle]uint32
	eliteBossTask        *task.Task[struct{}]
	guildiePlayerTask    *task.Task[struct{}]
	strangerPlayerTask   *task.Task[struct{}]
	friendPlayerTask     *task.Task[struct{}]

	platforms []pathing.Platform
	// platformsDirty requests a neighbor and bound recompute on the next
	// idle tick.
	platformsDirty bool
}

// SetPlatforms replaces the user platform list and marks it for recompute.
func (s *MinimapState) SetPlatforms(platforms []pathing.Platform) {
	s.platforms = platforms
	s.platformsDirty = true
}

func (s *MinimapState) resetSubTasks() {
	s.runeTask = nil
	s.portalsTask = nil
	s.portalsInvalidateMap = make(map[image.Rectangle]uint32)
	s.eliteBossTask = nil
	s.guildiePlayerTask = nil
	s.strangerPlayerTask = nil
	s.friendPlayerTask = nil
}

// MinimapIdle is the detected minimap plus the threshold-guarded signals
// derived from it.
type MinimapIdle struct {
	anchors anchors
	// BBox is the minimap bounding box in top-left frame coordinates.
	BBox image.Rectangle
	// PartiallyOverlapping is set while exactly one anchor mismatches,
	// meaning another UI covers part of the minimap.
	PartiallyOverlapping bool

	rune              Threshold[image.Point]
	hasEliteBoss      Threshold[struct{}]
	hasGuildiePlayer  Threshold[struct{}]
	hasStrangerPlayer Threshold[struct{}]
	hasFriendPlayer   Threshold[struct{}]

	// portals are in bottom-left player coordinates.
	portals []image.Rectangle

	// Platforms are in bottom-left player coordinates; PlatformsBound is
	// in top-left frame coordinates.
	Platforms         []pathing.PlatformWithNeighbors
	PlatformsBound    image.Rectangle
	HasPlatformsBound bool
}

// Rune returns the rune position in bottom-left coordinates, if one is held.
func (m *MinimapIdle) Rune() (image.Point, bool) {
	if p := m.rune.Value(); p != nil {
		return *p, true
	}
	return image.Point{}, false
}

func (m *MinimapIdle) Portals() []image.Rectangle {
	return m.portals
}

func (m *MinimapIdle) HasEliteBoss() bool {
	return m.hasEliteBoss.Has()
}

func (m *MinimapIdle) HasAnyOtherPlayer() bool {
	return m.hasGuildiePlayer.Has() || m.hasStrangerPlayer.Has() || m.hasFriendPlayer.Has()
}

// IsPositionInsidePortal reports whether pos (bottom-left) falls inside a
// detected portal. Upward movement is cancelled near portals so the player
// does not accidentally enter one.
func (m *MinimapIdle) IsPositionInsidePortal(pos image.Point) bool {
	for _, portal := range m.portals {
		if pos.X >= portal.Min.X && pos.X < portal.Max.X &&
			pos.Y >= portal.Min.Y && pos.Y < portal.Max.Y {
			slog.Info("position inside portal", "pos", pos, "portal", portal)
			return true
		}
	}
	return false
}

// Minimap is the minimap contextual state: detecting the HUD region, or idle
// with a known region.
type Minimap struct {
	// Idle is nil while detecting.
	Idle *MinimapIdle
}

func (m Minimap) IsIdle() bool { return m.Idle != nil }

func (m Minimap) Update(ctx *Context, state *MinimapState) (Minimap, Flow) {
	if m.Idle == nil {
		return updateMinimapDetecting(ctx, state), FlowNext
	}
	next := updateMinimapIdle(ctx, state, *m.Idle)
	return next, FlowNext
}

func updateMinimapDetecting(ctx *Context, state *MinimapState) Minimap {
	update := pollDetection(ctx, 2*time.Second, &state.minimapTask, func(d *detect.Cached) (minimapRegion, error) {
		bbox, err := d.DetectMinimap(minimapBorderWhitenessThreshold)
		if err != nil {
			return minimapRegion{}, err
		}
		size := min(bbox.Dx(), bbox.Dy())
		tl, err := anchorAt(d.Frame(), bbox.Min, size, 1)
		if err != nil {
			return minimapRegion{}, err
		}
		br, err := anchorAt(d.Frame(), bbox.Max, size, -1)
		if err != nil {
			return minimapRegion{}, err
		}
		region := minimapRegion{Anchors: anchors{TL: tl, BR: br}, BBox: bbox}
		slog.Debug("minimap anchors found", "tl", tl.Point, "br", br.Point)
		return region, nil
	})

	region, ok := update.Ok()
	if !ok {
		return Minimap{}
	}

	platforms, bound, hasBound := platformsAndBound(region.BBox, state.platforms)
	state.platformsDirty = false
	state.resetSubTasks()

	return Minimap{Idle: &MinimapIdle{
		anchors:           region.Anchors,
		BBox:              region.BBox,
		rune:              NewThreshold[image.Point](3),
		hasEliteBoss:      NewThreshold[struct{}](2),
		hasGuildiePlayer:  NewThreshold[struct{}](2),
		hasStrangerPlayer: NewThreshold[struct{}](2),
		hasFriendPlayer:   NewThreshold[struct{}](2),
		Platforms:         platforms,
		PlatformsBound:    bound,
		HasPlatformsBound: hasBound,
	}}
}

func updateMinimapIdle(ctx *Context, state *MinimapState, idle MinimapIdle) Minimap {
	// The cash shop covers the whole screen; keep the minimap as-is until
	// the player exits.
	if _, ok := ctx.Player.(*CashShopThenExit); ok {
		return Minimap{Idle: &idle}
	}
	if ctx.Detector == nil {
		return Minimap{Idle: &idle}
	}

	frame := ctx.Detector.Frame()
	tlPixel, tlOk := frame.Pixel(idle.anchors.TL.Point.X, idle.anchors.TL.Point.Y)
	brPixel, brOk := frame.Pixel(idle.anchors.BR.Point.X, idle.anchors.BR.Point.Y)
	if !tlOk || !brOk {
		return Minimap{}
	}
	tlMatch := anchorMatch(idle.anchors.TL.Pixel, tlPixel)
	brMatch := anchorMatch(idle.anchors.BR.Pixel, brPixel)
	if !tlMatch && !brMatch {
		slog.Debug("minimap anchors mismatch",
			"tl", tlPixel, "br", brPixel,
			"expected_tl", idle.anchors.TL.Pixel, "expected_br", idle.anchors.BR.Pixel)
		return Minimap{}
	}
	idle.PartiallyOverlapping = tlMatch != brMatch

	idle.rune = updateRuneTask(ctx, &state.runeTask, idle.BBox, idle.rune)
	idle.hasEliteBoss = updateEliteBossTask(ctx, &state.eliteBossTask, idle.hasEliteBoss)
	idle.hasGuildiePlayer = updateOtherPlayerTask(ctx, &state.guildiePlayerTask, idle.BBox,
		idle.hasGuildiePlayer, detect.OtherPlayerGuildie)
	idle.hasStrangerPlayer = updateOtherPlayerTask(ctx, &state.strangerPlayerTask, idle.BBox,
		idle.hasStrangerPlayer, detect.OtherPlayerStranger)
	idle.hasFriendPlayer = updateOtherPlayerTask(ctx, &state.friendPlayerTask, idle.BBox,
		idle.hasFriendPlayer, detect.OtherPlayerFriend)
	idle.portals = updatePortalsTask(ctx, &state.portalsTask, state.portalsInvalidateMap,
		idle.portals, idle.BBox)

	if state.platformsDirty {
		idle.Platforms, idle.PlatformsBound, idle.HasPlatformsBound =
			platformsAndBound(idle.BBox, state.platforms)
		state.platformsDirty = false
	}

	return Minimap{Idle: &idle}
}

func anchorMatch(want, got [4]byte) bool {
	b := absDiff(want[0], got[0])
	g := absDiff(want[1], got[1])
	r := absDiff(want[2], got[2])
	// Average for grayscale.
	return (b+g+r)/3 <= anchorAcceptableErrorRange
}

func absDiff(a, b byte) uint32 {
	if a > b {
		return uint32(a - b)
	}
	return uint32(b - a)
}

func updateRuneTask(ctx *Context, slot **task.Task[image.Point], minimap image.Rectangle, rune Threshold[image.Point]) Threshold[image.Point] {
	wasNone := !rune.Has()
	if _, solving := ctx.Player.(*SolvingRune); solving && !wasNone {
		return rune
	}

	rune = updateThresholdDetection(ctx, 5*time.Second, rune, slot, func(d *detect.Cached) (image.Point, error) {
		bbox, err := d.DetectMinimapRune(minimap)
		if err != nil {
			return image.Point{}, err
		}
		return centerOfBBox(bbox, minimap), nil
	})

	if wasNone && rune.Has() && !ctx.Operation.Halting() {
		slog.Info("rune appeared", "pos", *rune.Value())
		_ = ctx.Notify.Schedule(notify.RuneAppear)
	}
	return rune
}

func updateEliteBossTask(ctx *Context, slot **task.Task[struct{}], hasEliteBoss Threshold[struct{}]) Threshold[struct{}] {
	didHave := hasEliteBoss.Has()
	hasEliteBoss = updateThresholdDetection(ctx, 5*time.Second, hasEliteBoss, slot, func(d *detect.Cached) (struct{}, error) {
		found, err := d.DetectEliteBossBar()
		if err != nil {
			return struct{}{}, err
		}
		if !found {
			return struct{}{}, detect.ErrNotFound
		}
		return struct{}{}, nil
	})

	if !ctx.Operation.Halting() && !didHave && hasEliteBoss.Has() {
		slog.Info("elite boss appeared")
		_ = ctx.Notify.Schedule(notify.EliteBossAppear)
	}
	return hasEliteBoss
}

func updateOtherPlayerTask(ctx *Context, slot **task.Task[struct{}], minimap image.Rectangle, threshold Threshold[struct{}], kind detect.OtherPlayerKind) Threshold[struct{}] {
	hadPlayer := threshold.Has()
	threshold = updateThresholdDetection(ctx, 3*time.Second, threshold, slot, func(d *detect.Cached) (struct{}, error) {
		found, err := d.DetectPlayerKind(minimap, kind)
		if err != nil {
			return struct{}{}, err
		}
		if !found {
			return struct{}{}, detect.ErrNotFound
		}
		return struct{}{}, nil
	})

	if !ctx.Operation.Halting() && !hadPlayer && threshold.Has() {
		slog.Info("other player appeared", "kind", kind)
		var notification notify.Kind
		switch kind {
		case detect.OtherPlayerGuildie:
			notification = notify.PlayerGuildieAppear
		case detect.OtherPlayerStranger:
			notification = notify.PlayerStrangerAppear
		case detect.OtherPlayerFriend:
			notification = notify.PlayerFriendAppear
		}
		_ = ctx.Notify.Schedule(notification)
	}
	return threshold
}

func updatePortalsTask(ctx *Context, slot **task.Task[[]image.Rectangle], invalidateMap map[image.Rectangle]uint32, portals []image.Rectangle, minimap image.Rectangle) []image.Rectangle {
	update := pollDetection(ctx, 5*time.Second, slot, func(d *detect.Cached) ([]image.Rectangle, error) {
		return d.DetectMinimapPortals(minimap)
	})

	detected, ok := update.Ok()
	if !ok {
		return portals
	}

	newPortals := make(map[image.Rectangle]struct{}, len(detected))
	for _, portal := range detected {
		// Flip to bottom-left player coordinates.
		flipped := image.Rect(
			portal.Min.X,
			minimap.Dy()-portal.Max.Y,
			portal.Max.X,
			minimap.Dy()-portal.Max.Y+portal.Dy(),
		)
		newPortals[flipped] = struct{}{}
	}
	oldPortals := make(map[image.Rectangle]struct{}, len(portals))
	for _, portal := range portals {
		oldPortals[portal] = struct{}{}
	}
	return mergePortalsAndInvalidate(oldPortals, newPortals, invalidateMap)
}

func mergePortalsAndInvalidate(oldPortals, newPortals map[image.Rectangle]struct{}, invalidateMap map[image.Rectangle]uint32) []image.Rectangle {
	merged := make(map[image.Rectangle]struct{}, len(oldPortals)+len(newPortals))
	for portal := range oldPortals {
		merged[portal] = struct{}{}
	}
	for portal := range newPortals {
		merged[portal] = struct{}{}
	}

	// Portals seen again get their invalidation count reset.
	for portal := range newPortals {
		if _, ok := oldPortals[portal]; ok {
			invalidateMap[portal] = 0
		}
	}
	// Portals that disappeared get theirs incremented and are dropped once
	// past the threshold.
	for portal := range oldPortals {
		if _, ok := newPortals[portal]; ok {
			continue
		}
		invalidateMap[portal]++
		if invalidateMap[portal] >= portalInvalidateThreshold {
			delete(invalidateMap, portal)
			delete(merged, portal)
		}
	}

	if len(merged) >= maxPortalsCount {
		clear(invalidateMap)
		return nil
	}

	out := make([]image.Rectangle, 0, len(merged))
	for portal := range merged {
		out = append(out, portal)
	}
	return out
}

func platformsAndBound(bbox image.Rectangle, platforms []pathing.Platform) ([]pathing.PlatformWithNeighbors, image.Rectangle, bool) {
	withNeighbors := pathing.FindNeighbors(platforms,
		doubleJumpThreshold, jumpThreshold, grapplingMaxThreshold)
	if len(withNeighbors) > pathing.MaxPlatforms {
		withNeighbors = withNeighbors[:pathing.MaxPlatforms]
	}
	bound, ok := pathing.Bound(bbox, withNeighbors)
	return withNeighbors, bound, ok
}

// updateThresholdDetection drives a detection task and folds its result into
// a threshold: an Ok replaces the value, an Err only counts toward clearing.
func updateThresholdDetection[T any](ctx *Context, repeatDelay time.Duration, threshold Threshold[T], slot **task.Task[T], fn func(d *detect.Cached) (T, error)) Threshold[T] {
	update := pollDetection(ctx, repeatDelay, slot, fn)
	if value, ok := update.Ok(); ok {
		threshold.Hit(value)
	} else if _, ok := update.Err(); ok {
		threshold.Miss()
	}
	return threshold
}

// centerOfBBox converts a detected bbox inside the minimap to the
// bottom-left point the player navigates to.
func centerOfBBox(bbox, minimap image.Rectangle) image.Point {
	x := (bbox.Min.X + bbox.Max.X) / 2
	y := minimap.Dy() - bbox.Max.Y + 1
	return image.Pt(x, y)
}

// anchorAt walks the diagonal from offset until a white-ish pixel is found.
func anchorAt(frame *game.Frame, offset image.Point, size int, sign int) (anchor, error) {
	for i := 0; i < size; i++ {
		value := sign * i
		pt := offset.Add(image.Pt(value, value))
		pixel, ok := frame.Pixel(pt.X, pt.Y)
		if !ok {
			continue
		}
		if pixel[0] >= minimapBorderWhitenessThreshold &&
			pixel[1] >= minimapBorderWhitenessThreshold &&
			pixel[2] >= minimapBorderWhitenessThreshold {
			return anchor{Point: pt, Pixel: pixel}, nil
		}
	}
	return anchor{}, detect.ErrNotFound
}
