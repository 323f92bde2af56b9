package bot

import (
	"image"
	"log/slog"
	"sort"

	"github.com/riverbell/mapler/internal/pathing"
	"github.com/riverbell/mapler/internal/rng"
)

// Quadrant is one of the four sub-regions of the auto-mob bound, visited in
// clockwise order.
type Quadrant int

const (
	QuadrantTopLeft Quadrant = iota
	QuadrantTopRight
	QuadrantBottomRight
	QuadrantBottomLeft
)

func (q Quadrant) nextClockwise() Quadrant {
	switch q {
	case QuadrantTopLeft:
		return QuadrantTopRight
	case QuadrantTopRight:
		return QuadrantBottomRight
	case QuadrantBottomRight:
		return QuadrantBottomLeft
	default:
		return QuadrantTopLeft
	}
}

func quadrantBound(q Quadrant, bound image.Rectangle) image.Rectangle {
	halfW := bound.Dx() / 2
	halfH := bound.Dy() / 2
	midX := bound.Min.X + halfW
	midY := bound.Min.Y + halfH

	switch q {
	case QuadrantTopLeft:
		return image.Rect(bound.Min.X, bound.Min.Y, midX, midY)
	case QuadrantTopRight:
		return image.Rect(midX, bound.Min.Y, midX+halfW, midY)
	case QuadrantBottomRight:
		return image.Rect(midX, midY, midX+halfW, midY+halfH)
	default:
		return image.Rect(bound.Min.X, midY, midX, midY+halfH)
	}
}

// AutoMobLastQuadrant exposes the rotation progress for the host UI.
func (s *PlayerState) AutoMobLastQuadrant() (Quadrant, bool) {
	return s.autoMobLastQuadrant, s.autoMobHasQuadrant
}

// AutoMobPathingPoint picks the next hunting point, walking the quadrants of
// bound clockwise. bound is in top-left minimap coordinates; the returned
// point is bottom-left.
func (s *PlayerState) AutoMobPathingPoint(ctx *Context, bound image.Rectangle) image.Point {
	idle := ctx.Minimap.Idle
	bbox := idle.BBox
	height := bbox.Dy()

	var current Quadrant
	if s.autoMobHasQuadrant {
		current = s.autoMobLastQuadrant
	} else {
		// Locate the player's quadrant; position converts to top-left
		// first.
		midX := bound.Min.X + bound.Dx()/2
		midY := bound.Min.Y + bound.Dy()/2
		pos := *s.LastKnownPos
		posTL := image.Pt(pos.X, height-pos.Y)
		switch {
		case posTL.X < midX && posTL.Y < midY:
			current = QuadrantTopLeft
		case posTL.X >= midX && posTL.Y < midY:
			current = QuadrantTopRight
		case posTL.X >= midX:
			current = QuadrantBottomRight
		default:
			current = QuadrantBottomLeft
		}
	}

	next := current.nextClockwise()
	nextBound := quadrantBound(next, bound)
	nextNextBound := quadrantBound(next.nextClockwise(), bound)

	s.autoMobHasQuadrant = true
	s.autoMobLastQuadrant = next
	s.autoMobQuadrantBound = flipRectPtr(nextBound, height)
	s.autoMobNextQuadBound = flipRectPtr(nextNextBound, height)

	// Prefer a random platform inside the next quadrant if any overlaps.
	var candidates []pathing.Platform
	for _, platform := range idle.Platforms {
		xsOverlap := platform.XStart < nextBound.Max.X && nextBound.Min.X < platform.XEnd
		yTL := height - platform.Y
		if xsOverlap && yTL >= nextBound.Min.Y && yTL < nextBound.Max.Y {
			candidates = append(candidates, platform.Platform)
		}
	}
	if platform, ok := rng.Choose(ctx.RNG, candidates); ok {
		lo := max(nextBound.Min.X, platform.XStart)
		hi := min(nextBound.Max.X, platform.XEnd)
		return image.Pt(ctx.RNG.RangeInt(lo, hi), platform.Y)
	}

	x := ctx.RNG.RangeInt(nextBound.Min.X, nextBound.Max.X)
	var solidifiedYs []int
	for y, count := range s.autoMobReachableY {
		if count < autoMobReachableYSolidifyCount {
			continue
		}
		yInverted := height - y
		if yInverted >= nextBound.Min.Y && yInverted < nextBound.Max.Y {
			solidifiedYs = append(solidifiedYs, y)
		}
	}
	if y, ok := rng.Choose(ctx.RNG, solidifiedYs); ok {
		return image.Pt(x, y)
	}
	return image.Pt(x, height-ctx.RNG.RangeInt(nextBound.Min.Y, nextBound.Max.Y))
}

// autoMobReachableYRequireUpdate reports whether y still needs solidifying.
func (s *PlayerState) autoMobReachableYRequireUpdate(y int) bool {
	return s.autoMobReachableY[y] < autoMobReachableYSolidifyCount
}

// AutoMobPickReachableYPosition matches mobPos against a learned reachable y.
// Returns false when the mob should be dropped: its x falls inside a
// solidified ignore range, or it lies outside both rotation quadrants.
func (s *PlayerState) AutoMobPickReachableYPosition(ctx *Context, mobPos image.Point) (image.Point, bool) {
	if len(s.autoMobReachableY) == 0 {
		s.autoMobPopulateReachableY(ctx)
	}

	var candidates []int
	for y := range s.autoMobReachableY {
		if absInt(mobPos.Y-y) <= autoMobReachableYThreshold {
			candidates = append(candidates, y)
		}
	}
	y, hasY := rng.Choose(ctx.RNG, candidates)

	// y only enters the ignore map once solidified, so no separate
	// solidify check is needed here.
	if hasY {
		for _, r := range s.autoMobIgnoreXs[y] {
			if r.Count >= autoMobIgnoreXsSolidifyCount && r.contains(mobPos.X) {
				slog.Debug("auto mob ignored position", "x", mobPos.X, "y", y, "mob_y", mobPos.Y)
				return image.Point{}, false
			}
		}
	}

	picked := mobPos
	if hasY {
		picked.Y = y
	}
	if s.autoMobQuadrantBound != nil && s.autoMobNextQuadBound != nil {
		if !picked.In(*s.autoMobQuadrantBound) && !picked.In(*s.autoMobNextQuadBound) {
			return image.Point{}, false
		}
	}
	return picked, true
}

func (s *PlayerState) autoMobPopulateReachableY(ctx *Context) {
	// Believes in user input, lets goo...
	for _, platform := range ctx.Minimap.Idle.Platforms {
		s.autoMobReachableY[platform.Y] = autoMobReachableYSolidifyCount
	}
	if pos := s.LastKnownPos; pos != nil {
		if _, ok := s.autoMobReachableY[pos.Y]; !ok {
			s.autoMobReachableY[pos.Y] = autoMobReachableYSolidifyCount - 1
		}
	}
	slog.Debug("auto mob initial reachable y map", "map", s.autoMobReachableY)
}

// autoMobTrackReachableY solidifies the picked y against where the player
// actually ended up. Called from the terminal state of the auto-mob action.
func (s *PlayerState) autoMobTrackReachableY(y int) {
	pos := s.LastKnownPos
	if pos == nil {
		return
	}
	// The actual position is used instead of y because they might differ.
	if y != pos.Y {
		if count, ok := s.autoMobReachableY[y]; ok {
			if count <= 1 {
				delete(s.autoMobReachableY, y)
			} else {
				s.autoMobReachableY[y] = count - 1
			}
		}
	}
	if s.autoMobReachableY[pos.Y] < autoMobReachableYSolidifyCount {
		s.autoMobReachableY[pos.Y]++
	}
	slog.Debug("auto mob reachable y tracked", "y", pos.Y, "count", s.autoMobReachableY[pos.Y])
}

// autoMobTrackIgnoreXs blacklists x ranges that keep aborting the auto-mob
// action, and rehabilitates them on success.
func (s *PlayerState) autoMobTrackIgnoreXs(ctx *Context, isAborted bool) {
	if !s.hasAutoMobActionOnly() {
		return
	}
	if len(s.autoMobIgnoreXs) == 0 {
		s.autoMobPopulateIgnoreXs(ctx)
	}

	mob, ok := s.normalAction.(ActionAutoMob)
	if !ok {
		return
	}
	x, y := mob.Position.X, mob.Position.Y
	if s.autoMobReachableYRequireUpdate(y) {
		return
	}

	ranges := s.autoMobIgnoreXs[y]
	if len(ranges) == 0 {
		ranges = []ignoreRange{newIgnoreRange(x, 0)}
	}

	if isAborted && shouldMergeIgnoreRanges(ranges) {
		ranges = mergeIgnoreRanges(ranges)
		slog.Debug("auto mob merged ignore xs", "y", y, "ranges", ranges)
	}

	merged := false
	for i := range ranges {
		if !ranges[i].contains(x) {
			continue
		}
		if ranges[i].Count < autoMobIgnoreXsSolidifyCount {
			if isAborted {
				ranges[i].Count++
			} else if ranges[i].Count > 0 {
				ranges[i].Count--
			}
			if !isAborted && ranges[i].Count == 0 {
				ranges = append(ranges[:i], ranges[i+1:]...)
			}
			slog.Debug("auto mob updated ignore xs", "y", y, "ranges", ranges)
		}
		merged = true
		break
	}
	if !merged && isAborted {
		ranges = append(ranges, newIgnoreRange(x, 1))
		sort.Slice(ranges, func(i, j int) bool {
			return ranges[i].Start < ranges[j].Start
		})
		slog.Debug("auto mob new ignore xs", "y", y, "ranges", ranges)
	}
	s.autoMobIgnoreXs[y] = ranges
}

func shouldMergeIgnoreRanges(ranges []ignoreRange) bool {
	for i := 0; i+1 < len(ranges); i++ {
		overlapping := ranges[i+1].Start < ranges[i].End
		solidified := ranges[i].Count >= autoMobIgnoreXsSolidifyCount ||
			ranges[i+1].Count >= autoMobIgnoreXsSolidifyCount
		if overlapping && solidified {
			return true
		}
	}
	return false
}

// mergeIgnoreRanges folds overlapping adjacent ranges when either side is
// solidified. Ranges are kept sorted by start and never empty.
func mergeIgnoreRanges(ranges []ignoreRange) []ignoreRange {
	merged := make([]ignoreRange, 0, len(ranges))
	for _, r := range ranges {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			overlapping := r.Start < last.End
			shouldMerge := last.Count >= autoMobIgnoreXsSolidifyCount ||
				r.Count >= autoMobIgnoreXsSolidifyCount
			if overlapping && shouldMerge {
				last.End = max(last.End, r.End)
				last.Count = autoMobIgnoreXsSolidifyCount
				continue
			}
		}
		merged = append(merged, r)
	}
	return merged
}

// autoMobPopulateIgnoreXs pre-seeds ignore ranges from the gaps between
// platforms, per y level.
func (s *PlayerState) autoMobPopulateIgnoreXs(ctx *Context) {
	idle := ctx.Minimap.Idle
	if len(idle.Platforms) == 0 {
		return
	}
	width := idle.BBox.Dx()

	for y, row := range pathing.GroupByY(idle.Platforms) {
		ignores := s.autoMobIgnoreXs[y]

		if row[0].XStart > 0 {
			ignores = append(ignores, ignoreRange{
				Start: 0, End: row[0].XStart, Count: autoMobIgnoreXsSolidifyCount,
			})
		}
		lastEnd := row[0].XEnd
		for _, r := range row[1:] {
			if r.XStart > lastEnd {
				ignores = append(ignores, ignoreRange{
					Start: lastEnd, End: r.XStart, Count: autoMobIgnoreXsSolidifyCount,
				})
			}
			lastEnd = max(lastEnd, r.XEnd)
		}
		if lastEnd < width {
			ignores = append(ignores, ignoreRange{
				Start: lastEnd, End: width, Count: autoMobIgnoreXsSolidifyCount,
			})
		}

		// Downstream merging depends on sort order by range start.
		sort.Slice(ignores, func(i, j int) bool {
			return ignores[i].Start < ignores[j].Start
		})
		s.autoMobIgnoreXs[y] = ignores
	}
}

func newIgnoreRange(x int, count uint32) ignoreRange {
	return ignoreRange{
		Start: x - autoMobIgnoreXsRange,
		End:   x + autoMobIgnoreXsRange + 1,
		Count: count,
	}
}

func flipRectPtr(r image.Rectangle, height int) *image.Rectangle {
	flipped := image.Rect(r.Min.X, height-r.Max.Y, r.Max.X, height-r.Max.Y+r.Dy())
	return &flipped
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
