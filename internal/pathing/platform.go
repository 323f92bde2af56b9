// Package pathing models the user-provided platforms of a map and derives
// which platforms can reach which. Platforms live in bottom-left player
// coordinates; only the enclosing bound is produced in top-left frame
// coordinates for the detector side.
package pathing

import (
	"image"
	"sort"
)

// MaxPlatforms bounds the user platform list.
const MaxPlatforms = 24

// Platform is a walkable horizontal segment: x in [XStart, XEnd) at height Y
// (bottom-left coordinates).
type Platform struct {
	XStart int
	XEnd   int
	Y      int
}

func New(xStart, xEnd, y int) Platform {
	return Platform{XStart: xStart, XEnd: xEnd, Y: y}
}

// ContainsX reports whether x falls on this platform.
func (p Platform) ContainsX(x int) bool {
	return x >= p.XStart && x < p.XEnd
}

func (p Platform) overlapsX(o Platform) bool {
	return p.XStart < o.XEnd && o.XStart < p.XEnd
}

func (p Platform) gapX(o Platform) int {
	if p.overlapsX(o) {
		return 0
	}
	if p.XEnd <= o.XStart {
		return o.XStart - p.XEnd
	}
	return p.XStart - o.XEnd
}

// PlatformWithNeighbors carries a platform plus the platforms reachable from
// it by walking, jumping, double jumping, grappling or dropping.
type PlatformWithNeighbors struct {
	Platform
	Neighbors []Platform
}

// FindNeighbors links each platform to the platforms reachable from it.
// Reachability mirrors the player's movement set:
//
//   - same height, horizontal gap within doubleJumpThreshold;
//   - higher by at most jumpThreshold with an x overlap (jump / up jump);
//   - higher by at most grapplingMaxThreshold with an x overlap (grapple);
//   - any lower platform with an x overlap (drop down).
func FindNeighbors(platforms []Platform, doubleJumpThreshold, jumpThreshold, grapplingMaxThreshold int) []PlatformWithNeighbors {
	out := make([]PlatformWithNeighbors, 0, len(platforms))
	for _, p := range platforms {
		with := PlatformWithNeighbors{Platform: p}
		for _, o := range platforms {
			if o == p {
				continue
			}
			if reachable(p, o, doubleJumpThreshold, jumpThreshold, grapplingMaxThreshold) {
				with.Neighbors = append(with.Neighbors, o)
			}
		}
		out = append(out, with)
	}
	return out
}

func reachable(from, to Platform, doubleJump, jump, grapple int) bool {
	dy := to.Y - from.Y
	switch {
	case dy == 0:
		return from.gapX(to) <= doubleJump
	case dy > 0:
		// Climbing needs some horizontal footing overlap.
		return from.overlapsX(to) && (dy <= jump || dy <= grapple)
	default:
		return from.overlapsX(to)
	}
}

// Bound returns the smallest rectangle in top-left minimap coordinates
// enclosing all platforms, or false when there are none. minimap is the
// minimap bounding box whose height flips y.
func Bound(minimap image.Rectangle, platforms []PlatformWithNeighbors) (image.Rectangle, bool) {
	if len(platforms) == 0 {
		return image.Rectangle{}, false
	}

	height := minimap.Dy()
	minX, maxX := platforms[0].XStart, platforms[0].XEnd
	minY, maxY := platforms[0].Y, platforms[0].Y
	for _, p := range platforms[1:] {
		minX = min(minX, p.XStart)
		maxX = max(maxX, p.XEnd)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}

	// Flip to top-left and pad one platform-height above so jumps near the
	// top row stay inside the bound.
	top := height - maxY
	bottom := height - minY
	return image.Rect(minX, max(0, top-1), maxX, min(height, bottom+1)), true
}

// GroupByY buckets platform x-ranges per height, each bucket sorted by range
// start. Auto-mob gap seeding consumes this.
func GroupByY(platforms []PlatformWithNeighbors) map[int][]Platform {
	grouped := make(map[int][]Platform)
	for _, p := range platforms {
		grouped[p.Y] = append(grouped[p.Y], p.Platform)
	}
	for y := range grouped {
		sort.Slice(grouped[y], func(i, j int) bool {
			return grouped[y][i].XStart < grouped[y][j].XStart
		})
	}
	return grouped
}
