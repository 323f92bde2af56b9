package bot

import (
	"image"

	"github.com/riverbell/mapler/internal/pathing"
)

// Navigator produces intermediate destination points across platforms. The
// core only depends on this contract; the default implementation walks the
// user platform graph.
type Navigator interface {
	// Update observes the minimap and refreshes cached platform data.
	Update(ctx *Context)
	// WasLastPointAvailableOrCompleted reports whether the last requested
	// point had a path or the path has been fully walked.
	WasLastPointAvailableOrCompleted() bool
	// NavigatePlayer overrides the player's destination with an
	// intermediate point for this tick. Reports whether it did.
	NavigatePlayer(ctx *Context, state *PlayerState) bool
}

// PlatformNavigator routes across the user platform list with a breadth
// first search over the precomputed neighbor links.
type PlatformNavigator struct {
	platforms []pathing.PlatformWithNeighbors

	lastPointAvailable bool
	lastPointCompleted bool
}

func NewPlatformNavigator() *PlatformNavigator {
	return &PlatformNavigator{lastPointCompleted: true}
}

func (n *PlatformNavigator) Update(ctx *Context) {
	if idle := ctx.Minimap.Idle; idle != nil {
		n.platforms = idle.Platforms
	} else {
		n.platforms = nil
	}
}

func (n *PlatformNavigator) WasLastPointAvailableOrCompleted() bool {
	return n.lastPointAvailable || n.lastPointCompleted
}

// NavigatePlayer finds the platform under the player and the one under the
// destination; when they differ, the next hop's landing point is pushed as
// the intermediate destination.
func (n *PlatformNavigator) NavigatePlayer(ctx *Context, state *PlayerState) bool {
	if len(n.platforms) == 0 || state.LastKnownPos == nil || len(state.LastDestinations) == 0 {
		return false
	}
	pos := *state.LastKnownPos
	dest := state.LastDestinations[len(state.LastDestinations)-1]

	from, fromOK := n.platformAt(pos)
	to, toOK := n.platformAt(dest)
	if !fromOK || !toOK || from == to {
		n.lastPointAvailable = false
		n.lastPointCompleted = fromOK && toOK
		return false
	}

	path, ok := n.findPath(from, to)
	if !ok || len(path) < 2 {
		n.lastPointAvailable = false
		n.lastPointCompleted = false
		return false
	}

	hop := path[1]
	point := hopPoint(n.platforms[from].Platform, n.platforms[hop].Platform)
	n.lastPointAvailable = true
	n.lastPointCompleted = false
	// The same hop stays pending across ticks until the player lands on
	// the next platform; push it only once.
	if state.LastDestinations[0] != point {
		state.LastDestinations = append([]image.Point{point}, state.LastDestinations...)
	}
	return true
}

func (n *PlatformNavigator) platformAt(pos image.Point) (int, bool) {
	best := -1
	for i, p := range n.platforms {
		if !p.ContainsX(pos.X) {
			continue
		}
		// The standing platform is the closest one at or below pos.
		if p.Y <= pos.Y+jumpThreshold && (best < 0 || p.Y > n.platforms[best].Y) {
			best = i
		}
	}
	return best, best >= 0
}

func (n *PlatformNavigator) findPath(from, to int) ([]int, bool) {
	prev := make(map[int]int, len(n.platforms))
	prev[from] = from
	queue := []int{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == to {
			break
		}
		for _, neighbor := range n.platforms[current].Neighbors {
			idx := n.indexOf(neighbor)
			if idx < 0 {
				continue
			}
			if _, seen := prev[idx]; seen {
				continue
			}
			prev[idx] = current
			queue = append(queue, idx)
		}
	}
	if _, ok := prev[to]; !ok {
		return nil, false
	}

	path := []int{to}
	for current := to; current != from; current = prev[current] {
		path = append(path, prev[current])
	}
	reverse(path)
	return path, true
}

func (n *PlatformNavigator) indexOf(p pathing.Platform) int {
	for i := range n.platforms {
		if n.platforms[i].Platform == p {
			return i
		}
	}
	return -1
}

// hopPoint is where on `to` the player should land coming from `from`: the
// middle of the x overlap, or the closest edge when the platforms do not
// overlap.
func hopPoint(from, to pathing.Platform) image.Point {
	lo := max(from.XStart, to.XStart)
	hi := min(from.XEnd, to.XEnd)
	if lo < hi {
		return image.Pt((lo+hi)/2, to.Y)
	}
	if to.XStart >= from.XEnd {
		return image.Pt(to.XStart, to.Y)
	}
	return image.Pt(to.XEnd-1, to.Y)
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
