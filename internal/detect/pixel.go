package detect

import (
	"image"

	"github.com/riverbell/mapler/internal/game"
)

// Pixel is a heuristic Detector working directly on frame pixels. It covers
// the minimap-derived detections: the minimap itself by its bright border,
// and the markers inside it by their dot colors. Screen-space detections
// (health bars, death dialog, buffs, skills) need a template backend and
// report ErrNotFound here.
type Pixel struct {
	frame *game.Frame
}

func NewPixel(frame *game.Frame) *Pixel {
	return &Pixel{frame: frame}
}

var _ Detector = (*Pixel)(nil)

func (p *Pixel) Frame() *game.Frame {
	return p.frame
}

// Minimap dot colors in BGR. Matching allows a small per-channel tolerance;
// the client renders the dots anti-aliased at their edges.
var (
	playerDotColor   = [3]byte{0x00, 0xdd, 0xff}
	runeDotColor     = [3]byte{0xff, 0x66, 0xbb}
	portalDotColor   = [3]byte{0xcc, 0x99, 0x33}
	guildieDotColor  = [3]byte{0x33, 0xcc, 0x33}
	strangerDotColor = [3]byte{0x33, 0x33, 0xee}
	friendDotColor   = [3]byte{0xee, 0x33, 0x33}
)

const dotColorTolerance = 40

// Minimum extent of a plausible minimap, in pixels.
const minMinimapExtent = 40

// DetectMinimap finds the largest rectangle whose border rows and columns
// are at least whiteness bright in every channel.
func (p *Pixel) DetectMinimap(whiteness uint8) (image.Rectangle, error) {
	f := p.frame
	if f == nil {
		return image.Rectangle{}, ErrNotFound
	}

	// Horizontal run length of white pixels ending at (x, y).
	runs := make([]int, f.Width*f.Height)
	for y := 0; y < f.Height; y++ {
		run := 0
		for x := 0; x < f.Width; x++ {
			if isWhite(f, x, y, whiteness) {
				run++
			} else {
				run = 0
			}
			runs[y*f.Width+x] = run
		}
	}

	best := image.Rectangle{}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			width := runs[y*f.Width+x]
			if width < minMinimapExtent {
				continue
			}
			left := x - width + 1
			// Extend downward while both side columns stay white.
			bottom := y
			for bottom+1 < f.Height &&
				isWhite(f, left, bottom+1, whiteness) &&
				isWhite(f, x, bottom+1, whiteness) {
				bottom++
			}
			if bottom-y+1 < minMinimapExtent {
				continue
			}
			if runs[bottom*f.Width+x] < width {
				continue
			}
			r := image.Rect(left, y, x+1, bottom+1)
			if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
				best = r
			}
		}
	}
	if best.Empty() {
		return image.Rectangle{}, ErrNotFound
	}
	return best, nil
}

func (p *Pixel) DetectMinimapRune(minimap image.Rectangle) (image.Rectangle, error) {
	return p.dotCluster(minimap, runeDotColor)
}

func (p *Pixel) DetectMinimapPortals(minimap image.Rectangle) ([]image.Rectangle, error) {
	portals := p.dotClusters(minimap, portalDotColor)
	if len(portals) == 0 {
		return nil, ErrNotFound
	}
	return portals, nil
}

func (p *Pixel) DetectPlayer(minimap image.Rectangle) (image.Rectangle, error) {
	return p.dotCluster(minimap, playerDotColor)
}

func (p *Pixel) DetectPlayerKind(minimap image.Rectangle, kind OtherPlayerKind) (bool, error) {
	var color [3]byte
	switch kind {
	case OtherPlayerGuildie:
		color = guildieDotColor
	case OtherPlayerStranger:
		color = strangerDotColor
	case OtherPlayerFriend:
		color = friendDotColor
	default:
		return false, ErrNotFound
	}
	_, err := p.dotCluster(minimap, color)
	return err == nil, nil
}

func (p *Pixel) DetectPlayerHealthBar() (image.Rectangle, error) {
	return image.Rectangle{}, ErrNotFound
}

func (p *Pixel) DetectPlayerCurrentMaxHealthBars(bar image.Rectangle) (image.Rectangle, image.Rectangle, error) {
	return image.Rectangle{}, image.Rectangle{}, ErrNotFound
}

func (p *Pixel) DetectPlayerHealth(current, max image.Rectangle) (int, int, error) {
	return 0, 0, ErrNotFound
}

func (p *Pixel) DetectPlayerIsDead() (bool, error) {
	return false, nil
}

func (p *Pixel) DetectTombOKButton() (image.Rectangle, error) {
	return image.Rectangle{}, ErrNotFound
}

func (p *Pixel) DetectEliteBossBar() (bool, error) {
	return false, nil
}

func (p *Pixel) DetectArrowSpamOpen() (bool, error) {
	return false, nil
}

func (p *Pixel) DetectPlayerBuff(kind BuffKind) (bool, error) {
	return false, ErrNotFound
}

func (p *Pixel) DetectSkillOffCooldown(kind SkillKind) (bool, error) {
	return false, ErrNotFound
}

// dotCluster returns the bounding box of pixels matching color inside the
// region, in region-local top-left coordinates.
func (p *Pixel) dotCluster(region image.Rectangle, color [3]byte) (image.Rectangle, error) {
	clusters := p.dotClusters(region, color)
	if len(clusters) == 0 {
		return image.Rectangle{}, ErrNotFound
	}
	best := clusters[0]
	for _, c := range clusters[1:] {
		if c.Dx()*c.Dy() > best.Dx()*best.Dy() {
			best = c
		}
	}
	return best, nil
}

// dotClusters groups matching pixels into bounding boxes by flood fill over
// 8-connectivity.
func (p *Pixel) dotClusters(region image.Rectangle, color [3]byte) []image.Rectangle {
	w, h := region.Dx(), region.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	visited := make([]bool, w*h)
	match := func(x, y int) bool {
		px, ok := p.frame.Pixel(region.Min.X+x, region.Min.Y+y)
		if !ok {
			return false
		}
		return colorClose(px, color)
	}

	var clusters []image.Rectangle
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || !match(x, y) {
				continue
			}
			bounds := image.Rect(x, y, x+1, y+1)
			stack := []image.Point{{x, y}}
			visited[y*w+x] = true
			for len(stack) > 0 {
				pt := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				bounds = bounds.Union(image.Rect(pt.X, pt.Y, pt.X+1, pt.Y+1))
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := pt.X+dx, pt.Y+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						if visited[ny*w+nx] || !match(nx, ny) {
							continue
						}
						visited[ny*w+nx] = true
						stack = append(stack, image.Point{nx, ny})
					}
				}
			}
			clusters = append(clusters, bounds)
		}
	}
	return clusters
}

func isWhite(f *game.Frame, x, y int, whiteness uint8) bool {
	px, ok := f.Pixel(x, y)
	if !ok {
		return false
	}
	return px[0] >= whiteness && px[1] >= whiteness && px[2] >= whiteness
}

func colorClose(px [4]byte, color [3]byte) bool {
	for i := 0; i < 3; i++ {
		d := int(px[i]) - int(color[i])
		if d < -dotColorTolerance || d > dotColorTolerance {
			return false
		}
	}
	return true
}
