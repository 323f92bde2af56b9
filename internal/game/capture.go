package game

// Frame is one captured BGRA game frame. The backend producing frames is a
// host collaborator; the core only reads pixels out of it.
type Frame struct {
	Width  int
	Height int
	// Stride is the number of bytes per row, at least Width*4.
	Stride int
	// BGRA holds Stride*Height bytes of pixel data.
	BGRA []byte
}

// Pixel returns the BGRA value at (x, y) in top-left coordinates, and whether
// the coordinate is inside the frame.
func (f *Frame) Pixel(x, y int) ([4]byte, bool) {
	if f == nil || x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return [4]byte{}, false
	}
	i := y*f.Stride + x*4
	if i+4 > len(f.BGRA) {
		return [4]byte{}, false
	}
	return [4]byte(f.BGRA[i : i+4]), true
}

// NewFrame allocates a zeroed frame. Used by capture backends and tests.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Stride: width * 4,
		BGRA:   make([]byte, width*height*4),
	}
}

// SetPixel writes a BGRA value, ignoring out-of-bounds coordinates.
func (f *Frame) SetPixel(x, y int, px [4]byte) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	copy(f.BGRA[y*f.Stride+x*4:], px[:])
}

// Capture grabs frames from the game window. A nil frame with a nil error is
// not produced; a failed grab returns an error and the tick proceeds without
// a detector.
type Capture interface {
	Grab() (*Frame, error)
}
