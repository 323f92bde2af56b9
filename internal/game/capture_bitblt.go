package game

import (
	"fmt"
	"unsafe"

	"github.com/lxn/win"
)

// BitBltCapture grabs the window's client area through GDI. It keeps working
// while the window is covered by others, but not while minimized.
type BitBltCapture struct {
	handle Handle
}

func NewBitBltCapture(handle Handle) *BitBltCapture {
	return &BitBltCapture{handle: handle}
}

// Rebind points the capture at a different window.
func (c *BitBltCapture) Rebind(handle Handle) {
	c.handle = handle
}

// Grab returns a freshly allocated frame. Detection tasks hold frames across
// ticks, so frames are never reused.
func (c *BitBltCapture) Grab() (*Frame, error) {
	hwnd, err := c.handle.Query()
	if err != nil {
		return nil, err
	}

	var rect win.RECT
	if !win.GetClientRect(hwnd, &rect) {
		return nil, fmt.Errorf("getting client rect of %v", hwnd)
	}
	width := int(rect.Right - rect.Left)
	height := int(rect.Bottom - rect.Top)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("window %v has no client area", hwnd)
	}

	hdc := win.GetDC(hwnd)
	if hdc == 0 {
		return nil, fmt.Errorf("getting device context of %v", hwnd)
	}
	defer win.ReleaseDC(hwnd, hdc)

	memDC := win.CreateCompatibleDC(hdc)
	if memDC == 0 {
		return nil, fmt.Errorf("creating compatible device context")
	}
	defer win.DeleteDC(memDC)

	bitmap := win.CreateCompatibleBitmap(hdc, int32(width), int32(height))
	if bitmap == 0 {
		return nil, fmt.Errorf("creating compatible bitmap")
	}
	defer win.DeleteObject(win.HGDIOBJ(bitmap))

	prev := win.SelectObject(memDC, win.HGDIOBJ(bitmap))
	defer win.SelectObject(memDC, prev)

	if !win.BitBlt(memDC, 0, 0, int32(width), int32(height), hdc, 0, 0, win.SRCCOPY) {
		return nil, fmt.Errorf("blitting client area")
	}

	frame := NewFrame(width, height)
	info := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:  uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth: int32(width),
			// Negative height for a top-down pixel layout.
			BiHeight:      -int32(height),
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	if win.GetDIBits(memDC, bitmap, 0, uint32(height), &frame.BGRA[0], &info, win.DIB_RGB_COLORS) == 0 {
		return nil, fmt.Errorf("reading bitmap pixels")
	}
	return frame, nil
}

var _ Capture = (*BitBltCapture)(nil)
