package viewer

import (
	"fmt"

	"github.com/teslashibe/go-camview/pkg/camera"
)

// Mouse event codes as delivered by OpenCV highgui.
const (
	EventMouseMove       = 0
	EventLeftButtonDown  = 1
	EventRightButtonDown = 2
)

// StatusText formats the pointer position shown in the status line.
func StatusText(x, y int) string {
	return fmt.Sprintf("x = %d, y = %d", x, y)
}

// Selector accumulates a crop rectangle from two left clicks.
// The first click records the top-left corner, the second completes the
// rectangle with the signed difference and resets. Clicking above or left
// of the first corner yields negative sizes, which are passed on as-is.
type Selector struct {
	selecting bool
	x, y      int
}

// Selecting reports whether a first corner is waiting for its second click.
func (s *Selector) Selecting() bool {
	return s.selecting
}

// Click feeds a left-button press at (x, y). It returns the completed
// region and true on the second click.
func (s *Selector) Click(x, y int) (camera.Region, bool) {
	if !s.selecting {
		s.x, s.y = x, y
		s.selecting = true
		return camera.Region{}, false
	}

	r := camera.Region{
		X:      s.x,
		Y:      s.y,
		Width:  x - s.x,
		Height: y - s.y,
	}
	s.Reset()
	return r, true
}

// Reset drops a pending first corner.
func (s *Selector) Reset() {
	s.selecting = false
	s.x, s.y = 0, 0
}
