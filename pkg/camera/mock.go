package camera

import (
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// MockDevice implements Device for testing.
// Every successful Read produces a different synthetic BGR frame: a grey
// background with a white square whose position depends on the read count.
type MockDevice struct {
	Width  int
	Height int

	// ReadFunc overrides frame generation when set.
	ReadFunc func(n int, m *gocv.Mat) bool

	mu     sync.Mutex
	reads  int
	fail   bool
	closed bool
}

// NewMockDevice creates a mock producing width x height frames.
func NewMockDevice(width, height int) *MockDevice {
	return &MockDevice{Width: width, Height: height}
}

// Read implements Device.
func (d *MockDevice) Read(m *gocv.Mat) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.fail {
		return false
	}
	d.reads++

	if d.ReadFunc != nil {
		return d.ReadFunc(d.reads, m)
	}

	frame := SyntheticFrame(d.Width, d.Height, d.reads)
	defer frame.Close()
	frame.CopyTo(m)
	return true
}

// Close implements Device.
func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// SetFailing makes subsequent reads fail (or succeed again).
func (d *MockDevice) SetFailing(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

// Reads returns the number of successful reads.
func (d *MockDevice) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Closed reports whether Close was called.
func (d *MockDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// SyntheticFrame draws the n-th mock frame.
func SyntheticFrame(width, height, n int) gocv.Mat {
	frame := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(64, 64, 64, 0))

	size := min(width, height) / 4
	if size < 1 {
		size = 1
	}
	span := width - size
	if span < 1 {
		span = 1
	}
	x := (n * 7) % span
	y := (height - size) / 2
	gocv.Rectangle(&frame, image.Rect(x, y, x+size, y+size), color.RGBA{255, 255, 255, 0}, -1)
	return frame
}
