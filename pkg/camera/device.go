package camera

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// Device is a blocking frame source. *gocv.VideoCapture satisfies it.
type Device interface {
	// Read blocks until the next frame is decoded into m.
	// It returns false when no frame could be read.
	Read(m *gocv.Mat) bool

	// Close releases the device.
	Close() error
}

// Open opens a capture source. A numeric source is a device index;
// anything else is handed to OpenCV as a file name or image sequence
// pattern (e.g. "images/image%05d.png").
func Open(cfg Config) (Device, error) {
	var src interface{} = cfg.Source
	if idx, err := strconv.Atoi(cfg.Source); err == nil {
		src = idx
	}

	vc, err := gocv.OpenVideoCapture(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, cfg.Source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenFailed, cfg.Source)
	}

	if _, isIndex := src.(int); isIndex {
		if cfg.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		}
		if cfg.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
	}

	return vc, nil
}
