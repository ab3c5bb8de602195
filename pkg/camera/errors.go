package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrOpenFailed is returned when the capture source cannot be opened.
	ErrOpenFailed = errors.New("camera: open failed")

	// ErrReadFailed is returned when the device does not deliver a frame.
	ErrReadFailed = errors.New("camera: read failed")

	// ErrEmptyFrame is returned when an operation needs a frame but none has been captured.
	ErrEmptyFrame = errors.New("camera: empty frame")

	// ErrInvalidRegion is returned when a crop rectangle is empty or outside the frame.
	ErrInvalidRegion = errors.New("camera: invalid region")

	// ErrEncodeFailed is returned when a frame cannot be encoded.
	ErrEncodeFailed = errors.New("camera: encode failed")

	// ErrRestartRequired is returned for config changes that only apply on restart.
	ErrRestartRequired = errors.New("camera: change requires restart")

	// ErrClosed is returned when the session has been closed.
	ErrClosed = errors.New("camera: session closed")
)

// SaveError reports a snapshot file that could not be written.
type SaveError struct {
	// Path is the file that failed.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *SaveError) Error() string {
	return fmt.Sprintf("camera: save %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *SaveError) Unwrap() error {
	return e.Err
}
