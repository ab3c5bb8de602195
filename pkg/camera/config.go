// Package camera provides the capture session behind the viewer: device
// access, pause/freeze handling, edge maps, crops and PNG snapshots.
package camera

import "fmt"

// EdgeParams configures the Canny edge filter. The Sobel aperture is
// fixed at 3 and the gradient magnitude uses the L1 norm.
type EdgeParams struct {
	Low  float32 `json:"low" yaml:"low"`   // Lower hysteresis threshold
	High float32 `json:"high" yaml:"high"` // Upper hysteresis threshold
}

// DefaultEdgeParams returns thresholds 10/30.
func DefaultEdgeParams() EdgeParams {
	return EdgeParams{
		Low:  10,
		High: 30,
	}
}

// Config holds the capture configuration.
// Edge parameters can be modified at runtime through the Manager.
type Config struct {
	// === Source ===
	// Source is a device index ("0") or a file / image sequence
	// pattern such as "images/image%05d.png".
	Source string `json:"source" yaml:"source"`

	// === Resolution ===
	// Zero leaves the driver default in place.
	Width     int `json:"width" yaml:"width"`
	Height    int `json:"height" yaml:"height"`
	Framerate int `json:"framerate" yaml:"framerate"` // Display loop FPS

	// === Processing ===
	Edges EdgeParams `json:"edges" yaml:"edges"`

	// === Output ===
	// OutputDir receives snapshot PNGs.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// Limits
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
	MaxThreshold = 1000
)

// PNGCompression is the fixed zlib level used for snapshots.
const PNGCompression = 9

// DefaultConfig returns the reference configuration: device 0 at 10 FPS.
func DefaultConfig() Config {
	return Config{
		Source:    "0",
		Width:     640,
		Height:    480,
		Framerate: 10,
		Edges:     DefaultEdgeParams(),
		OutputDir: ".",
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Source == "" {
		errors = append(errors, "source must not be empty")
	}

	// Resolution
	if c.Width != 0 && (c.Width < 16 || c.Width > MaxWidth) {
		errors = append(errors, fmt.Sprintf("width must be 0 (driver default) or between 16 and %d", MaxWidth))
	}
	if c.Height != 0 && (c.Height < 16 || c.Height > MaxHeight) {
		errors = append(errors, fmt.Sprintf("height must be 0 (driver default) or between 16 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}

	errors = append(errors, c.Edges.Validate()...)

	if c.OutputDir == "" {
		errors = append(errors, "output_dir must not be empty")
	}

	return errors
}

// Validate checks the edge filter parameters.
func (p EdgeParams) Validate() []string {
	var errors []string
	if p.Low < 0 || p.Low > MaxThreshold {
		errors = append(errors, fmt.Sprintf("edges.low must be between 0 and %d", MaxThreshold))
	}
	if p.High < 0 || p.High > MaxThreshold {
		errors = append(errors, fmt.Sprintf("edges.high must be between 0 and %d", MaxThreshold))
	}
	if p.Low > p.High {
		errors = append(errors, "edges.low must not exceed edges.high")
	}
	return errors
}

// FrameInterval returns the key poll timeout in milliseconds (1000/FPS).
func (c *Config) FrameInterval() int {
	if c.Framerate <= 0 {
		return 1000 / DefaultConfig().Framerate
	}
	return 1000 / c.Framerate
}
