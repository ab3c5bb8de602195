// Package tracking follows a planar target, selected as a region of an
// earlier frame, through later frames. Keypoints are matched between the
// target and the frame and a RANSAC homography maps the target outline
// into the frame.
package tracking

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Errors returned by trackers.
var (
	ErrNoTarget       = errors.New("tracking: no target set")
	ErrTargetTooSmall = errors.New("tracking: target has too few features")
	ErrClosed         = errors.New("tracking: tracker closed")
)

// Config holds tracker configuration
type Config struct {
	Enabled         bool    `yaml:"enabled"`
	AgastThreshold  int     `yaml:"agast_threshold"`  // AGAST corner threshold
	RatioTest       float64 `yaml:"ratio_test"`       // Keep a match if best < ratio * second best
	RansacThreshold float64 `yaml:"ransac_threshold"` // Max reprojection error in pixels
	MinMatches      int     `yaml:"min_matches"`      // Good matches needed for a homography
}

// DefaultConfig returns AGAST threshold 30, ratio 0.8, RANSAC 3px and
// the 4 matches a homography needs.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		AgastThreshold:  30,
		RatioTest:       0.8,
		RansacThreshold: 3.0,
		MinMatches:      4,
	}
}

// Validate checks the tracker parameters.
func (c Config) Validate() []string {
	var errs []string
	if c.AgastThreshold < 1 || c.AgastThreshold > 255 {
		errs = append(errs, "tracking.agast_threshold must be between 1 and 255")
	}
	if c.RatioTest <= 0 || c.RatioTest > 1 {
		errs = append(errs, "tracking.ratio_test must be in (0, 1]")
	}
	if c.RansacThreshold <= 0 {
		errs = append(errs, "tracking.ransac_threshold must be positive")
	}
	if c.MinMatches < 4 {
		errs = append(errs, "tracking.min_matches must be at least 4")
	}
	return errs
}

// Homography is a row-major 3x3 projective transform.
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps (x, y). It returns false when the point maps to infinity.
func (h Homography) Apply(x, y float64) (float64, float64, bool) {
	w := h[6]*x + h[7]*y + h[8]
	if math.Abs(w) < 1e-12 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, true
}

// Outline maps the corners of a width x height target, clockwise from the
// top-left, rounded to pixels.
func (h Homography) Outline(width, height int) ([4]image.Point, bool) {
	corners := [4][2]float64{
		{0, 0},
		{float64(width), 0},
		{float64(width), float64(height)},
		{0, float64(height)},
	}

	var out [4]image.Point
	for i, c := range corners {
		x, y, ok := h.Apply(c[0], c[1])
		if !ok || math.Abs(x) > math.MaxInt32 || math.Abs(y) > math.MaxInt32 {
			return out, false
		}
		out[i] = image.Pt(int(math.Round(x)), int(math.Round(y)))
	}
	return out, true
}

// Result is the outcome of one Track call
type Result struct {
	Found     bool           `json:"found"`
	Keypoints int            `json:"keypoints"` // Keypoints described in the frame
	Matches   int            `json:"matches"`   // Matches that passed the ratio test
	H         Homography     `json:"-"`
	Outline   [4]image.Point `json:"outline"`
}

// String is used in debug logs.
func (r Result) String() string {
	if !r.Found {
		return fmt.Sprintf("lost (%d keypoints, %d matches)", r.Keypoints, r.Matches)
	}
	return fmt.Sprintf("found %v (%d keypoints, %d matches)", r.Outline, r.Keypoints, r.Matches)
}

// Tracker is the interface for target tracking backends
type Tracker interface {
	// SetTarget describes target and makes it the object to follow.
	SetTarget(target gocv.Mat) error

	// HasTarget reports whether a target is set.
	HasTarget() bool

	// ClearTarget forgets the target.
	ClearTarget()

	// Track locates the target in frame. A frame in which the target is
	// not found is not an error; Result.Found is false.
	Track(frame gocv.Mat) (Result, error)

	// Close releases resources
	Close() error
}

// RatioFilter keeps the best match of every k-NN pair whose distance is
// below ratio times the second best distance. Pairs with fewer than two
// candidates are dropped.
func RatioFilter(matches [][]gocv.DMatch, ratio float64) []gocv.DMatch {
	var good []gocv.DMatch
	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		if m[0].Distance < ratio*m[1].Distance {
			good = append(good, m[0])
		}
	}
	return good
}
