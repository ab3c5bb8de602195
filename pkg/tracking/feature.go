package tracking

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/teslashibe/go-camview/pkg/camera"
	"github.com/teslashibe/go-camview/pkg/perf"
	"gocv.io/x/gocv"
)

// agastOAST916 is OpenCV's AgastFeatureDetector::OAST_9_16.
const agastOAST916 = 3

// Homography estimation limits passed to FindHomography.
const (
	ransacMaxIters   = 2000
	ransacConfidence = 0.995
)

// FeatureTracker tracks with AGAST keypoints, ORB descriptors and a
// brute-force Hamming matcher.
type FeatureTracker struct {
	cfg      Config
	detector gocv.AgastFeatureDetector
	orb      gocv.ORB
	matcher  gocv.BFMatcher

	mu        sync.Mutex // Protects everything below and the OpenCV objects
	targetKps []gocv.KeyPoint
	targetDes gocv.Mat
	width     int
	height    int
	timing    *perf.Counter
	closed    bool
}

// NewFeatureTracker creates a tracker with no target.
func NewFeatureTracker(cfg Config) (*FeatureTracker, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid tracking config: %v", errs)
	}
	return &FeatureTracker{
		cfg:       cfg,
		detector:  gocv.NewAgastFeatureDetectorWithParams(cfg.AgastThreshold, true, agastOAST916),
		orb:       gocv.NewORB(),
		matcher:   gocv.NewBFMatcherWithParams(gocv.NormHamming, false),
		targetDes: gocv.NewMat(),
	}, nil
}

// SetTiming attaches a counter receiving detect, compute and match
// durations and the keypoint count of every tracked frame.
func (t *FeatureTracker) SetTiming(c *perf.Counter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timing = c
}

// SetTarget implements Tracker.
func (t *FeatureTracker) SetTarget(target gocv.Mat) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	gray, err := camera.ToGray(target)
	if err != nil {
		return err
	}
	defer gray.Close()

	kps, des := t.describe(gray, false)
	if len(kps) < t.cfg.MinMatches || des.Empty() {
		des.Close()
		return fmt.Errorf("%w: %d keypoints in %dx%d", ErrTargetTooSmall, len(kps), target.Cols(), target.Rows())
	}

	t.targetDes.Close()
	t.targetDes = des
	t.targetKps = kps
	t.width, t.height = target.Cols(), target.Rows()
	return nil
}

// HasTarget implements Tracker.
func (t *FeatureTracker) HasTarget() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && len(t.targetKps) > 0
}

// ClearTarget implements Tracker.
func (t *FeatureTracker) ClearTarget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.targetDes.Close()
	t.targetDes = gocv.NewMat()
	t.targetKps = nil
}

// Track implements Tracker.
func (t *FeatureTracker) Track(frame gocv.Mat) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Result{}, ErrClosed
	}
	if len(t.targetKps) == 0 {
		return Result{}, ErrNoTarget
	}

	gray, err := camera.ToGray(frame)
	if err != nil {
		return Result{}, err
	}
	defer gray.Close()

	kps, des := t.describe(gray, true)
	defer des.Close()

	res := Result{Keypoints: len(kps)}
	if t.timing != nil {
		t.timing.ObserveValue(perf.StageKeypoints, float64(len(kps)))
	}
	if des.Empty() {
		return res, nil
	}

	start := time.Now()
	good := RatioFilter(t.matcher.KnnMatch(t.targetDes, des, 2), t.cfg.RatioTest)
	t.observe(perf.StageMatch, time.Since(start))

	res.Matches = len(good)
	if len(good) < t.cfg.MinMatches {
		return res, nil
	}

	src := make([]gocv.Point2f, len(good))
	dst := make([]gocv.Point2f, len(good))
	for i, m := range good {
		a, b := t.targetKps[m.QueryIdx], kps[m.TrainIdx]
		src[i] = gocv.Point2f{X: float32(a.X), Y: float32(a.Y)}
		dst[i] = gocv.Point2f{X: float32(b.X), Y: float32(b.Y)}
	}

	h, ok := findHomography(src, dst, t.cfg.RansacThreshold)
	if !ok {
		return res, nil
	}
	outline, ok := h.Outline(t.width, t.height)
	if !ok {
		return res, nil
	}

	res.Found, res.H, res.Outline = true, h, outline
	return res, nil
}

// Close releases the OpenCV objects
func (t *FeatureTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.targetDes.Close()
	t.targetKps = nil
	t.detector.Close()
	t.orb.Close()
	return t.matcher.Close()
}

// describe detects AGAST keypoints on gray and computes their ORB
// descriptors. Keypoints too close to the border are dropped by ORB.
func (t *FeatureTracker) describe(gray gocv.Mat, timed bool) ([]gocv.KeyPoint, gocv.Mat) {
	start := time.Now()
	kps := t.detector.Detect(gray)
	if timed {
		t.observe(perf.StageDetect, time.Since(start))
	}
	if len(kps) == 0 {
		return nil, gocv.NewMat()
	}

	mask := gocv.NewMat()
	defer mask.Close()

	start = time.Now()
	kps, des := t.orb.Compute(gray, mask, kps)
	if timed {
		t.observe(perf.StageCompute, time.Since(start))
	}
	return kps, des
}

func (t *FeatureTracker) observe(stage string, d time.Duration) {
	if t.timing != nil {
		t.timing.Observe(stage, d)
	}
}

func findHomography(src, dst []gocv.Point2f, threshold float64) (Homography, bool) {
	sv := gocv.NewPoint2fVectorFromPoints(src)
	defer sv.Close()
	dv := gocv.NewPoint2fVectorFromPoints(dst)
	defer dv.Close()

	sm := gocv.NewMatFromPoint2fVector(sv, true)
	defer sm.Close()
	dm := gocv.NewMatFromPoint2fVector(dv, true)
	defer dm.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	hm := gocv.FindHomography(sm, dm, gocv.HomographyMethodRANSAC, threshold, &mask, ransacMaxIters, ransacConfidence)
	defer hm.Close()
	if hm.Empty() || hm.Rows() != 3 || hm.Cols() != 3 {
		return Homography{}, false
	}

	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = hm.GetDoubleAt(r, c)
		}
	}
	return h, true
}

// OutlineColor is the colour of the drawn target outline (BGR green).
var OutlineColor = color.RGBA{0, 255, 0, 0}

// DrawOutline draws the closed target outline onto img.
func DrawOutline(img *gocv.Mat, outline [4]image.Point, c color.RGBA) error {
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{outline[:]})
	defer pv.Close()
	return gocv.Polylines(img, pv, true, c, 2)
}
