package camera

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/teslashibe/go-camview/pkg/perf"
	"gocv.io/x/gocv"
)

// Session owns a capture device and the pause state of the viewer.
//
// While paused, every frame query returns a copy of the frame captured
// at the moment pausing began; the device is not read. All methods are
// safe for concurrent use and device reads are serialised.
//
// Frames returned by a Session are clones owned by the caller, who must
// Close them.
type Session struct {
	mu sync.Mutex

	device Device
	source string
	paused bool
	last   gocv.Mat
	closed bool

	edges     EdgeParams
	outputDir string

	reads       uint64
	failedReads uint64

	timing *perf.Counter
	now    func() time.Time
}

// Stats is a point-in-time view of the session.
type Stats struct {
	Source      string `json:"source"`
	Paused      bool   `json:"paused"`
	Reads       uint64 `json:"reads"`
	FailedReads uint64 `json:"failed_reads"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// NewSession wraps an opened device. The session takes ownership of it.
func NewSession(device Device, cfg Config) *Session {
	out := cfg.OutputDir
	if out == "" {
		out = "."
	}
	return &Session{
		device:    device,
		source:    cfg.Source,
		last:      gocv.NewMat(),
		edges:     cfg.Edges,
		outputDir: out,
		now:       time.Now,
	}
}

// SetTiming attaches a counter receiving read and edge filter durations.
func (s *Session) SetTiming(c *perf.Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timing = c
}

// GetFrame returns the current frame. When paused it is the frozen frame;
// otherwise a new frame is read from the device and becomes the last frame.
func (s *Session) GetFrame() (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

func (s *Session) frameLocked() (gocv.Mat, error) {
	if s.closed {
		return gocv.NewMat(), ErrClosed
	}

	if s.paused {
		if s.last.Empty() {
			return gocv.NewMat(), ErrEmptyFrame
		}
		return s.last.Clone(), nil
	}

	frame := gocv.NewMat()
	start := time.Now()
	ok := s.device.Read(&frame)
	s.observe(perf.StageRead, time.Since(start))

	if !ok || frame.Empty() {
		frame.Close()
		s.failedReads++
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrReadFailed, s.source)
	}
	s.reads++

	s.last.Close()
	s.last = frame
	return frame.Clone(), nil
}

// GetEdges returns the edge map of the current frame.
func (s *Session) GetEdges() (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.frameLocked()
	if err != nil {
		return frame, err
	}
	defer frame.Close()

	return s.edgesLocked(frame)
}

func (s *Session) edgesLocked(frame gocv.Mat) (gocv.Mat, error) {
	start := time.Now()
	edges, err := DetectEdges(frame, s.edges)
	s.observe(perf.StageEdges, time.Since(start))
	return edges, err
}

// Paused reports whether the session is frozen.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SetPaused freezes or resumes the view. Entering the paused state reads
// one frame first so the frozen image is the one at the pause instant;
// if that read fails the session stays live and the error is returned.
// Setting the current state again is a no-op.
func (s *Session) SetPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPausedLocked(paused)
}

func (s *Session) setPausedLocked(paused bool) error {
	if paused == s.paused {
		return nil
	}

	if paused {
		frame, err := s.frameLocked()
		frame.Close()
		if err != nil {
			return fmt.Errorf("freeze frame: %w", err)
		}
	}

	s.paused = paused
	return nil
}

// Toggle flips the paused state and returns the new state.
func (s *Session) Toggle() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setPausedLocked(!s.paused); err != nil {
		return s.paused, err
	}
	return s.paused, nil
}

// GetCropped returns a copy of the given region of the current frame.
// The rectangle must have positive size and lie within the frame;
// negative sizes are rejected rather than normalised.
func (s *Session) GetCropped(x, y, width, height int) (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.frameLocked()
	if err != nil {
		return frame, err
	}
	defer frame.Close()

	return Crop(frame, Region{X: x, Y: y, Width: width, Height: height})
}

// EdgeParams returns the current edge filter parameters.
func (s *Session) EdgeParams() EdgeParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges
}

// SetEdgeParams replaces the edge filter parameters.
func (s *Session) SetEdgeParams(p EdgeParams) error {
	if errs := p.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid edge params: %v", errs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = p
	return nil
}

// SetOutputDir changes where snapshots are written.
func (s *Session) SetOutputDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir == "" {
		dir = "."
	}
	s.outputDir = dir
}

// Apply pushes the runtime-changeable parts of cfg into the session.
// It is suitable as a Manager.OnConfigChange callback.
func (s *Session) Apply(cfg Config) error {
	if err := s.SetEdgeParams(cfg.Edges); err != nil {
		return err
	}
	s.SetOutputDir(cfg.OutputDir)
	return nil
}

// Stats returns counters and the size of the last frame.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Source:      s.source,
		Paused:      s.paused,
		Reads:       s.reads,
		FailedReads: s.failedReads,
	}
	if !s.closed && !s.last.Empty() {
		st.Width, st.Height = s.last.Cols(), s.last.Rows()
	}
	return st
}

// Close releases the device and the last frame.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.last.Close()
	return s.device.Close()
}

func (s *Session) observe(stage string, d time.Duration) {
	if s.timing != nil {
		s.timing.Observe(stage, d)
	}
}

// Region is a crop rectangle in frame pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the region to an image.Rectangle without normalising it.
func (r Region) Rect() image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(r.X, r.Y),
		Max: image.Pt(r.X+r.Width, r.Y+r.Height),
	}
}

// Within reports whether the region is non-empty and inside a cols x rows
// frame. The bounds are compared by subtraction so huge sizes cannot wrap.
func (r Region) Within(cols, rows int) bool {
	return r.Width > 0 && r.Height > 0 &&
		r.X >= 0 && r.Y >= 0 &&
		r.Width <= cols && r.Height <= rows &&
		r.X <= cols-r.Width && r.Y <= rows-r.Height
}

// Crop returns a contiguous copy of region r of frame.
func Crop(frame gocv.Mat, r Region) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	if !r.Within(frame.Cols(), frame.Rows()) {
		return gocv.NewMat(), fmt.Errorf("%w: %+v outside %dx%d", ErrInvalidRegion, r, frame.Cols(), frame.Rows())
	}

	roi := frame.Region(r.Rect())
	defer roi.Close()
	return roi.Clone(), nil
}

// DetectEdges converts frame to intensity and runs Canny with p.
func DetectEdges(frame gocv.Mat, p EdgeParams) (gocv.Mat, error) {
	gray, err := ToGray(frame)
	if err != nil {
		return gray, err
	}
	defer gray.Close()

	edges := gocv.NewMat()
	if err := gocv.Canny(gray, &edges, p.Low, p.High); err != nil {
		edges.Close()
		return gocv.NewMat(), fmt.Errorf("canny: %w", err)
	}
	if edges.Empty() {
		edges.Close()
		return gocv.NewMat(), fmt.Errorf("%w: canny produced no output", ErrEmptyFrame)
	}
	return edges, nil
}

// ToGray returns a single-channel copy of a 1, 3 (BGR) or 4 (BGRA)
// channel frame. The caller owns the result.
func ToGray(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	gray := gocv.NewMat()
	var err error
	switch frame.Channels() {
	case 1:
		err = frame.CopyTo(&gray)
	case 4:
		err = gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		err = gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	if err != nil {
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("grayscale: %w", err)
	}
	return gray, nil
}
