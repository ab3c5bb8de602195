// Package viewer runs the on-screen display loop over a capture session:
// frame and edge windows, keyboard controls and two-click cropping. A
// crop can become the target of a tracker whose outline is drawn on the
// output window.
package viewer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-camview/internal/log"
	"github.com/teslashibe/go-camview/pkg/camera"
	"github.com/teslashibe/go-camview/pkg/debug"
	"github.com/teslashibe/go-camview/pkg/perf"
	"github.com/teslashibe/go-camview/pkg/tracking"
	"gocv.io/x/gocv"
)

// Recognised keys.
const (
	KeySave  = 's'
	KeyPause = 'p'
)

// warnInterval rate-limits repeated read failure warnings.
const warnInterval = 5 * time.Second

// Config selects which parts of the viewer are active.
type Config struct {
	FPS        int  // Key poll rate; the wait is 1000/FPS ms
	ShowEdges  bool // Show the edge map in its own window
	EnableSave bool // 's' writes a snapshot
	EnableCrop bool // Two left clicks on the output window show a crop
}

// DefaultConfig enables every feature at 10 FPS.
func DefaultConfig() Config {
	return Config{
		FPS:        10,
		ShowEdges:  true,
		EnableSave: true,
		EnableCrop: true,
	}
}

// WaitMillis returns the key poll timeout.
func (c Config) WaitMillis() int {
	if c.FPS <= 0 {
		return 1000 / DefaultConfig().FPS
	}
	return 1000 / c.FPS
}

// FrameSink receives every displayed frame and, when edges are shown,
// its edge map (otherwise an empty Mat). The Mats are only valid for the
// duration of the call.
type FrameSink func(frame, edges gocv.Mat)

// Viewer drives windows from a Session. All methods must be called from
// the goroutine that owns the windows; mouse callbacks arrive during
// WaitKey on that same goroutine.
type Viewer struct {
	session *camera.Session
	cfg     Config
	open    WindowFactory

	output Display
	edges  Display
	crop   Display

	selector Selector
	status   string

	tracker  tracking.Tracker
	lastHit  tracking.Result
	sink     FrameSink
	timing   *perf.Counter
	log      *slog.Logger
	lastWarn time.Time
}

// New opens the output window (and the edge window when enabled) and binds
// the mouse handler to this viewer.
func New(session *camera.Session, cfg Config, open WindowFactory) *Viewer {
	if open == nil {
		open = NewWindow
	}
	v := &Viewer{
		session: session,
		cfg:     cfg,
		open:    open,
		log:     log.With("component", "viewer"),
	}

	v.output = open(WindowOutput)
	if cfg.ShowEdges {
		v.edges = open(WindowEdges)
	}
	if src, ok := v.output.(MouseSource); ok {
		src.OnMouse(func(event, x, y int) {
			v.HandleMouse(event, x, y)
		})
	}
	return v
}

// SetFrameSink registers fn to receive displayed frames.
func (v *Viewer) SetFrameSink(fn FrameSink) {
	v.sink = fn
}

// SetTiming attaches a counter for display timings.
func (v *Viewer) SetTiming(c *perf.Counter) {
	v.timing = c
}

// SetTracker enables tracking of cropped regions. Pass nil to disable.
func (v *Viewer) SetTracker(t tracking.Tracker) {
	v.tracker = t
}

// LastTrack returns the result of the most recent tracked frame.
func (v *Viewer) LastTrack() tracking.Result {
	return v.lastHit
}

// Status returns the last pointer status line.
func (v *Viewer) Status() string {
	return v.status
}

// Run ticks until ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	v.log.Info("display loop started", "fps", v.cfg.FPS, "edges", v.cfg.ShowEdges)
	for {
		select {
		case <-ctx.Done():
			v.log.Info("display loop stopped")
			return nil
		default:
		}
		v.Tick()
	}
}

// Tick runs one loop iteration: show frame and edges, then poll the
// keyboard for 1000/FPS ms and dispatch the key. It returns the key code
// (-1 when none was pressed).
func (v *Viewer) Tick() int {
	frame, err := v.session.GetFrame()
	if err != nil {
		v.warnRead(err)
	}
	defer frame.Close()

	// Edges come from the displayed frame so both windows stay in step
	// and the device is read once per tick.
	edges := gocv.NewMat()
	if err == nil && v.cfg.ShowEdges {
		edges.Close()
		start := time.Now()
		edges, err = camera.DetectEdges(frame, v.session.EdgeParams())
		if v.timing != nil {
			v.timing.Observe(perf.StageEdges, time.Since(start))
		}
		if err != nil {
			v.log.Warn("edge filter failed", "error", err)
		}
	}
	defer edges.Close()

	shown := frame
	if !frame.Empty() {
		if marked, ok := v.track(frame); ok {
			defer marked.Close()
			shown = marked
		}
	}

	start := time.Now()
	if !shown.Empty() {
		v.output.IMShow(shown)
	}
	if v.edges != nil && !edges.Empty() {
		v.edges.IMShow(edges)
	}
	if v.timing != nil {
		v.timing.Observe(perf.StageShow, time.Since(start))
	}

	if v.sink != nil && !shown.Empty() {
		v.sink(shown, edges)
	}

	key := v.output.WaitKey(v.cfg.WaitMillis())
	if key >= 0 {
		v.HandleKey(key)
	}
	return key
}

// track locates the target in frame and returns a copy with its outline
// drawn. It returns false when there is no target or it was not found.
func (v *Viewer) track(frame gocv.Mat) (gocv.Mat, bool) {
	if v.tracker == nil || !v.tracker.HasTarget() {
		return gocv.Mat{}, false
	}

	res, err := v.tracker.Track(frame)
	if err != nil {
		v.log.Warn("tracking failed", "error", err)
		return gocv.Mat{}, false
	}
	if res.Found != v.lastHit.Found {
		debug.Log("🎯 target %s\n", res)
	}
	v.lastHit = res
	if !res.Found {
		return gocv.Mat{}, false
	}

	marked := frame.Clone()
	if err := tracking.DrawOutline(&marked, res.Outline, tracking.OutlineColor); err != nil {
		v.log.Warn("outline draw failed", "error", err)
		marked.Close()
		return gocv.Mat{}, false
	}
	return marked, true
}

// HandleKey dispatches a key code. Unknown keys are ignored.
func (v *Viewer) HandleKey(key int) {
	debug.EventLog("⌨️  key %d\n", key)

	switch byte(key & 0xFF) {
	case KeySave:
		if !v.cfg.EnableSave {
			return
		}
		snap, err := v.session.SaveImage()
		if err != nil {
			v.log.Error("snapshot failed", "error", err)
			return
		}
		v.log.Info("snapshot saved", "output", snap.Output, "edges", snap.Edges)

	case KeyPause:
		paused, err := v.session.Toggle()
		if err != nil {
			v.log.Warn("pause failed", "error", err)
			return
		}
		v.log.Info("pause toggled", "paused", paused)
	}
}

// HandleMouse updates the status line on moves and drives the two-click
// crop on left button presses. A right button press drops the tracking
// target and any half-made selection.
func (v *Viewer) HandleMouse(event, x, y int) {
	switch event {
	case EventMouseMove:
		v.status = StatusText(x, y)
		v.output.SetWindowTitle(v.status)
		debug.EventLog("🖱️  %s\n", v.status)

	case EventLeftButtonDown:
		if !v.cfg.EnableCrop {
			return
		}
		r, done := v.selector.Click(x, y)
		if !done {
			debug.EventLog("🖱️  crop corner at %d,%d\n", x, y)
			return
		}
		v.showCrop(r)

	case EventRightButtonDown:
		v.selector.Reset()
		if v.tracker != nil && v.tracker.HasTarget() {
			v.tracker.ClearTarget()
			v.lastHit = tracking.Result{}
			v.log.Info("tracking target cleared")
		}
	}
}

func (v *Viewer) showCrop(r camera.Region) {
	m, err := v.session.GetCropped(r.X, r.Y, r.Width, r.Height)
	defer m.Close()
	if err != nil {
		v.log.Warn("crop rejected", "region", r, "error", err)
		return
	}

	if v.crop == nil {
		v.crop = v.open(WindowCrop)
	}
	v.crop.IMShow(m)
	v.log.Info("crop shown", "x", r.X, "y", r.Y, "width", r.Width, "height", r.Height)

	if v.tracker == nil {
		return
	}
	if err := v.tracker.SetTarget(m); err != nil {
		v.log.Warn("crop not trackable", "error", err)
		return
	}
	v.lastHit = tracking.Result{}
	v.log.Info("tracking target set", "width", r.Width, "height", r.Height)
}

func (v *Viewer) warnRead(err error) {
	if errors.Is(err, camera.ErrClosed) || time.Since(v.lastWarn) >= warnInterval {
		v.log.Warn("frame unavailable", "error", err)
		v.lastWarn = time.Now()
	}
}

// Close closes every window opened by the viewer.
func (v *Viewer) Close() error {
	var errs []error
	for _, d := range []Display{v.output, v.edges, v.crop} {
		if d != nil {
			errs = append(errs, d.Close())
		}
	}
	return errors.Join(errs...)
}
