// Package camview wires the capture session, display loop, target
// tracking, config reloading and the optional remote control server into
// one application.
package camview

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/teslashibe/go-camview/internal/config"
	"github.com/teslashibe/go-camview/internal/log"
	"github.com/teslashibe/go-camview/pkg/camera"
	"github.com/teslashibe/go-camview/pkg/debug"
	"github.com/teslashibe/go-camview/pkg/perf"
	"github.com/teslashibe/go-camview/pkg/tracking"
	"github.com/teslashibe/go-camview/pkg/viewer"
	"github.com/teslashibe/go-camview/pkg/web"
)

// reportSamples is how many recent samples the exit timing report averages.
const reportSamples = 20

// App is the webcam viewer application.
type App struct {
	config     config.Config
	configPath string

	// OpenDevice opens the capture source; defaults to camera.Open.
	OpenDevice func(camera.Config) (camera.Device, error)

	// OpenWindow opens display windows; defaults to viewer.NewWindow.
	OpenWindow viewer.WindowFactory

	// TimingCSV, when set, receives the per-frame timing samples on shutdown.
	TimingCSV string

	session *camera.Session
	manager *camera.Manager
	viewer  *viewer.Viewer
	tracker *tracking.FeatureTracker
	server  *web.Server
	timing  *perf.Counter
	log     *slog.Logger
}

// New creates an application. configPath is watched for edge parameter
// changes when non-empty.
func New(cfg config.Config, configPath string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		config:     cfg,
		configPath: configPath,
		OpenDevice: camera.Open,
		OpenWindow: viewer.NewWindow,
		timing:     perf.NewCounter(perf.DefaultCapacity),
		log:        log.With("component", "app"),
	}, nil
}

// Init opens the device and windows and builds the web server.
// Call this after New() and before Run(), from the main goroutine.
func (a *App) Init() error {
	fmt.Println("📷 camview")
	fmt.Println("==========")
	if debug.Enabled {
		fmt.Println("🐛 Debug mode enabled")
	}

	device, err := a.OpenDevice(a.config.Camera)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	a.log.Info("capture source opened", "source", a.config.Camera.Source)
	debug.Log("   camera config: %+v\n", a.config.Camera)

	a.session = camera.NewSession(device, a.config.Camera)
	a.session.SetTiming(a.timing)

	a.manager = camera.NewManager(a.config.Camera)
	a.manager.OnConfigChange = a.session.Apply

	a.viewer = viewer.New(a.session, viewer.Config{
		FPS:        a.config.Camera.Framerate,
		ShowEdges:  a.config.Viewer.ShowEdges,
		EnableSave: a.config.Viewer.EnableSave,
		EnableCrop: a.config.Viewer.EnableCrop,
	}, a.OpenWindow)
	a.viewer.SetTiming(a.timing)

	if a.config.Tracking.Enabled {
		a.tracker, err = tracking.NewFeatureTracker(a.config.Tracking)
		if err != nil {
			return fmt.Errorf("tracking: %w", err)
		}
		a.tracker.SetTiming(a.timing)
		a.viewer.SetTracker(a.tracker)
		debug.Log("   tracking config: %+v\n", a.config.Tracking)
	}

	if a.config.Web.Enabled {
		a.server = web.NewServer(a.config.Web.Port, a.session, a.manager, a.timing)
		a.server.SetPreview(web.PreviewConfig{
			Width:   a.config.Web.PreviewWidth,
			Quality: a.config.Web.PreviewQuality,
			FPS:     a.config.Web.PreviewFPS,
		})
		a.viewer.SetFrameSink(a.server.PublishFrame)
	}

	return nil
}

// Run shows frames until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.viewer == nil {
		return fmt.Errorf("app not initialized")
	}

	fmt.Println("   p = pause/resume, s = save snapshot, click twice to crop")
	if a.tracker != nil {
		fmt.Println("   a crop is tracked in later frames, right click to stop")
	}
	fmt.Println("   (Ctrl+C to exit)")

	if a.server != nil {
		a.server.StartAsync(ctx)
	}

	if a.configPath != "" {
		if err := config.Watch(ctx, a.configPath, a.Reload); err != nil {
			a.log.Warn("config watch disabled", "error", err)
		}
	}

	return a.viewer.Run(ctx)
}

// Reload applies a reloaded configuration. Source, resolution and FPS
// need a restart; edge parameters and the output directory apply live.
func (a *App) Reload(cfg config.Config) {
	current := a.manager.GetConfig()
	next := cfg.Camera
	next.Source = current.Source
	next.Width, next.Height = current.Width, current.Height
	next.Framerate = current.Framerate

	if err := a.manager.SetConfig(next); err != nil {
		a.log.Warn("config reload rejected", "error", err)
		return
	}
	a.log.Info("edge params updated", "low", next.Edges.Low, "high", next.Edges.High)
}

// Session returns the capture session (nil before Init).
func (a *App) Session() *camera.Session {
	return a.session
}

// Viewer returns the display loop (nil before Init).
func (a *App) Viewer() *viewer.Viewer {
	return a.viewer
}

// Shutdown closes windows, the web server and the device, and reports timing.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Goodbye!")

	if a.timing.Count(perf.StageRead) > 0 {
		a.log.Info("frame timing", "report", a.timing.Report(reportSamples))
	}
	if a.TimingCSV != "" {
		if err := a.writeTiming(); err != nil {
			a.log.Warn("timing csv not written", "error", err)
		}
	}

	if a.server != nil {
		a.server.Shutdown()
	}
	if a.viewer != nil {
		a.viewer.Close()
	}
	if a.tracker != nil {
		a.tracker.Close()
	}
	if a.session != nil {
		a.session.Close()
	}
}

func (a *App) writeTiming() error {
	f, err := os.Create(a.TimingCSV)
	if err != nil {
		return err
	}
	defer f.Close()
	return a.timing.WriteCSV(f)
}
