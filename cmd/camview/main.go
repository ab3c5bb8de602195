// camview - webcam viewer with live edge detection, pause, crop, snapshots and crop tracking
// Optionally serves a remote control API and preview stream over HTTP.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-camview/internal/config"
	"github.com/teslashibe/go-camview/internal/log"
	"github.com/teslashibe/go-camview/pkg/camview"
	"github.com/teslashibe/go-camview/pkg/debug"
)

func main() {
	cfg, path, timingCSV := parseFlags()

	log.Init(cfg.LogLevel)

	app, err := camview.New(cfg, path)
	if err != nil {
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}
	app.TimingCSV = timingCSV

	if err := app.Init(); err != nil {
		app.Shutdown()
		stdlog.Fatalf("❌ Initialization failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runApp(ctx, app)
	cancel()
	os.Exit(code)
}

// application is the part of camview.App that main drives after Init.
type application interface {
	Run(ctx context.Context) error
	Shutdown()
}

// runApp runs app until ctx ends and always shuts it down. It returns the
// process exit code.
func runApp(ctx context.Context, app application) int {
	err := app.Run(ctx)
	app.Shutdown()
	if err != nil {
		stdlog.Printf("❌ Runtime error: %v", err)
		return 1
	}
	return 0
}

// parseFlags builds the configuration: file, then environment, then flags.
func parseFlags() (config.Config, string, string) {
	defaults := config.Default()

	configPath := flag.String("config", "", "YAML config file (watched for edge parameter changes)")
	source := flag.String("source", "", "Capture device index or image sequence pattern (e.g. images/image%05d.png)")
	fps := flag.Int("fps", 0, "Display rate in frames per second")
	out := flag.String("out", "", "Directory for saved snapshots")
	noEdges := flag.Bool("no-edges", false, "Hide the edges window")
	noSave := flag.Bool("no-save", false, "Disable the save key")
	noCrop := flag.Bool("no-crop", false, "Disable mouse cropping")
	noTrack := flag.Bool("no-track", false, "Do not track cropped regions in later frames")
	web := flag.Bool("web", false, "Enable the remote control server")
	port := flag.String("port", "", "Remote control server port (default "+defaults.Web.Port+")")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugEvents := flag.Bool("debug-events", false, "Log every mouse and key event")
	timingCSV := flag.String("timing-csv", "", "Write per-frame timing samples to this CSV file on exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("❌ Config: %v", err)
	}
	cfg.ApplyEnv()

	if *source != "" {
		cfg.Camera.Source = *source
	}
	if *fps > 0 {
		cfg.Camera.Framerate = *fps
	}
	if *out != "" {
		cfg.Camera.OutputDir = *out
	}
	if *noEdges {
		cfg.Viewer.ShowEdges = false
	}
	if *noSave {
		cfg.Viewer.EnableSave = false
	}
	if *noCrop {
		cfg.Viewer.EnableCrop = false
	}
	if *noTrack {
		cfg.Tracking.Enabled = false
	}
	if *web {
		cfg.Web.Enabled = true
	}
	if *port != "" {
		cfg.Web.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	debug.Enabled = *debugFlag
	debug.Events = *debugEvents
	if debug.Enabled {
		cfg.LogLevel = "debug"
	}
	return cfg, *configPath, *timingCSV
}
