// Package web provides HTTP and websocket remote control for the viewer:
// status, pause, snapshots, crops, live config and a JPEG preview stream.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-camview/internal/log"
	"github.com/teslashibe/go-camview/pkg/camera"
	"github.com/teslashibe/go-camview/pkg/hub"
	"github.com/teslashibe/go-camview/pkg/perf"
	"gocv.io/x/gocv"
)

// statusInterval is how often status is pushed to /ws/status clients.
const statusInterval = time.Second

// Status is the viewer state reported to clients
type Status struct {
	Paused      bool               `json:"paused"`
	Source      string             `json:"source"`
	FPS         int                `json:"fps"`
	Reads       uint64             `json:"reads"`
	FailedReads uint64             `json:"failed_reads"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Clients     int                `json:"clients"`
	Timing      map[string]float64 `json:"timing,omitempty"` // ms per stage; keypoints is a count
}

// Server is the remote control server
type Server struct {
	app  *fiber.App
	port string

	session *camera.Session
	manager *camera.Manager
	timing  *perf.Counter
	preview PreviewConfig

	// Hubs for websocket broadcast
	frameHub  *hub.Hub
	statusHub *hub.Hub

	previewMu   sync.Mutex
	lastPreview time.Time

	log *slog.Logger
}

// NewServer creates a server over session. manager and timing may be nil.
func NewServer(port string, session *camera.Session, manager *camera.Manager, timing *perf.Counter) *Server {
	s := &Server{
		port:      port,
		session:   session,
		manager:   manager,
		timing:    timing,
		preview:   DefaultPreviewConfig(),
		frameHub:  hub.New("frames"),
		statusHub: hub.New("status"),
		log:       log.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "camview",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/pause", s.handlePause)
	api.Post("/snapshot", s.handleSnapshot)
	api.Get("/frame", s.handleFrame)
	api.Get("/edges", s.handleEdges)
	api.Get("/crop", s.handleCrop)
	api.Get("/camera/config", s.handleGetConfig)
	api.Post("/camera/config", s.handleUpdateConfig)
	api.Get("/camera/presets", s.handlePresets)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetPreview replaces the preview stream settings.
func (s *Server) SetPreview(cfg PreviewConfig) {
	s.previewMu.Lock()
	defer s.previewMu.Unlock()
	s.preview = cfg
}

// Start runs the hubs and serves until ctx is done or Listen fails.
func (s *Server) Start(ctx context.Context) error {
	fmt.Printf("🌐 Remote control: http://localhost:%s\n", s.port)

	go s.frameHub.Run(ctx)
	go s.statusHub.Run(ctx)
	go s.statusLoop(ctx)
	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.log.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown stops the HTTP listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Status returns the current viewer state.
func (s *Server) Status() Status {
	st := s.session.Stats()
	out := Status{
		Paused:      st.Paused,
		Source:      st.Source,
		Reads:       st.Reads,
		FailedReads: st.FailedReads,
		Width:       st.Width,
		Height:      st.Height,
		Clients:     s.frameHub.ClientCount() + s.statusHub.ClientCount(),
	}
	if s.manager != nil {
		out.FPS = s.manager.GetConfig().Framerate
	}
	if s.timing != nil {
		out.Timing = s.timing.Averages(20)
	}
	return out
}

// BroadcastStatus pushes the current status to /ws/status clients.
func (s *Server) BroadcastStatus() {
	if s.statusHub.ClientCount() == 0 {
		return
	}
	if err := s.statusHub.BroadcastJSON(s.Status()); err != nil {
		s.log.Warn("status broadcast failed", "error", err)
	}
}

// PublishFrame sends frame to /ws/frames clients, rate-limited to the
// preview FPS. It is a viewer.FrameSink.
func (s *Server) PublishFrame(frame, _ gocv.Mat) {
	if s.frameHub.ClientCount() == 0 {
		return
	}

	s.previewMu.Lock()
	cfg := s.preview
	if cfg.FPS > 0 && time.Since(s.lastPreview) < time.Second/time.Duration(cfg.FPS) {
		s.previewMu.Unlock()
		return
	}
	s.lastPreview = time.Now()
	s.previewMu.Unlock()

	data, err := EncodePreview(frame, cfg)
	if err != nil {
		s.log.Warn("preview encode failed", "error", err)
		return
	}
	s.frameHub.BroadcastBinary(data)
}

func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.BroadcastStatus()
		}
	}
}
