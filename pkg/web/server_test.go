package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-camview/pkg/camera"
	"github.com/teslashibe/go-camview/pkg/perf"
)

func newTestServer(t *testing.T, outDir string) (*Server, *camera.Session, *camera.MockDevice) {
	t.Helper()
	dev := camera.NewMockDevice(64, 48)
	cfg := camera.DefaultConfig()
	if outDir != "" {
		cfg.OutputDir = outDir
	}
	s := camera.NewSession(dev, cfg)
	t.Cleanup(func() { s.Close() })

	m := camera.NewManager(cfg)
	m.OnConfigChange = s.Apply
	return NewServer("0", s, m, perf.NewCounter(10)), s, dev
}

func do(t *testing.T, srv *Server, method, target string, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	resp := do(t, srv, "GET", "/api/status", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st Status
	decode(t, resp, &st)

	if st.Paused || st.Source != "0" || st.FPS != 10 {
		t.Errorf("status = %+v", st)
	}

	srv.timing.Observe(perf.StageRead, 4*time.Millisecond)
	srv.timing.ObserveValue(perf.StageKeypoints, 250)

	var raw map[string]json.RawMessage
	decode(t, do(t, srv, "GET", "/api/status", ""), &raw)
	var timing map[string]float64
	if err := json.Unmarshal(raw["timing"], &timing); err != nil {
		t.Fatalf("timing field: %v (body keys %v)", err, raw)
	}
	if timing[perf.StageRead] != 4 || timing[perf.StageKeypoints] != 250 {
		t.Errorf("timing = %v", timing)
	}
}

func TestHandlePause(t *testing.T) {
	srv, s, dev := newTestServer(t, "")

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"explicit pause", `{"paused":true}`, true},
		{"pause again", `{"paused":true}`, true},
		{"toggle", "", false},
		{"toggle back", "", true},
		{"explicit resume", `{"paused":false}`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, "POST", "/api/pause", tc.body)
			if resp.StatusCode != 200 {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var st Status
			decode(t, resp, &st)
			if st.Paused != tc.want || s.Paused() != tc.want {
				t.Errorf("paused = %v (session %v), want %v", st.Paused, s.Paused(), tc.want)
			}
		})
	}

	// Two freezes: the first explicit pause and "toggle back".
	if dev.Reads() != 2 {
		t.Errorf("device reads = %d, want 2", dev.Reads())
	}
}

func TestHandlePause_ReadFailure(t *testing.T) {
	srv, _, dev := newTestServer(t, "")
	dev.SetFailing(true)

	resp := do(t, srv, "POST", "/api/pause", `{"paused":true}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHandleFrame(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	resp := do(t, srv, "GET", "/api/frame", "")
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	cfg, err := jpeg.DecodeConfig(resp.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 48 {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestHandleEdges(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	resp := do(t, srv, "GET", "/api/edges", "")
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, err := png.DecodeConfig(resp.Body); err != nil {
		t.Errorf("edges not PNG: %v", err)
	}
}

func TestHandleCrop(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	tests := []struct {
		name   string
		query  string
		status int
		w, h   int
	}{
		{"valid", "x=4&y=4&width=20&height=10", 200, 20, 10},
		{"negative width", "x=30&y=4&width=-10&height=10", 400, 0, 0},
		{"out of bounds", "x=60&y=0&width=10&height=10", 400, 0, 0},
		{"missing size", "x=1&y=1", 400, 0, 0},
		{"huge width", "x=10&y=0&width=9223372036854775800&height=10", 400, 0, 0},
		{"huge height", "x=0&y=10&width=10&height=9223372036854775807", 400, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, "GET", "/api/crop?"+tc.query, "")
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			if tc.status != 200 {
				return
			}
			cfg, err := png.DecodeConfig(resp.Body)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if cfg.Width != tc.w || cfg.Height != tc.h {
				t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tc.w, tc.h)
			}
		})
	}
}

func TestHandleSnapshot(t *testing.T) {
	dir := t.TempDir()
	srv, _, _ := newTestServer(t, dir)

	resp := do(t, srv, "POST", "/api/snapshot", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var snap camera.Snapshot
	decode(t, resp, &snap)

	if snap.Output == "" || snap.Edges == "" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Width != 64 || snap.Height != 48 {
		t.Errorf("size = %dx%d", snap.Width, snap.Height)
	}
}

func TestHandleConfig(t *testing.T) {
	srv, s, _ := newTestServer(t, "")

	resp := do(t, srv, "POST", "/api/camera/config", `{"edge_low": 20, "edge_high": 90}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var cfg map[string]interface{}
	decode(t, resp, &cfg)

	if p := s.EdgeParams(); p.Low != 20 || p.High != 90 {
		t.Errorf("session edges = %+v", p)
	}

	resp = do(t, srv, "POST", "/api/camera/config", `{"edge_low": 95}`)
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("low above high status = %d, want 400", resp.StatusCode)
	}

	resp = do(t, srv, "POST", "/api/camera/config", `{"framerate": 30}`)
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != 400 || !strings.Contains(body["error"], "framerate") {
		t.Errorf("framerate update = %d %q, want 400 naming framerate", resp.StatusCode, body["error"])
	}

	resp = do(t, srv, "GET", "/api/camera/config", "")
	decode(t, resp, &cfg)
	if cfg["framerate"] != float64(10) {
		t.Errorf("framerate = %v after rejected update", cfg["framerate"])
	}
	edges := cfg["edges"].(map[string]interface{})
	if edges["low"] != float64(20) {
		t.Errorf("edges.low = %v after rejected update", edges["low"])
	}

	resp = do(t, srv, "GET", "/api/status", "")
	var st Status
	decode(t, resp, &st)
	if st.FPS != 10 {
		t.Errorf("status fps = %d, want 10", st.FPS)
	}

	resp = do(t, srv, "GET", "/api/camera/presets", "")
	var names []string
	decode(t, resp, &names)
	if len(names) != len(camera.PresetNames()) {
		t.Errorf("presets = %v", names)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{camera.ErrInvalidRegion, 400},
		{camera.ErrReadFailed, 503},
		{camera.ErrClosed, 503},
		{&camera.SaveError{Path: "x", Err: io.ErrShortWrite}, 500},
	}
	for _, tc := range tests {
		if got := errorStatus(tc.err); got != tc.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestStatusWebSocket(t *testing.T) {
	dev := camera.NewMockDevice(64, 48)
	s := camera.NewSession(dev, camera.DefaultConfig())
	defer s.Close()
	srv := NewServer("18091", s, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/status", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var st Status
	if err := ws.ReadJSON(&st); err != nil {
		t.Fatalf("read initial status: %v", err)
	}
	if st.Source != "0" {
		t.Errorf("Source = %q", st.Source)
	}

	s.SetPaused(true)

	// Periodic updates arrive every statusInterval; one sent before the
	// pause may still be queued.
	ws.SetReadDeadline(time.Now().Add(3 * statusInterval))
	for !st.Paused {
		if err := ws.ReadJSON(&st); err != nil {
			t.Fatalf("read status update: %v", err)
		}
	}
}

func TestFramesWebSocket(t *testing.T) {
	dev := camera.NewMockDevice(640, 480)
	s := camera.NewSession(dev, camera.DefaultConfig())
	defer s.Close()
	srv := NewServer("18092", s, nil, nil)
	srv.SetPreview(PreviewConfig{Width: 160, Quality: 60})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18092/ws/frames", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(time.Second)
	for srv.frameHub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	frame, _ := s.GetFrame()
	defer frame.Close()
	srv.PublishFrame(frame, frame)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", msgType)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if cfg.Width != 160 || cfg.Height != 120 {
		t.Errorf("preview size = %dx%d, want 160x120", cfg.Width, cfg.Height)
	}
}
