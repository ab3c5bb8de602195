package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Camera.Source != "0" || !cfg.Viewer.ShowEdges || cfg.Web.Enabled {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camview.yaml")
	writeFile(t, path, `
camera:
  source: "images/image%05d.png"
  framerate: 25
  edges:
    low: 20
    high: 60
viewer:
  show_edges: false
web:
  enabled: true
  port: "9000"
tracking:
  agast_threshold: 40
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Camera.Source != "images/image%05d.png" {
		t.Errorf("Source = %q", cfg.Camera.Source)
	}
	if cfg.Camera.Framerate != 25 {
		t.Errorf("Framerate = %d", cfg.Camera.Framerate)
	}
	if cfg.Camera.Edges.Low != 20 || cfg.Camera.Edges.High != 60 {
		t.Errorf("Edges = %+v", cfg.Camera.Edges)
	}
	// Keys absent from the file keep defaults.
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Errorf("resolution defaults lost: %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.OutputDir != "." {
		t.Errorf("OutputDir = %q", cfg.Camera.OutputDir)
	}
	if cfg.Viewer.ShowEdges || !cfg.Viewer.EnableSave {
		t.Errorf("Viewer = %+v", cfg.Viewer)
	}
	if !cfg.Web.Enabled || cfg.Web.Port != "9000" || cfg.Web.PreviewWidth != 320 {
		t.Errorf("Web = %+v", cfg.Web)
	}
	if !cfg.Tracking.Enabled || cfg.Tracking.AgastThreshold != 40 || cfg.Tracking.RatioTest != 0.8 {
		t.Errorf("Tracking = %+v", cfg.Tracking)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "camera: [unclosed"},
		{"invalid values", "camera:\n  framerate: 0\n"},
		{"bad port", "web:\n  enabled: true\n  port: http\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".yaml")
			writeFile(t, path, tc.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CAMVIEW_SOURCE", "1")
	t.Setenv("CAMVIEW_OUT", "/tmp/shots")
	t.Setenv("CAMVIEW_PORT", "9100")
	t.Setenv("CAMVIEW_FPS", "15")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Camera.Source != "1" || cfg.Camera.OutputDir != "/tmp/shots" {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if cfg.Web.Port != "9100" || cfg.Camera.Framerate != 15 || cfg.LogLevel != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestApplyEnv_IgnoresBadFPS(t *testing.T) {
	t.Setenv("CAMVIEW_FPS", "fast")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Camera.Framerate != 10 {
		t.Errorf("Framerate = %d, want default 10", cfg.Camera.Framerate)
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camview.yaml")
	writeFile(t, path, "camera:\n  edges:\n    low: 10\n    high: 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	if err := Watch(ctx, path, func(cfg Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Invalid content is skipped, the next valid write is delivered.
	writeFile(t, path, "camera:\n  framerate: 0\n")
	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, "camera:\n  edges:\n    low: 40\n    high: 120\n")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Camera.Edges.Low == 40 && cfg.Camera.Edges.High == 120 {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	cfg.Web.PreviewQuality = 101
	if err := cfg.Validate(); err == nil {
		t.Error("preview quality 101 should be invalid")
	}

	cfg = Default()
	cfg.Tracking.RatioTest = 2
	if err := cfg.Validate(); err == nil {
		t.Error("ratio_test 2 should be invalid while tracking is enabled")
	}
	cfg.Tracking.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled tracking should not be validated: %v", err)
	}
}
