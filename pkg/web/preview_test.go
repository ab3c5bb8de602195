package web

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/teslashibe/go-camview/pkg/camera"
	"gocv.io/x/gocv"
)

func TestEncodePreview(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		cfg          PreviewConfig
		wantW, wantH int
	}{
		{"scaled down", 640, 480, PreviewConfig{Width: 320, Quality: 70}, 320, 240},
		{"already small", 160, 120, PreviewConfig{Width: 320, Quality: 70}, 160, 120},
		{"no limit", 200, 100, PreviewConfig{Quality: 0}, 200, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frame := camera.SyntheticFrame(tc.w, tc.h, 1)
			defer frame.Close()

			data, err := EncodePreview(frame, tc.cfg)
			if err != nil {
				t.Fatalf("EncodePreview: %v", err)
			}
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if cfg.Width != tc.wantW || cfg.Height != tc.wantH {
				t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestEncodePreview_GrayAndEmpty(t *testing.T) {
	frame := camera.SyntheticFrame(64, 48, 1)
	defer frame.Close()
	edges, err := camera.DetectEdges(frame, camera.DefaultEdgeParams())
	if err != nil {
		t.Fatalf("DetectEdges: %v", err)
	}
	defer edges.Close()

	if _, err := EncodePreview(edges, DefaultPreviewConfig()); err != nil {
		t.Errorf("single-channel preview: %v", err)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := EncodePreview(empty, DefaultPreviewConfig()); err == nil {
		t.Error("empty frame should fail")
	}
}
