package web

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// PreviewConfig controls the websocket preview stream.
type PreviewConfig struct {
	Width   int // Frames wider than this are scaled down, keeping aspect ratio
	Quality int // JPEG quality 1-100
	FPS     int // Maximum preview frames per second
}

// DefaultPreviewConfig returns a light preview: 320px wide, quality 70, 5 FPS.
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Width:   320,
		Quality: 70,
		FPS:     5,
	}
}

// EncodePreview scales frame to fit cfg.Width and encodes it as JPEG.
func EncodePreview(frame gocv.Mat, cfg PreviewConfig) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("preview: empty frame")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("preview: convert: %w", err)
	}

	if cfg.Width > 0 && frame.Cols() > cfg.Width {
		height := frame.Rows() * cfg.Width / frame.Cols()
		img = imaging.Resize(img, cfg.Width, max(height, 1), imaging.Linear)
	}

	quality := cfg.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultPreviewConfig().Quality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("preview: encode: %w", err)
	}
	return buf.Bytes(), nil
}
