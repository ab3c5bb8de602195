package camera

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// TimestampLayout formats snapshot names as YYYY-MM-DD-HH:MM:SS in local time.
const TimestampLayout = "2006-01-02-15:04:05"

// Snapshot file name prefixes.
const (
	OutputPrefix = "output"
	EdgesPrefix  = "edges"
)

var errWriteFailed = errors.New("imwrite returned false")

// Snapshot describes the files written by SaveImage.
type Snapshot struct {
	Output string    `json:"output"`
	Edges  string    `json:"edges"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Taken  time.Time `json:"taken"`
}

// SnapshotName returns "<prefix>-<timestamp>.png" for t in local time.
func SnapshotName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s.png", prefix, t.Local().Format(TimestampLayout))
}

// SaveImage captures one frame and its edge map and writes both as PNG
// (compression level 9) named output-<timestamp>.png and
// edges-<timestamp>.png. The edge map is derived from the same frame.
// Two saves within the same second overwrite each other.
func (s *Session) SaveImage() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.frameLocked()
	if err != nil {
		return Snapshot{}, err
	}
	defer frame.Close()

	edges, err := s.edgesLocked(frame)
	if err != nil {
		return Snapshot{}, err
	}
	defer edges.Close()

	if info, err := os.Stat(s.outputDir); err != nil {
		return Snapshot{}, &SaveError{Path: s.outputDir, Err: err}
	} else if !info.IsDir() {
		return Snapshot{}, &SaveError{Path: s.outputDir, Err: fmt.Errorf("not a directory")}
	}

	taken := s.now()
	snap := Snapshot{
		Output: filepath.Join(s.outputDir, SnapshotName(OutputPrefix, taken)),
		Edges:  filepath.Join(s.outputDir, SnapshotName(EdgesPrefix, taken)),
		Width:  frame.Cols(),
		Height: frame.Rows(),
		Taken:  taken,
	}

	if err := WritePNG(snap.Output, frame); err != nil {
		return Snapshot{}, err
	}
	if err := WritePNG(snap.Edges, edges); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// WritePNG writes m to path with the fixed snapshot compression level.
func WritePNG(path string, m gocv.Mat) error {
	params := []int{gocv.IMWritePngCompression, PNGCompression}
	if !gocv.IMWriteWithParams(path, m, params) {
		return &SaveError{Path: path, Err: errWriteFailed}
	}
	return nil
}

// EncodePNG encodes m as PNG (compression level 9).
func EncodePNG(m gocv.Mat) ([]byte, error) {
	return encode(gocv.PNGFileExt, m, []int{gocv.IMWritePngCompression, PNGCompression})
}

// EncodeJPEG encodes m as JPEG with the given quality (1-100).
func EncodeJPEG(m gocv.Mat, quality int) ([]byte, error) {
	return encode(gocv.JPEGFileExt, m, []int{gocv.IMWriteJpegQuality, quality})
}

func encode(ext gocv.FileExt, m gocv.Mat, params []int) ([]byte, error) {
	if m.Empty() {
		return nil, ErrEmptyFrame
	}
	buf, err := gocv.IMEncodeWithParams(ext, m, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	defer buf.Close()

	// The native buffer is freed on Close.
	return append([]byte(nil), buf.GetBytes()...), nil
}
