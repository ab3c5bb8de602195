// Package perf keeps rolling timing samples for the capture pipeline and
// the feature tracker. Besides durations it can hold plain values such as
// keypoint counts.
package perf

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Stage names recorded by the viewer and the tracker.
const (
	StageRead  = "read"
	StageEdges = "edges"
	StageShow  = "show"

	StageDetect    = "detect"
	StageCompute   = "compute"
	StageMatch     = "match"
	StageKeypoints = "keypoints" // value stage: keypoints found per frame
)

// DefaultCapacity is the number of samples kept per stage.
const DefaultCapacity = 512

// Counter stores the most recent samples per stage. Durations are kept in
// milliseconds; value stages keep the raw number.
// It is safe for concurrent use.
type Counter struct {
	mu       sync.Mutex
	capacity int
	order    []string
	samples  map[string][]float64
	timed    map[string]bool
}

// NewCounter creates a counter keeping up to capacity samples per stage.
func NewCounter(capacity int) *Counter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Counter{
		capacity: capacity,
		samples:  make(map[string][]float64),
		timed:    make(map[string]bool),
	}
}

// Observe records one duration for stage.
func (c *Counter) Observe(stage string, d time.Duration) {
	c.add(stage, ms(d), true)
}

// ObserveValue records a plain value, such as a keypoint count, for stage.
func (c *Counter) ObserveValue(stage string, v float64) {
	c.add(stage, v, false)
}

func (c *Counter) add(stage string, v float64, timed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.samples[stage]
	if !ok {
		c.order = append(c.order, stage)
		c.timed[stage] = timed
	}
	s = append(s, v)
	if len(s) > c.capacity {
		s = s[len(s)-c.capacity:]
	}
	c.samples[stage] = s
}

// Time runs fn and records its duration under stage.
func (c *Counter) Time(stage string, fn func()) {
	start := time.Now()
	fn()
	c.Observe(stage, time.Since(start))
}

// Average returns the mean duration of the last n samples of stage
// (all when n <= 0).
func (c *Counter) Average(stage string, n int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(average(c.samples[stage], n) * float64(time.Millisecond))
}

// AverageValue returns the mean of the last n samples of a value stage.
func (c *Counter) AverageValue(stage string, n int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return average(c.samples[stage], n)
}

// Count returns the number of retained samples for stage.
func (c *Counter) Count(stage string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples[stage])
}

// Averages returns the mean of the last n samples for every stage:
// milliseconds for timed stages, the raw mean for value stages.
func (c *Counter) Averages(n int) map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]float64, len(c.samples))
	for stage, s := range c.samples {
		out[stage] = average(s, n)
	}
	return out
}

// Report formats the averages of the last n samples,
// e.g. "read=12.345ms edges=3.210ms keypoints=412.0".
func (c *Counter) Report(n int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	parts := make([]string, 0, len(c.order))
	for _, stage := range c.order {
		avg := average(c.samples[stage], n)
		if c.timed[stage] {
			parts = append(parts, fmt.Sprintf("%s=%.3fms", stage, avg))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%.1f", stage, avg))
		}
	}
	return strings.Join(parts, " ")
}

// WriteCSV writes every retained sample as one row per index, one column
// per stage (ms for timed stages).
func (c *Counter) WriteCSV(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(c.order); err != nil {
		return err
	}

	rows := 0
	for _, s := range c.samples {
		rows = max(rows, len(s))
	}
	for i := 0; i < rows; i++ {
		row := make([]string, len(c.order))
		for j, stage := range c.order {
			if s := c.samples[stage]; i < len(s) {
				row[j] = strconv.FormatFloat(s[i], 'f', 3, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func average(s []float64, n int) float64 {
	if n > 0 && len(s) > n {
		s = s[len(s)-n:]
	}
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
