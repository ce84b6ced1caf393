// Package metrics records how long the hot paths of bt take: loading a
// tree, laying it out, matching a search, and rendering frames and
// snapshots.
//
// Collection is on unless BT_METRICS=0. Each timing keeps running totals
// plus a window of recent samples for percentiles:
//
//	func Compute() {
//	    defer metrics.Timer(metrics.LayoutCompute)()
//	    // ...
//	}
package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

// window is how many recent samples a Timing keeps for percentiles.
const window = 512

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("BT_METRICS") != "0")
}

// Enabled reports whether timings are recorded.
func Enabled() bool { return enabled.Load() }

// SetEnabled turns recording on or off.
func SetEnabled(e bool) { enabled.Store(e) }

// Timing accumulates durations of one named operation.
type Timing struct {
	name string

	mu      sync.Mutex
	count   int64
	total   time.Duration
	max     time.Duration
	min     time.Duration
	samples []float64 // milliseconds, ring of the last window samples
	next    int
}

func newTiming(name string) *Timing {
	return &Timing{name: name}
}

// Name returns the operation name.
func (t *Timing) Name() string { return t.name }

// Record adds one measurement.
func (t *Timing) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	t.total += d
	if d > t.max {
		t.max = d
	}
	if t.min == 0 || d < t.min {
		t.min = d
	}
	ms := float64(d) / float64(time.Millisecond)
	if len(t.samples) < window {
		t.samples = append(t.samples, ms)
	} else {
		t.samples[t.next] = ms
	}
	t.next = (t.next + 1) % window
}

// Count returns the number of measurements.
func (t *Timing) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Reset drops all measurements.
func (t *Timing) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count, t.total, t.max, t.min = 0, 0, 0, 0
	t.samples, t.next = nil, 0
}

// Stats is a snapshot of a Timing. Percentiles cover the recent window only.
type Stats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
	MaxMs   float64 `json:"max_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
}

// Stats returns a snapshot of the timing.
func (t *Timing) Stats() Stats {
	t.mu.Lock()
	s := Stats{
		Name:    t.name,
		Count:   t.count,
		TotalMs: ms(t.total),
		MinMs:   ms(t.min),
		MaxMs:   ms(t.max),
	}
	sorted := append([]float64(nil), t.samples...)
	t.mu.Unlock()

	if s.Count > 0 {
		s.AvgMs = s.TotalMs / float64(s.Count)
	}
	if len(sorted) > 0 {
		sort.Float64s(sorted)
		s.P50Ms = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		s.P95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	return s
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// Timer starts timing and returns the function that stops it.
func Timer(t *Timing) func() {
	if !Enabled() || t == nil {
		return func() {}
	}
	start := time.Now()
	return func() { t.Record(time.Since(start)) }
}

// Operations timed across bt.
var (
	TreeLoad       = newTiming("tree_load")
	LayoutCompute  = newTiming("layout_compute")
	SearchMatch    = newTiming("search_match")
	SnapshotRender = newTiming("snapshot_render")
	UIRender       = newTiming("ui_render")
	HTTPRender     = newTiming("http_render")
)

// All returns every registered timing.
func All() []*Timing {
	return []*Timing{TreeLoad, LayoutCompute, SearchMatch, SnapshotRender, UIRender, HTTPRender}
}

// ResetAll resets every timing.
func ResetAll() {
	for _, t := range All() {
		t.Reset()
	}
}

// AllStats returns stats for the timings that have measurements.
func AllStats() []Stats {
	var out []Stats
	for _, t := range All() {
		if t.Count() > 0 {
			out = append(out, t.Stats())
		}
	}
	return out
}

// WriteSummary prints one line per timing that has measurements.
func WriteSummary(w io.Writer) {
	for _, s := range AllStats() {
		fmt.Fprintf(w, "%-16s n=%-5d avg=%.3fms p50=%.3fms p95=%.3fms max=%.3fms\n",
			s.Name, s.Count, s.AvgMs, s.P50Ms, s.P95Ms, s.MaxMs)
	}
}
