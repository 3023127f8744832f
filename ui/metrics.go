package ui

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// drawWindow holds the most recent draw durations. Once full, each new
// sample overwrites the oldest one.
type drawWindow struct {
	mu   sync.Mutex
	buf  []time.Duration
	next int
	full bool
}

func newDrawWindow(capacity int) *drawWindow {
	return &drawWindow{buf: make([]time.Duration, max(capacity, 1))}
}

func (w *drawWindow) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf[w.next] = d
	w.next++
	if w.next == len(w.buf) {
		w.next, w.full = 0, true
	}
}

// DrawStats summarizes the draw window.
type DrawStats struct {
	Median  time.Duration
	Worst   time.Duration
	Samples int
}

func (w *drawWindow) stats() DrawStats {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.buf)
	}
	sorted := slices.Clone(w.buf[:n])
	w.mu.Unlock()

	if n == 0 {
		return DrawStats{}
	}
	slices.Sort(sorted)
	return DrawStats{Median: sorted[n/2], Worst: sorted[n-1], Samples: n}
}

// Metrics tracks render counters and draw latency for the footer.
type Metrics struct {
	draws      *drawWindow
	renders    atomic.Uint64
	forced     atomic.Uint64
	cellErrors atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{draws: newDrawWindow(512)}
}

// ObserveRender records one completed table or detail draw.
func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.renders.Add(1)
	m.draws.add(d)
}

// ForcedRender counts a render that bypassed the refresh period.
func (m *Metrics) ForcedRender() {
	if m == nil {
		return
	}
	m.forced.Add(1)
}

// CellError counts a cell replaced by the render-error placeholder.
func (m *Metrics) CellError() {
	if m == nil {
		return
	}
	m.cellErrors.Add(1)
}

// DrawStats reports median and worst draw time over the recent window.
func (m *Metrics) DrawStats() DrawStats {
	if m == nil {
		return DrawStats{}
	}
	return m.draws.stats()
}

func (m *Metrics) Renders() uint64 {
	if m == nil {
		return 0
	}
	return m.renders.Load()
}

func (m *Metrics) ForcedRenders() uint64 {
	if m == nil {
		return 0
	}
	return m.forced.Load()
}

func (m *Metrics) CellErrors() uint64 {
	if m == nil {
		return 0
	}
	return m.cellErrors.Load()
}
