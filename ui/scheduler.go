package ui

import "time"

const (
	// DefaultInterval is the AUTO refresh period of a fresh session.
	DefaultInterval = time.Second
	// DegradedInterval is used once the store outgrows DegradeThreshold.
	DegradedInterval = 15 * time.Second
	// DegradeThreshold is the entry count past which the period degrades.
	DegradeThreshold = 1000
	// FastFeedbackLabels is the distinct-label count below which every
	// change renders immediately.
	FastFeedbackLabels = 10
)

// Scheduler decides when the store may be projected to the screen. It is
// owned by the session goroutine and does no locking.
//
// In AUTO mode a periodic Tick renders when a redraw is pending. In MANUAL
// mode ticks never render; only explicit requests and the fast-feedback rule
// in AfterChange do. The period degrades once, from DefaultInterval to
// DegradedInterval, and never recovers within a session.
type Scheduler struct {
	interval     time.Duration
	auto         bool
	pending      bool
	degraded     bool
	lastRender   time.Time
	countdown    int
	lastRendered int
	prevRendered int
}

// NewScheduler returns a scheduler in AUTO mode at the default period.
func NewScheduler() *Scheduler {
	s := &Scheduler{interval: DefaultInterval, auto: true}
	s.ResetCountdown()
	return s
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

func (s *Scheduler) Auto() bool { return s.auto }

func (s *Scheduler) Degraded() bool { return s.degraded }

// SetAuto switches between AUTO and MANUAL and restarts the countdown.
func (s *Scheduler) SetAuto(on bool) {
	s.auto = on
	s.ResetCountdown()
}

// RequestRedraw marks the view dirty for the next AUTO tick.
func (s *Scheduler) RequestRedraw() { s.pending = true }

func (s *Scheduler) Pending() bool { return s.pending }

// NoteEntryCount applies the one-way degradation rule. It reports whether the
// period changed, in which case the caller must re-arm its render ticker.
func (s *Scheduler) NoteEntryCount(n int) bool {
	if s.degraded || n <= DegradeThreshold {
		return false
	}
	s.degraded = true
	s.interval = DegradedInterval
	s.ResetCountdown()
	return true
}

// AfterChange is called after a batch changed the store. It returns true when
// the caller should render right away, regardless of mode; otherwise the
// redraw is left pending for the next tick.
func (s *Scheduler) AfterChange(distinct int) bool {
	if distinct < FastFeedbackLabels {
		return true
	}
	s.pending = true
	return false
}

// Tick is called on every render-ticker fire and reports whether to render.
func (s *Scheduler) Tick() bool {
	return s.auto && s.pending
}

// Rendered records a completed render of count entries. The previous count
// only shifts when the count moved, so the markers keep pointing at the last
// range that actually grew.
func (s *Scheduler) Rendered(now time.Time, count int) {
	s.lastRender = now
	s.pending = false
	if count != s.lastRendered {
		s.prevRendered = s.lastRendered
		s.lastRendered = count
	}
}

// DetailRendered records a detail-view render. The table did not show any
// rows, so the rendered counts behind the row markers stay put.
func (s *Scheduler) DetailRendered(now time.Time) {
	s.lastRender = now
	s.pending = false
}

func (s *Scheduler) LastRender() time.Time { return s.lastRender }

// LastRendered is the entry count of the latest render.
func (s *Scheduler) LastRendered() int { return s.lastRendered }

// PrevRendered is the entry count of the render before the count last moved.
func (s *Scheduler) PrevRendered() int { return s.prevRendered }

// ResetCountdown restarts the seconds-to-next-render indicator.
func (s *Scheduler) ResetCountdown() {
	s.countdown = int(s.interval / time.Second)
	if s.countdown < 1 {
		s.countdown = 1
	}
}

// CountdownTick advances the indicator by one second. It does nothing in
// MANUAL mode and wraps to the full period when it runs out.
func (s *Scheduler) CountdownTick() {
	if !s.auto {
		return
	}
	s.countdown--
	if s.countdown <= 0 {
		s.ResetCountdown()
	}
}

func (s *Scheduler) Countdown() int { return s.countdown }
