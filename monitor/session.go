// Package monitor runs the interactive session: it owns the state store, the
// render scheduler and the view, and is the only goroutine that touches them.
//
// Goroutines:
//   - the transport callback calls Deliver, which filters, queues and wakes
//     the loop without blocking
//   - Run's select loop drains the queue in small batches, fires the render
//     and countdown tickers, handles keys and transport events
//
// Status, notices and clear acknowledgements from other goroutines arrive as
// events on a channel so that no state is shared outside the queue.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"mqttwatch/buffer"
	"mqttwatch/filter"
	"mqttwatch/message"
	"mqttwatch/store"
	"mqttwatch/ui"
)

const (
	// DefaultDrainBatch caps the messages applied per loop step.
	DefaultDrainBatch = 10
	// DefaultDrainDelay is how soon a partial drain re-runs.
	DefaultDrainDelay = 10 * time.Millisecond
)

// Publisher sends a message; used to clear retained labels.
type Publisher interface {
	Publish(label string, payload []byte, retained bool, done func(error))
}

// Options wires a Session. Engine, Queue and Terminal are required.
type Options struct {
	Engine        *filter.Engine
	Masker        *filter.Masker
	Queue         *buffer.Queue
	Terminal      ui.Terminal
	Keys          <-chan ui.Key
	Publisher     Publisher // required when ClearRetained is set
	ClearRetained bool
	Sort          ui.SortKey
	LabelWidth    int
	PayloadWidth  int
	DrainBatch    int
	DrainDelay    time.Duration
	Now           func() time.Time
}

type eventKind int

const (
	evStatus eventKind = iota
	evNotice
	evCleared
)

type event struct {
	kind   eventKind
	text   string
	online bool
	label  string
	err    error
}

// Session is one interactive monitoring run.
type Session struct {
	engine        *filter.Engine
	masker        *filter.Masker
	queue         *buffer.Queue
	term          ui.Terminal
	keys          <-chan ui.Key
	publisher     Publisher
	clearRetained bool
	drainBatch    int
	drainDelay    time.Duration
	now           func() time.Time

	store    *store.Store
	sched    *ui.Scheduler
	view     *ui.ViewState
	ctrl     *ui.Controller
	keymap   ui.Keymap
	renderer *ui.Renderer
	metrics  *ui.Metrics

	wake     chan struct{}
	events   chan event
	fatal    chan error
	done     chan struct{}
	accepted atomic.Uint64

	// Owned by the loop goroutine.
	renderTicker *time.Ticker
	drainTimer   *time.Timer
	drainArmed   bool
	status       string
	online       bool
	notice       string
	lastShown    int
	lastErr      string
	clearing     map[string]bool
}

// New builds a session. Nothing runs until Run.
func New(opts Options) *Session {
	if opts.DrainBatch <= 0 {
		opts.DrainBatch = DefaultDrainBatch
	}
	if opts.DrainDelay <= 0 {
		opts.DrainDelay = DefaultDrainDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Masker == nil {
		opts.Masker = filter.NewMasker(nil, filter.PreserveNone)
	}
	s := &Session{
		engine:        opts.Engine,
		masker:        opts.Masker,
		queue:         opts.Queue,
		term:          opts.Terminal,
		keys:          opts.Keys,
		publisher:     opts.Publisher,
		clearRetained: opts.ClearRetained && opts.Publisher != nil,
		drainBatch:    opts.DrainBatch,
		drainDelay:    opts.DrainDelay,
		now:           opts.Now,
		store:         store.New(),
		sched:         ui.NewScheduler(),
		view:          ui.NewViewState(opts.Sort, opts.LabelWidth, opts.PayloadWidth),
		keymap:        ui.DefaultKeymap(),
		metrics:       ui.NewMetrics(),
		wake:          make(chan struct{}, 1),
		events:        make(chan event, 64),
		fatal:         make(chan error, 1),
		done:          make(chan struct{}),
		status:        "connecting",
		clearing:      make(map[string]bool),
	}
	s.ctrl = ui.NewController(s.view, s.sched, s.masker)
	s.renderer = ui.NewRenderer(s.term, s.metrics)

	// Both start stopped; Run arms the ticker and drain re-arms the timer.
	s.renderTicker = time.NewTicker(s.sched.Interval())
	s.renderTicker.Stop()
	s.drainTimer = time.NewTimer(time.Hour)
	s.drainTimer.Stop()
	return s
}

// Deliver is the transport callback. It may be called from any goroutine.
func (s *Session) Deliver(label string, payload []byte, retained bool) {
	verdict, ok := s.engine.Evaluate(label, payload, retained)
	if !ok {
		return
	}
	msg := message.Message{
		Label:       label,
		Payload:     payload,
		Retained:    retained,
		ArrivalTime: s.now(),
	}
	if verdict.MatchedPattern != "" {
		msg.Verdict = &verdict
	}
	s.accepted.Add(1)
	if dropped := s.queue.Push(msg); dropped > 0 {
		log.Printf("Queue: overflow, dropped %d oldest messages (%d total)", dropped, s.queue.Dropped())
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetStatus records a transport state change such as connected or offline.
func (s *Session) SetStatus(status string, online bool) {
	s.post(event{kind: evStatus, text: status, online: online})
}

// Notice shows text in the footer. It never blocks, so it is safe to call
// from a log sink running on the loop goroutine itself.
func (s *Session) Notice(text string) {
	select {
	case s.events <- event{kind: evNotice, text: text}:
	default:
	}
}

// Fail ends Run with err. Only the first failure is kept.
func (s *Session) Fail(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}

func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run processes events until ctx ends, the operator quits or a fatal error
// is reported. Panics in the loop are returned as errors so the caller's
// deferred terminal restore still runs in an orderly way.
func (s *Session) Run(ctx context.Context) (err error) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
		}
	}()

	s.renderTicker.Reset(s.sched.Interval())
	defer s.renderTicker.Stop()
	countdown := time.NewTicker(time.Second)
	defer countdown.Stop()
	defer s.drainTimer.Stop()

	s.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.fatal:
			return err
		case <-s.wake:
			s.drain()
		case <-s.drainTimer.C:
			s.drainArmed = false
			s.drain()
		case <-s.renderTicker.C:
			if s.sched.Tick() {
				s.render()
			}
		case <-countdown.C:
			s.sched.CountdownTick()
			if s.sched.Auto() {
				s.renderFooter()
			}
		case k, ok := <-s.keys:
			if !ok {
				s.keys = nil
				continue
			}
			if s.handleKey(k) {
				return nil
			}
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

// drain applies at most one batch and re-arms the timer if more is queued.
func (s *Session) drain() {
	if batch := s.queue.DrainBatch(s.drainBatch); len(batch) > 0 {
		s.apply(batch)
	}
	if s.queue.Len() > 0 && !s.drainArmed {
		s.drainTimer.Reset(s.drainDelay)
		s.drainArmed = true
	}
}

func (s *Session) apply(batch []message.Message) {
	if s.clearRetained {
		batch = s.dropClearEchoes(batch)
	}
	if !s.store.ApplyBatch(batch, s.now()) {
		return
	}
	if s.clearRetained {
		s.requestClears(batch)
	}
	n := s.store.Len()
	if s.sched.NoteEntryCount(n) {
		s.renderTicker.Reset(s.sched.Interval())
		log.Printf("Render: %d labels stored, refresh period now %s", n, s.sched.Interval())
	}
	if s.sched.AfterChange(n) {
		s.metrics.ForcedRender()
		s.render()
	}
}

// dropClearEchoes removes the empty payloads the broker delivers after a
// retained label was cleared, so the stored value stays visible.
func (s *Session) dropClearEchoes(batch []message.Message) []message.Message {
	kept := batch[:0:0]
	for _, m := range batch {
		if len(m.Payload) == 0 && s.store.Has(m.Label) {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

func (s *Session) requestClears(batch []message.Message) {
	for _, m := range batch {
		if !m.Retained || len(m.Payload) == 0 || s.clearing[m.Label] {
			continue
		}
		if e, ok := s.store.Get(m.Label); ok && e.Cleared {
			continue
		}
		label := m.Label
		s.clearing[label] = true
		s.publisher.Publish(label, nil, true, func(err error) {
			s.post(event{kind: evCleared, label: label, err: err})
		})
	}
}

func (s *Session) handleEvent(ev event) {
	switch ev.kind {
	case evStatus:
		s.status, s.online = ev.text, ev.online
	case evNotice:
		s.notice = ev.text
	case evCleared:
		delete(s.clearing, ev.label)
		if ev.err != nil {
			log.Printf("Clear: %s failed: %v", ev.label, ev.err)
			break
		}
		if s.store.MarkCleared(ev.label) {
			s.sched.RequestRedraw()
		}
	}
	s.renderFooter()
}

// handleKey applies one keystroke and reports whether to quit.
func (s *Session) handleKey(k ui.Key) bool {
	eff := s.ctrl.Handle(s.keymap.Lookup(k))
	if eff.Notice != "" {
		s.notice = eff.Notice
	}
	if eff.Quit {
		return true
	}
	if eff.Manual {
		s.sched.ResetCountdown()
		s.renderTicker.Reset(s.sched.Interval())
	}
	if eff.Render {
		s.render()
	}
	return false
}

// render draws the current view and records it with the scheduler.
func (s *Session) render() {
	now := s.now()
	var err error
	if s.view.Mode == ui.ViewDetail {
		if e, ok := s.store.Latest(); ok {
			err = s.renderer.RenderDetail(ui.BuildDetail(e, s.masker, now), s.footer())
			s.sched.DetailRendered(now)
			s.reportRenderError(err)
			return
		}
		s.view.Mode = ui.ViewTable
		s.notice = "no messages yet"
	}

	snap := ui.BuildSnapshot(s.store.Entries(), ui.SnapshotOptions{
		Sort:         s.view.Sort,
		LabelWidth:   s.view.LabelWidth,
		PayloadWidth: s.view.PayloadWidth,
		Highlight:    s.view.Highlight,
		Masker:       s.masker,
		LastRendered: s.sched.LastRendered(),
		PrevRendered: s.sched.PrevRendered(),
		LastBatch:    s.store.LastBatch(),
		MaxRows:      s.renderer.TableCapacity(),
		Now:          now,
	})
	s.lastShown = len(snap.Rows)
	err = s.renderer.RenderTable(snap, s.view, s.footer())
	s.sched.Rendered(now, s.store.Len())
	s.reportRenderError(err)
}

func (s *Session) renderFooter() {
	s.reportRenderError(s.renderer.RenderFooter(s.footer()))
}

// reportRenderError logs a terminal write failure once per distinct error.
func (s *Session) reportRenderError(err error) {
	if err == nil {
		s.lastErr = ""
		return
	}
	if msg := err.Error(); msg != s.lastErr {
		s.lastErr = msg
		log.Printf("Render: terminal write failed: %v", err)
	}
}

func (s *Session) footer() ui.Footer {
	entries := s.store.Len()
	shown := s.lastShown
	if s.view.Mode == ui.ViewDetail {
		shown = entries
	}
	return ui.Footer{
		Auto:      s.sched.Auto(),
		Interval:  s.sched.Interval(),
		Countdown: s.sched.Countdown(),
		Degraded:  s.sched.Degraded(),
		Entries:   entries,
		Shown:     shown,
		Queue:     s.queue.Len(),
		Dropped:   s.queue.Dropped(),
		Received:  s.accepted.Load(),
		Sort:      s.view.Sort,
		Highlight: s.view.Highlight,
		Masking:   s.masker.Enabled(),
		Status:    s.status,
		Online:    s.online,
		Notice:    s.notice,
		Filters:   s.engine.String(),
		RenderP50: s.metrics.DrawStats().Median,
	}
}

// Metrics exposes render counters for the shutdown summary.
func (s *Session) Metrics() *ui.Metrics { return s.metrics }

// Stored returns the number of distinct labels seen.
func (s *Session) Stored() int { return s.store.Len() }
