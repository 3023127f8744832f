package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mqttwatch/buffer"
	"mqttwatch/filter"
	"mqttwatch/ui"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *fakePublisher) Publish(label string, payload []byte, retained bool, done func(error)) {
	p.mu.Lock()
	p.calls = append(p.calls, fmt.Sprintf("%s|%d|%v", label, len(payload), retained))
	p.mu.Unlock()
	done(p.err)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Engine == nil {
		opts.Engine = filter.NewEngine(filter.Options{})
	}
	if opts.Queue == nil {
		opts.Queue = buffer.NewQueue(0, 0)
	}
	if opts.Terminal == nil {
		opts.Terminal = ui.NewANSITerminal(&bytes.Buffer{}, 120, 40)
	}
	var mu sync.Mutex
	clock := time.Unix(1700000000, 0)
	opts.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return New(opts)
}

func TestForcedRenderBelowTenLabelsInManual(t *testing.T) {
	s := newTestSession(t, Options{})
	s.sched.SetAuto(false)

	for i := 0; i < ui.FastFeedbackLabels-1; i++ {
		s.Deliver(fmt.Sprintf("room/%d", i), []byte("on"), false)
		s.drain()
		if got := s.metrics.Renders(); got != uint64(i+1) {
			t.Fatalf("after label %d renders = %d, want %d", i, got, i+1)
		}
	}
	s.Deliver("room/9", []byte("on"), false)
	s.drain()
	if got := s.metrics.Renders(); got != ui.FastFeedbackLabels-1 {
		t.Fatalf("tenth label forced a render: %d", got)
	}
	if !s.sched.Pending() {
		t.Fatalf("expected pending redraw after tenth label")
	}
	if s.sched.Tick() {
		t.Fatalf("MANUAL tick must not render")
	}
}

func TestDuplicateMessageDoesNotRender(t *testing.T) {
	s := newTestSession(t, Options{})
	s.Deliver("a", []byte("1"), true)
	s.drain()
	before := s.metrics.Renders()
	s.Deliver("a", []byte("1"), true)
	s.drain()
	if s.metrics.Renders() != before || s.sched.Pending() {
		t.Fatalf("duplicate triggered redraw: renders %d -> %d", before, s.metrics.Renders())
	}
}

func TestDrainTakesOneBatchAndRearms(t *testing.T) {
	s := newTestSession(t, Options{})
	for i := 0; i < 25; i++ {
		s.Deliver(fmt.Sprintf("t/%02d", i), []byte("x"), false)
	}
	s.drain()
	if s.store.Len() != DefaultDrainBatch || s.queue.Len() != 15 {
		t.Fatalf("stored=%d queued=%d", s.store.Len(), s.queue.Len())
	}
	if !s.drainArmed {
		t.Fatalf("drain timer not re-armed")
	}
	select {
	case <-s.drainTimer.C:
	case <-time.After(time.Second):
		t.Fatalf("drain timer never fired")
	}
}

func TestIntervalDegradesPastThreshold(t *testing.T) {
	s := newTestSession(t, Options{})
	for i := 0; i <= ui.DegradeThreshold; i++ {
		s.Deliver(fmt.Sprintf("n/%d", i), []byte("1"), false)
		if i%DefaultDrainBatch == DefaultDrainBatch-1 {
			s.drain()
		}
	}
	for s.queue.Len() > 0 {
		s.drain()
	}
	if s.store.Len() != ui.DegradeThreshold+1 {
		t.Fatalf("stored = %d", s.store.Len())
	}
	if s.sched.Interval() != ui.DegradedInterval {
		t.Fatalf("interval = %v", s.sched.Interval())
	}
}

func TestFilterRunsBeforeQueue(t *testing.T) {
	s := newTestSession(t, Options{Engine: filter.NewEngine(filter.Options{
		Exclude: []string{"$SYS/*"},
		Include: []string{"temp"},
	})})
	s.Deliver("$SYS/broker/uptime", []byte("temp"), false)
	s.Deliver("room/1", []byte("on"), false)
	s.Deliver("room/temp", []byte("21"), false)
	if s.queue.Len() != 1 {
		t.Fatalf("queued = %d, want 1", s.queue.Len())
	}
	s.drain()
	e, ok := s.store.Get("room/temp")
	if !ok || e.Match == nil || e.Match.MatchedPattern != "temp" {
		t.Fatalf("entry = %+v ok=%v", e, ok)
	}
}

func TestSortKeyOnlyChangesPresentation(t *testing.T) {
	s := newTestSession(t, Options{})
	s.Deliver("b", []byte("1"), false)
	s.Deliver("A", []byte("2"), false)
	s.drain()
	before, _ := s.store.Get("b")

	if s.handleKey(ui.Key{Kind: ui.KeyRune, Rune: 's'}) {
		t.Fatalf("sort key quit the session")
	}
	if s.view.Sort != ui.SortLabel {
		t.Fatalf("sort = %v", s.view.Sort)
	}
	after, _ := s.store.Get("b")
	if s.store.Len() != 2 || before != after {
		t.Fatalf("store changed: %+v -> %+v", before, after)
	}
}

func TestRenderKeyResetsCountdown(t *testing.T) {
	s := newTestSession(t, Options{})
	defer s.renderTicker.Stop()
	s.sched.NoteEntryCount(ui.DegradeThreshold + 1)
	full := int(ui.DegradedInterval / time.Second)
	for i := 0; i < 3; i++ {
		s.sched.CountdownTick()
	}
	if got := s.sched.Countdown(); got != full-3 {
		t.Fatalf("countdown after ticks = %d, want %d", got, full-3)
	}

	before := s.metrics.Renders()
	if s.handleKey(ui.Key{Kind: ui.KeyRune, Rune: 'r'}) {
		t.Fatalf("render key quit the session")
	}
	if got := s.sched.Countdown(); got != full {
		t.Fatalf("countdown after manual render = %d, want %d", got, full)
	}
	if got := s.metrics.Renders(); got != before+1 {
		t.Fatalf("renders = %d, want %d", got, before+1)
	}
}

func TestDetailRenderKeepsNewMarkers(t *testing.T) {
	s := newTestSession(t, Options{})
	s.Deliver("a", []byte("1"), false)
	s.drain()
	if got := s.sched.LastRendered(); got != 1 {
		t.Fatalf("last rendered = %d, want 1", got)
	}

	s.handleKey(ui.Key{Kind: ui.KeyRune, Rune: 'd'})
	s.Deliver("b", []byte("2"), false)
	s.drain()
	if got := s.sched.LastRendered(); got != 1 {
		t.Fatalf("detail render moved last rendered to %d", got)
	}

	s.handleKey(ui.Key{Kind: ui.KeyEsc})
	if got := s.sched.LastRendered(); got != 2 {
		t.Fatalf("table render left last rendered at %d, want 2", got)
	}
	if prev := s.sched.PrevRendered(); prev != 1 {
		t.Fatalf("prev rendered = %d, want 1", prev)
	}
}

func TestClearRetainedMarksEntryAndIgnoresEcho(t *testing.T) {
	pub := &fakePublisher{}
	s := newTestSession(t, Options{Publisher: pub, ClearRetained: true})

	s.Deliver("cfg/a", []byte("v1"), true)
	s.drain()
	if pub.count() != 1 {
		t.Fatalf("publishes = %d", pub.count())
	}
	s.handleEvent(<-s.events)
	if e, _ := s.store.Get("cfg/a"); !e.Cleared || e.Payload != "v1" {
		t.Fatalf("entry after ack = %+v", e)
	}

	s.Deliver("cfg/a", nil, false)
	s.Deliver("cfg/a", []byte("v1"), true)
	s.drain()
	e, _ := s.store.Get("cfg/a")
	if e.Payload != "v1" || !e.Cleared {
		t.Fatalf("echo or duplicate changed entry: %+v", e)
	}
	if pub.count() != 1 {
		t.Fatalf("cleared label published again: %d", pub.count())
	}
}

func TestClearFailureLeavesEntry(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not authorized")}
	s := newTestSession(t, Options{Publisher: pub, ClearRetained: true})
	s.Deliver("cfg/b", []byte("v"), true)
	s.drain()
	s.handleEvent(<-s.events)
	if e, _ := s.store.Get("cfg/b"); e.Cleared {
		t.Fatalf("failed clear marked entry cleared")
	}
	if len(s.clearing) != 0 {
		t.Fatalf("in-flight clear not released")
	}
}

func TestRunStopsOnQuitKey(t *testing.T) {
	keys := make(chan ui.Key, 1)
	s := newTestSession(t, Options{Keys: keys})
	keys <- ui.Key{Kind: ui.KeyRune, Rune: 'q'}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on quit key")
	}
}

func TestRunReturnsFatalError(t *testing.T) {
	s := newTestSession(t, Options{})
	want := errors.New("subscription lost")
	s.Fail(want)
	if err := s.Run(context.Background()); !errors.Is(err, want) {
		t.Fatalf("run err = %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestSession(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	s.Deliver("x", []byte("1"), false)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}
