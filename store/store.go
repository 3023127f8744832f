// Package store keeps the latest message per label. It is the single mutable
// source of truth for the view and is owned by the session goroutine; it does
// no locking of its own.
package store

import (
	"bytes"
	"time"

	"github.com/zeebo/xxh3"

	"mqttwatch/message"
)

// resetSGR is appended to payloads carrying escape sequences so their styling
// cannot bleed into whatever is drawn after them.
const resetSGR = "\x1b[0m"

// Entry is the stored state for one label.
type Entry struct {
	Label        string
	Payload      string
	Retained     bool
	Order        int // first-seen order, stable for the life of the entry
	UpdatedAt    time.Time
	Cleared      bool
	ControlCodes bool
	Match        *message.Verdict
	Fingerprint  uint64 // xxh3 of the payload as received; with Size it decides no-op updates
	Size         int    // payload size as received, before any terminator
}

// Store maps labels to entries. Entries are never removed during a run.
type Store struct {
	entries   map[string]*Entry
	lastBatch time.Time
	latest    *Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// ApplyBatch upserts messages in arrival order. Every entry written by the
// same call shares the batch timestamp now. Messages identical to the stored
// state (same payload and retained flag) are skipped. The return value tells
// the caller whether a redraw is warranted.
func (s *Store) ApplyBatch(msgs []message.Message, now time.Time) bool {
	changed := false
	for i := range msgs {
		if s.apply(&msgs[i], now) {
			changed = true
		}
	}
	if changed {
		s.lastBatch = now
	}
	return changed
}

func (s *Store) apply(msg *message.Message, now time.Time) bool {
	fp := xxh3.Hash(msg.Payload)
	existing, ok := s.entries[msg.Label]
	if ok && existing.Retained == msg.Retained && existing.Fingerprint == fp &&
		existing.Size == len(msg.Payload) {
		return false
	}

	payload, ctrl := normalizePayload(msg.Payload)
	if !ok {
		existing = &Entry{Label: msg.Label, Order: len(s.entries)}
		s.entries[msg.Label] = existing
	}
	existing.Payload = payload
	existing.Retained = msg.Retained
	existing.Cleared = false
	existing.UpdatedAt = now
	existing.ControlCodes = ctrl
	existing.Match = msg.Verdict
	existing.Fingerprint = fp
	existing.Size = len(msg.Payload)
	s.latest = existing
	return true
}

// normalizePayload detects control sequences and terminates styled payloads.
func normalizePayload(raw []byte) (string, bool) {
	if !HasControlCodes(raw) {
		return string(raw), false
	}
	if bytes.HasSuffix(raw, []byte(resetSGR)) {
		return string(raw), true
	}
	return string(raw) + resetSGR, true
}

// HasControlCodes reports whether b contains ESC, CSI or other C0/C1 control
// characters other than tab, newline and carriage return.
func HasControlCodes(b []byte) bool {
	for _, c := range b {
		switch {
		case c == '\t' || c == '\n' || c == '\r':
		case c < 0x20 || c == 0x7f:
			return true
		}
	}
	return bytes.Contains(b, []byte("\u009b"))
}

// MarkCleared flags the entry for label as acknowledged-cleared. It reports
// whether an entry existed. A later payload change resets the flag.
func (s *Store) MarkCleared(label string) bool {
	e, ok := s.entries[label]
	if !ok {
		return false
	}
	e.Cleared = true
	return true
}

// Has reports whether label has been stored.
func (s *Store) Has(label string) bool {
	_, ok := s.entries[label]
	return ok
}

// Get returns a copy of the entry for label.
func (s *Store) Get(label string) (Entry, bool) {
	e, ok := s.entries[label]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of distinct labels seen so far.
func (s *Store) Len() int { return len(s.entries) }

// LastBatch returns the timestamp shared by the most recent changing batch.
func (s *Store) LastBatch() time.Time { return s.lastBatch }

// Entries returns copies of all entries in unspecified order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}

// Latest returns the most recently written entry.
func (s *Store) Latest() (Entry, bool) {
	if s.latest == nil {
		return Entry{}, false
	}
	return *s.latest, true
}
