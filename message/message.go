// Package message defines the unit that flows from the broker through the
// filter stage, the ingest queue and into the state store.
package message

import "time"

// Verdict is the filter decision for one message. It rides along with the
// message so the render stage can highlight without re-running the matcher.
type Verdict struct {
	Included       bool
	LabelMatched   bool
	PayloadMatched bool
	MatchedPattern string // empty when no include pattern was involved
}

// Message is a single broker delivery. It is immutable once queued.
type Message struct {
	Label       string
	Payload     []byte
	Retained    bool
	ArrivalTime time.Time
	Verdict     *Verdict // nil when accepted without include patterns
}
