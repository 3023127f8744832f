// Package filter decides, for every incoming message, whether it reaches the
// state store and how its payload is redacted for display.
//
// Filter Logic:
//   - Exclude patterns are checked against the label first and always win
//   - Retained-only mode then drops live (non-retained) deliveries
//   - With no include patterns every remaining message is accepted
//   - Otherwise the first include pattern (in configured order) that hits the
//     label and/or payload accepts the message and is recorded in the verdict
//
// Pattern syntax is shared by exclude, include and highlight logic; see
// compilePattern. Masking lives in mask.go and is applied at render time.
package filter

import (
	"fmt"
	"strings"

	"mqttwatch/message"
)

// IncludeMode selects which side of a message include patterns inspect.
type IncludeMode int

const (
	IncludeLabel IncludeMode = iota
	IncludePayload
	IncludeBoth
)

var includeModeNames = []string{"label", "payload", "both"}

// IncludeModeNames lists the accepted spellings, in enum order.
func IncludeModeNames() []string {
	return append([]string(nil), includeModeNames...)
}

// ParseIncludeMode converts a config/CLI value into an IncludeMode.
func ParseIncludeMode(value string) (IncludeMode, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range includeModeNames {
		if value == name {
			return IncludeMode(i), nil
		}
	}
	return IncludeLabel, fmt.Errorf("unknown include mode %q", value)
}

func (m IncludeMode) String() string {
	if m < 0 || int(m) >= len(includeModeNames) {
		return "unknown"
	}
	return includeModeNames[m]
}

func (m IncludeMode) checksLabel() bool   { return m == IncludeLabel || m == IncludeBoth }
func (m IncludeMode) checksPayload() bool { return m == IncludePayload || m == IncludeBoth }

// Options carries the static pattern configuration of an Engine.
type Options struct {
	Exclude      []string
	Include      []string
	IncludeMode  IncludeMode
	RetainedOnly bool
}

// Engine evaluates messages against a fixed configuration. It holds no
// mutable state, so the transport goroutine may call Evaluate directly.
type Engine struct {
	exclude      *Patterns
	include      *Patterns
	mode         IncludeMode
	retainedOnly bool
}

// NewEngine compiles the exclude and include pattern sets once.
func NewEngine(opts Options) *Engine {
	return &Engine{
		exclude:      NewPatterns(opts.Exclude),
		include:      NewPatterns(opts.Include),
		mode:         opts.IncludeMode,
		retainedOnly: opts.RetainedOnly,
	}
}

// Evaluate returns the verdict for one message and whether it is accepted.
//
// Examples:
//
//	exclude=["temp/*"], include=["temp/high"]
//	Evaluate("temp/high", ...) → rejected (exclude wins)
//	Evaluate("room/1", ...)    → rejected (no include hit)
func (e *Engine) Evaluate(label string, payload []byte, retained bool) (message.Verdict, bool) {
	if e.exclude.MatchAny(label) {
		return message.Verdict{}, false
	}
	if e.retainedOnly && !retained {
		return message.Verdict{}, false
	}
	if e.include.Len() == 0 {
		return message.Verdict{Included: true}, true
	}

	if e.mode == IncludeLabel {
		raw, ok := e.include.FirstMatch(label)
		if !ok {
			return message.Verdict{}, false
		}
		return message.Verdict{Included: true, LabelMatched: true, MatchedPattern: raw}, true
	}

	checkLabel := e.mode.checksLabel()
	checkPayload := e.mode.checksPayload()
	var body string
	if checkPayload {
		body = string(payload)
	}
	for _, pat := range e.include.list {
		labelHit := checkLabel && pat.match(label)
		payloadHit := checkPayload && pat.match(body)
		if labelHit || payloadHit {
			return message.Verdict{
				Included:       true,
				LabelMatched:   labelHit,
				PayloadMatched: payloadHit,
				MatchedPattern: pat.raw,
			}, true
		}
	}
	return message.Verdict{}, false
}

// HasInclude reports whether include patterns narrow the stream.
func (e *Engine) HasInclude() bool { return e.include.Len() > 0 }

// InvalidPatterns lists exclude/include wildcards that can never match.
func (e *Engine) InvalidPatterns() []string {
	return append(e.exclude.Invalid(), e.include.Invalid()...)
}

// String returns a one-line description for the footer and startup log.
func (e *Engine) String() string {
	var parts []string
	if e.exclude.Len() > 0 {
		parts = append(parts, "Exclude: "+strings.Join(e.exclude.Raw(), ", "))
	}
	if e.include.Len() > 0 {
		parts = append(parts, fmt.Sprintf("Include(%s): %s", e.mode, strings.Join(e.include.Raw(), ", ")))
	}
	if e.retainedOnly {
		parts = append(parts, "Retained only")
	}
	if len(parts) == 0 {
		return "No active filters"
	}
	return strings.Join(parts, " | ")
}
