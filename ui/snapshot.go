package ui

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"

	"mqttwatch/filter"
	"mqttwatch/store"
)

// DetailPayloadLimit caps the payload shown in the detail view, in runes.
const DetailPayloadLimit = 4096

const renderErrorText = "<render error>"

// SortKey is the table ordering.
type SortKey int

const (
	SortTime SortKey = iota
	SortLabel
)

var sortKeyNames = []string{"time", "label"}

func SortKeyNames() []string { return append([]string(nil), sortKeyNames...) }

// ParseSortKey converts a config/CLI value into a SortKey.
func ParseSortKey(value string) (SortKey, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range sortKeyNames {
		if value == name {
			return SortKey(i), nil
		}
	}
	return SortTime, fmt.Errorf("unknown sort key %q", value)
}

func (k SortKey) String() string {
	if k < 0 || int(k) >= len(sortKeyNames) {
		return "unknown"
	}
	return sortKeyNames[k]
}

// Next cycles through the sort keys.
func (k SortKey) Next() SortKey {
	return SortKey((int(k) + 1) % len(sortKeyNames))
}

// SortEntries orders entries in place. Label order is ascending and
// case-insensitive; time order is oldest update first. Ties fall back to
// first-seen order so the result is deterministic.
func SortEntries(entries []store.Entry, key SortKey) {
	switch key {
	case SortLabel:
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := strings.ToLower(entries[i].Label), strings.ToLower(entries[j].Label)
			if a != b {
				return a < b
			}
			return entries[i].Order < entries[j].Order
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
				return entries[i].UpdatedAt.Before(entries[j].UpdatedAt)
			}
			return entries[i].Order < entries[j].Order
		})
	}
}

// Marker flags a row relative to earlier renders.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerFirst
	MarkerNew
	MarkerPrevStart
	MarkerPrevEnd
)

var markerSymbols = [...]string{" ", "»", "+", "┌", "└"}

func (m Marker) Symbol() string {
	if m < 0 || int(m) >= len(markerSymbols) {
		return " "
	}
	return markerSymbols[m]
}

// markerFor classifies an entry by its first-seen order. Entries at or past
// lastRendered were not on screen last time; [prevRendered, lastRendered) is
// the range that was new in the previous render.
func markerFor(order, lastRendered, prevRendered int) Marker {
	switch {
	case order == 0:
		return MarkerFirst
	case lastRendered > 0 && order >= lastRendered:
		return MarkerNew
	case prevRendered < lastRendered && order == prevRendered:
		return MarkerPrevStart
	case prevRendered < lastRendered && order == lastRendered-1:
		return MarkerPrevEnd
	}
	return MarkerNone
}

// Row is one formatted table line.
type Row struct {
	Label   string
	Marker  Marker
	Bold    bool
	Cells   []Cell // label, payload, flags
	Updated time.Time
}

// Snapshot is a sorted, formatted projection of the store for one render.
type Snapshot struct {
	GeneratedAt time.Time
	Sort        SortKey
	Rows        []Row
	Total       int
	Hidden      int
	CellErrors  int
}

// SnapshotOptions carries the view settings a snapshot is built with.
type SnapshotOptions struct {
	Sort         SortKey
	LabelWidth   int
	PayloadWidth int
	Highlight    bool
	Masker       *filter.Masker
	LastRendered int
	PrevRendered int
	LastBatch    time.Time
	MaxRows      int
	Now          time.Time
}

var (
	highlightAttr = Attr{FG: ColorYellow, Bold: true}
	clearedAttr   = Attr{FG: ColorGray, Dim: true}
	controlAttr   = Attr{FG: ColorMagenta}
	errorAttr     = Attr{FG: ColorRed, Bold: true}
)

// BuildSnapshot sorts entries (in place) and formats each one as
// sanitize → truncate → mask → highlight. A cell that fails to format is
// replaced with a placeholder and counted; the rest of the batch is kept.
//
// When MaxRows is exceeded, time order keeps the newest tail and label order
// keeps the head.
func BuildSnapshot(entries []store.Entry, opts SnapshotOptions) Snapshot {
	SortEntries(entries, opts.Sort)
	snap := Snapshot{GeneratedAt: opts.Now, Sort: opts.Sort, Total: len(entries)}
	visible := entries
	if opts.MaxRows > 0 && len(entries) > opts.MaxRows {
		snap.Hidden = len(entries) - opts.MaxRows
		if opts.Sort == SortTime {
			visible = entries[snap.Hidden:]
		} else {
			visible = entries[:opts.MaxRows]
		}
	}

	snap.Rows = make([]Row, 0, len(visible))
	for i := range visible {
		e := &visible[i]
		row := Row{
			Label:   e.Label,
			Marker:  markerFor(e.Order, opts.LastRendered, opts.PrevRendered),
			Bold:    !opts.LastBatch.IsZero() && e.UpdatedAt.Equal(opts.LastBatch),
			Updated: e.UpdatedAt,
		}
		base := Attr{Bold: row.Bold}
		if e.Cleared {
			base = clearedAttr
		}
		label := safeCell(&snap.CellErrors, func() Cell { return labelCell(e, opts, base) })
		payload := safeCell(&snap.CellErrors, func() Cell { return payloadCell(e, opts, base) })
		row.Cells = []Cell{label, payload, PlainCell(flags(e), base)}
		snap.Rows = append(snap.Rows, row)
	}
	return snap
}

func safeCell(errs *int, build func() Cell) (c Cell) {
	defer func() {
		if r := recover(); r != nil {
			*errs++
			c = PlainCell(renderErrorText, errorAttr)
		}
	}()
	return build()
}

// previewRunes bounds how much of a stored value a table cell looks at.
// Escape sequences stripped by SanitizeCell eat into the budget, hence the
// slack over the column width.
func previewRunes(width int) int {
	return max(width*4, 64)
}

// cellPreview returns the sanitized leading part of s used for a cell of the
// given width. Work is proportional to the width, not to len(s). A cut value
// keeps its ellipsis even when sanitizing shrank the prefix below width.
func cellPreview(s string, width int) string {
	limit := previewRunes(width)
	cut := false
	n := 0
	for i := range s {
		if n == limit {
			s, cut = s[:i], true
			break
		}
		n++
	}
	text := SanitizeCell(s)
	if cut {
		text += ellipsis
	}
	return TruncateText(text, width)
}

func labelCell(e *store.Entry, opts SnapshotOptions, base Attr) Cell {
	text := cellPreview(e.Label, opts.LabelWidth)
	if opts.Highlight && e.Match != nil && e.Match.LabelMatched {
		return highlightCell(text, e.Match.MatchedPattern, base)
	}
	return PlainCell(text, base)
}

func payloadCell(e *store.Entry, opts SnapshotOptions, base Attr) Cell {
	text := cellPreview(e.Payload, opts.PayloadWidth)
	text = opts.Masker.Mask(text)
	if e.ControlCodes && !e.Cleared {
		base.FG = controlAttr.FG
	}
	if opts.Highlight && e.Match != nil && e.Match.PayloadMatched {
		return highlightCell(text, e.Match.MatchedPattern, base)
	}
	return PlainCell(text, base)
}

func flags(e *store.Entry) string {
	var b strings.Builder
	if e.Retained {
		b.WriteByte('R')
	}
	if e.Cleared {
		b.WriteByte('C')
	}
	if e.ControlCodes {
		b.WriteByte('E')
	}
	return b.String()
}

// highlightCell emphasises every case-insensitive occurrence of the literal
// fragments of pattern, i.e. the pattern split on '*'.
func highlightCell(text, pattern string, base Attr) Cell {
	runes := []rune(text)
	hit := make([]bool, len(runes))
	for _, frag := range strings.Split(pattern, "*") {
		needle := []rune(frag)
		if len(needle) == 0 {
			continue
		}
		for i := 0; i+len(needle) <= len(runes); i++ {
			if foldHasAt(runes, i, needle) {
				for j := range needle {
					hit[i+j] = true
				}
			}
		}
	}

	var cell Cell
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && hit[i] == hit[start] {
			continue
		}
		attr := base
		if hit[start] {
			attr = highlightAttr
		}
		cell = append(cell, Span{Text: string(runes[start:i]), Attr: attr})
		start = i
	}
	if len(cell) == 0 {
		return PlainCell("", base)
	}
	return cell
}

func foldHasAt(haystack []rune, at int, needle []rune) bool {
	for j, r := range needle {
		if unicode.ToLower(haystack[at+j]) != unicode.ToLower(r) {
			return false
		}
	}
	return true
}

// Detail is the single-entry view of the most recently updated label.
type Detail struct {
	Label        string
	Payload      string
	Truncated    bool
	JSON         bool
	Retained     bool
	Cleared      bool
	ControlCodes bool
	Size         string
	Updated      string
}

// prettyJSON keeps numbers verbatim and map keys sorted.
var prettyJSON = jsoniter.Config{
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// BuildDetail formats e for the detail view. JSON objects and arrays are
// pretty-printed before the length cap and masking are applied.
func BuildDetail(e store.Entry, masker *filter.Masker, now time.Time) Detail {
	d := Detail{
		Label:        e.Label,
		Retained:     e.Retained,
		Cleared:      e.Cleared,
		ControlCodes: e.ControlCodes,
		Size:         humanize.Bytes(uint64(e.Size)),
		Updated:      humanize.RelTime(e.UpdatedAt, now, "ago", "from now"),
	}
	payload := e.Payload
	if pretty, ok := prettyPrint(payload); ok {
		payload = pretty
		d.JSON = true
	}
	payload = escapeSequence.ReplaceAllString(payload, "")
	if runes := []rune(payload); len(runes) > DetailPayloadLimit {
		payload = string(runes[:DetailPayloadLimit])
		d.Truncated = true
	}
	d.Payload = masker.Mask(payload)
	return d
}

func prettyPrint(payload string) (string, bool) {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return "", false
	}
	if !prettyJSON.Valid(trimmed) {
		return "", false
	}
	var v interface{}
	if err := prettyJSON.Unmarshal(trimmed, &v); err != nil {
		return "", false
	}
	out, err := prettyJSON.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", false
	}
	return string(out), true
}
