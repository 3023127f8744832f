package ui

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

const ellipsis = "…"

// Span is a run of text drawn with one attribute.
type Span struct {
	Text string
	Attr Attr
}

// Cell is the content of one table cell.
type Cell []Span

// Text returns the cell content without attributes.
func (c Cell) Text() string {
	var b strings.Builder
	for _, s := range c {
		b.WriteString(s.Text)
	}
	return b.String()
}

// PlainCell builds a single-span cell.
func PlainCell(text string, a Attr) Cell { return Cell{{Text: text, Attr: a}} }

// Column describes a fixed-width table column.
type Column struct {
	Title string
	Width int
}

// FormatRow lays cells into their columns, one space apart. Each cell is
// truncated or padded to exactly its column width (in display cells).
func FormatRow(cols []Column, cells []Cell) []Span {
	out := make([]Span, 0, len(cols)*2)
	for i, col := range cols {
		if i > 0 {
			out = append(out, Span{Text: " "})
		}
		var cell Cell
		if i < len(cells) {
			cell = cells[i]
		}
		out = append(out, fitCell(cell, col.Width)...)
	}
	return out
}

// fitCell truncates cell to width display cells, appending an ellipsis when
// content was cut, and pads the remainder with spaces.
func fitCell(cell Cell, width int) Cell {
	if width <= 0 {
		return nil
	}
	total := 0
	for _, s := range cell {
		total += runewidth.StringWidth(s.Text)
	}
	out := make(Cell, 0, len(cell)+1)
	if total <= width {
		out = append(out, cell...)
		if pad := width - total; pad > 0 {
			out = append(out, Span{Text: strings.Repeat(" ", pad)})
		}
		return out
	}

	budget := width - runewidth.StringWidth(ellipsis)
	used := 0
	var last Attr
	for _, s := range cell {
		if used >= budget {
			break
		}
		w := runewidth.StringWidth(s.Text)
		if used+w <= budget {
			out = append(out, s)
			used += w
			last = s.Attr
			continue
		}
		part := runewidth.Truncate(s.Text, budget-used, "")
		out = append(out, Span{Text: part, Attr: s.Attr})
		used += runewidth.StringWidth(part)
		last = s.Attr
		break
	}
	out = append(out, Span{Text: ellipsis, Attr: last})
	used += runewidth.StringWidth(ellipsis)
	if pad := width - used; pad > 0 {
		out = append(out, Span{Text: strings.Repeat(" ", pad)})
	}
	return out
}

// TruncateText cuts s to width display cells with a trailing ellipsis.
func TruncateText(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, ellipsis)
}

var escapeSequence = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b[@-Z\\-_]|\x{009b}[0-?]*[ -/]*[@-~]`)

// SanitizeCell strips escape sequences and turns the remaining control
// characters into spaces so a payload occupies exactly one table line.
func SanitizeCell(s string) string {
	if s == "" {
		return s
	}
	s = escapeSequence.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0):
			return -1
		}
		return r
	}, s)
}
