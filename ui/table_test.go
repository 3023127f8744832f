package ui

import "testing"

func TestFormatRowPadsAndTruncates(t *testing.T) {
	cols := []Column{{Width: 5}, {Width: 4}}
	spans := FormatRow(cols, []Cell{PlainCell("abc", Attr{}), PlainCell("toolong", Attr{Bold: true})})
	got := Cell(spans).Text()
	if got != "abc   too…" {
		t.Fatalf("row = %q", got)
	}
}

func TestFitCellKeepsSpanAttributes(t *testing.T) {
	cell := Cell{{Text: "ab", Attr: highlightAttr}, {Text: "cdef"}}
	out := fitCell(cell, 4)
	if out.Text() != "abc…" {
		t.Fatalf("text = %q", out.Text())
	}
	if out[0].Attr != highlightAttr {
		t.Fatalf("first span lost its attribute: %+v", out[0])
	}
}

func TestFitCellWideRunes(t *testing.T) {
	out := fitCell(PlainCell("日本語", Attr{}), 4)
	if out.Text() != "日… " {
		t.Fatalf("text = %q", out.Text())
	}
}

func TestSanitizeCell(t *testing.T) {
	cases := map[string]string{
		"plain":                     "plain",
		"a\tb\nc\rd":                "a b c d",
		"\x1b[1;31mbold red\x1b[0m": "bold red",
		"\x1b]0;title\x07after":     "after",
		"bell\x07 del\x7f":          "bell del",
		"":                          "",
	}
	for in, want := range cases {
		if got := SanitizeCell(in); got != want {
			t.Fatalf("SanitizeCell(%q) = %q, want %q", in, got, want)
		}
	}
}
