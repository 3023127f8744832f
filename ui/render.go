package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	headerRows = 1
	footerRows = 2
	markerCol  = 1
	flagsCol   = 3
	timeCol    = 8
)

var (
	headerAttr = Attr{Reverse: true, Bold: true}
	footerAttr = Attr{FG: ColorCyan}
	statusAttr = Attr{FG: ColorGreen}
	noticeAttr = Attr{FG: ColorYellow}
	offAttr    = Attr{FG: ColorRed, Bold: true}
)

// Footer is the status summary drawn under the table and the detail view.
type Footer struct {
	Auto      bool
	Interval  time.Duration
	Countdown int
	Degraded  bool
	Entries   int
	Shown     int
	Queue     int
	Dropped   uint64
	Received  uint64
	Sort      SortKey
	Highlight bool
	Masking   bool
	Status    string
	Online    bool
	Notice    string
	Filters   string
	RenderP50 time.Duration
}

// Renderer draws snapshots onto a Terminal. Each Render call is a full frame
// followed by one Flush.
type Renderer struct {
	term    Terminal
	metrics *Metrics
}

func NewRenderer(term Terminal, metrics *Metrics) *Renderer {
	return &Renderer{term: term, metrics: metrics}
}

// TableCapacity is how many entry rows fit under the header and above the
// footer at the current terminal size.
func (r *Renderer) TableCapacity() int {
	_, rows := r.term.Size()
	return max(rows-headerRows-footerRows, 1)
}

// RenderTable draws the header, snapshot rows and footer.
func (r *Renderer) RenderTable(snap Snapshot, view *ViewState, f Footer) error {
	start := time.Now()
	cols, _ := r.term.Size()
	columns := []Column{
		{Title: "", Width: markerCol},
		{Title: "Label", Width: view.LabelWidth},
		{Title: "Payload", Width: view.PayloadWidth},
		{Title: "Flg", Width: flagsCol},
		{Title: "Updated", Width: timeCol},
	}

	r.term.Clear()
	header := make([]Cell, len(columns))
	for i, c := range columns {
		header[i] = PlainCell(c.Title, headerAttr)
	}
	r.drawLine(0, cols, FormatRow(columns, header))

	for i, row := range snap.Rows {
		markAttr := Attr{FG: ColorCyan, Bold: row.Bold}
		cells := make([]Cell, 0, len(columns))
		cells = append(cells, PlainCell(row.Marker.Symbol(), markAttr))
		cells = append(cells, row.Cells...)
		cells = append(cells, PlainCell(row.Updated.Format("15:04:05"), Attr{FG: ColorGray}))
		r.drawLine(headerRows+i, cols, FormatRow(columns, cells))
	}
	for i := 0; i < snap.CellErrors; i++ {
		r.metrics.CellError()
	}
	f.Shown = len(snap.Rows)
	f.Entries = snap.Total
	r.drawFooter(f)
	err := r.term.Flush()
	r.metrics.ObserveRender(time.Since(start))
	return err
}

// RenderDetail draws the detail view for one entry.
func (r *Renderer) RenderDetail(d Detail, f Footer) error {
	start := time.Now()
	cols, rows := r.term.Size()
	r.term.Clear()

	flags := []string{"size " + d.Size, "updated " + d.Updated}
	if d.Retained {
		flags = append(flags, "retained")
	}
	if d.Cleared {
		flags = append(flags, "cleared")
	}
	if d.ControlCodes {
		flags = append(flags, "escape codes stripped")
	}
	if d.JSON {
		flags = append(flags, "json")
	}
	r.drawLine(0, cols, []Span{{Text: d.Label, Attr: headerAttr}})
	r.drawLine(1, cols, []Span{{Text: strings.Join(flags, "  "), Attr: Attr{FG: ColorGray}}})

	limit := max(rows-footerRows, 3)
	lines := strings.Split(d.Payload, "\n")
	line := 3
	for _, text := range lines {
		if line >= limit {
			r.drawLine(line-1, cols, []Span{{Text: "…", Attr: Attr{FG: ColorGray}}})
			break
		}
		r.drawLine(line, cols, []Span{{Text: SanitizeCell(text)}})
		line++
	}
	if d.Truncated && line < limit {
		r.drawLine(line, cols, []Span{{Text: fmt.Sprintf("… truncated at %d characters", DetailPayloadLimit), Attr: Attr{FG: ColorGray}}})
	}
	r.drawFooter(f)
	err := r.term.Flush()
	r.metrics.ObserveRender(time.Since(start))
	return err
}

// RenderFooter redraws only the footer, e.g. for the countdown.
func (r *Renderer) RenderFooter(f Footer) error {
	r.drawFooter(f)
	return r.term.Flush()
}

func (r *Renderer) drawFooter(f Footer) {
	cols, rows := r.term.Size()
	if rows < footerRows {
		return
	}
	first, second := rows-2, rows-1
	r.term.ClearLine(first)
	r.term.ClearLine(second)
	r.drawLine(first, cols, footerSummary(f))
	r.drawLine(second, cols, footerStatus(f))
}

func footerSummary(f Footer) []Span {
	var b strings.Builder
	if f.Auto {
		fmt.Fprintf(&b, "AUTO %s next %ds", f.Interval, f.Countdown)
	} else {
		b.WriteString("MANUAL")
	}
	if f.Degraded {
		b.WriteString(" (slowed)")
	}
	fmt.Fprintf(&b, " | %s labels", humanize.Comma(int64(f.Entries)))
	if f.Shown < f.Entries {
		fmt.Fprintf(&b, " (showing %d of %d)", f.Shown, f.Entries)
	}
	fmt.Fprintf(&b, " | rx %s | queue %d | dropped %s | sort %s",
		humanize.Comma(int64(f.Received)), f.Queue, humanize.Comma(int64(f.Dropped)), f.Sort)
	fmt.Fprintf(&b, " | mask %s | hl %s", onOff(f.Masking), onOff(f.Highlight))
	if f.RenderP50 > 0 {
		fmt.Fprintf(&b, " | draw %s", f.RenderP50.Round(10*time.Microsecond))
	}
	return []Span{{Text: b.String(), Attr: footerAttr}}
}

func footerStatus(f Footer) []Span {
	status := statusAttr
	if !f.Online {
		status = offAttr
	}
	spans := []Span{{Text: f.Status, Attr: status}}
	if f.Filters != "" {
		spans = append(spans, Span{Text: " | " + f.Filters})
	}
	if f.Notice != "" {
		spans = append(spans, Span{Text: " | " + f.Notice, Attr: noticeAttr})
	} else {
		spans = append(spans, Span{Text: " | " + KeyHelp, Attr: Attr{FG: ColorGray}})
	}
	return spans
}

// drawLine writes spans on row, clipped one short of the terminal width so
// the last column never triggers an autowrap scroll.
func (r *Renderer) drawLine(row, cols int, spans []Span) {
	r.term.MoveTo(0, row)
	for _, s := range fitCell(Cell(spans), max(cols-1, 1)) {
		r.term.SetAttr(s.Attr)
		r.term.WriteString(s.Text)
	}
}
