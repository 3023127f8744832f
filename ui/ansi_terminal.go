package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	resetANSI       = "\x1b[0m"
	clearScreenANSI = "\x1b[2J\x1b[H"
	clearLineANSI   = "\x1b[2K"
	hideCursorANSI  = "\x1b[?25l"
	showCursorANSI  = "\x1b[?25h"
	altScreenOn     = "\x1b[?1049h"
	altScreenOff    = "\x1b[?1049l"
)

var ansiColorCodes = map[Color]string{
	ColorRed:     "31",
	ColorGreen:   "32",
	ColorYellow:  "33",
	ColorBlue:    "34",
	ColorMagenta: "35",
	ColorCyan:    "36",
	ColorWhite:   "37",
	ColorGray:    "90",
}

// ANSITerminal renders with plain ANSI escape codes into a frame buffer that
// is written to the output in one call per Flush.
type ANSITerminal struct {
	out       io.Writer
	renderBuf bytes.Buffer
	cols      int
	rows      int
	fd        int // -1 when the output is not a terminal
	inFd      int
	oldState  *term.State
	keys      chan Key
	stopOnce  sync.Once
}

// NewANSITerminal writes to out with a fixed size. It does not touch the
// keyboard; used for non-interactive output and tests.
func NewANSITerminal(out io.Writer, cols, rows int) *ANSITerminal {
	if cols <= 0 {
		cols = 120
	}
	if rows <= 0 {
		rows = 40
	}
	return &ANSITerminal{out: out, cols: cols, rows: rows, fd: -1, inFd: -1}
}

// OpenANSITerminal switches in to raw mode, enters the alternate screen on
// out and starts a keyboard reader.
func OpenANSITerminal(in, out *os.File) (*ANSITerminal, error) {
	t := NewANSITerminal(out, 0, 0)
	t.fd = int(out.Fd())
	t.inFd = int(in.Fd())
	state, err := term.MakeRaw(t.inFd)
	if err != nil {
		return nil, fmt.Errorf("enable raw mode: %w", err)
	}
	t.oldState = state
	t.keys = make(chan Key, 16)
	if _, err := io.WriteString(out, altScreenOn+hideCursorANSI+clearScreenANSI); err != nil {
		_ = term.Restore(t.inFd, state)
		return nil, fmt.Errorf("enter alternate screen: %w", err)
	}
	// The reader blocks in read(2) and cannot be interrupted; it simply dies
	// with the process after Restore.
	go readKeys(in, t.keys)
	return t, nil
}

// Keys returns keystrokes read from stdin, or nil when not interactive.
func (t *ANSITerminal) Keys() <-chan Key { return t.keys }

func (t *ANSITerminal) Size() (int, int) {
	if t.fd >= 0 {
		if cols, rows, err := term.GetSize(t.fd); err == nil && cols > 0 && rows > 0 {
			return cols, rows
		}
	}
	return t.cols, t.rows
}

func (t *ANSITerminal) Clear() { t.renderBuf.WriteString(clearScreenANSI) }

func (t *ANSITerminal) ClearLine(row int) {
	t.MoveTo(0, row)
	t.renderBuf.WriteString(clearLineANSI)
}

func (t *ANSITerminal) MoveTo(col, row int) {
	t.renderBuf.WriteString("\x1b[")
	t.renderBuf.WriteString(strconv.Itoa(row + 1))
	t.renderBuf.WriteByte(';')
	t.renderBuf.WriteString(strconv.Itoa(col + 1))
	t.renderBuf.WriteByte('H')
}

func (t *ANSITerminal) SetAttr(a Attr) {
	t.renderBuf.WriteString(resetANSI)
	if a.Bold {
		t.renderBuf.WriteString("\x1b[1m")
	}
	if a.Dim {
		t.renderBuf.WriteString("\x1b[2m")
	}
	if a.Reverse {
		t.renderBuf.WriteString("\x1b[7m")
	}
	if code, ok := ansiColorCodes[a.FG]; ok {
		t.renderBuf.WriteString("\x1b[" + code + "m")
	}
}

func (t *ANSITerminal) WriteString(s string) { t.renderBuf.WriteString(s) }

// Flush writes the pending frame and always ends it with an attribute reset.
func (t *ANSITerminal) Flush() error {
	if t.renderBuf.Len() == 0 {
		return nil
	}
	t.renderBuf.WriteString(resetANSI)
	_, err := t.renderBuf.WriteTo(t.out)
	return err
}

func (t *ANSITerminal) Restore() error {
	var err error
	t.stopOnce.Do(func() {
		t.renderBuf.Reset()
		if t.fd >= 0 {
			_, err = io.WriteString(t.out, resetANSI+showCursorANSI+altScreenOff)
		}
		if t.oldState != nil {
			if rerr := term.Restore(t.inFd, t.oldState); rerr != nil && err == nil {
				err = rerr
			}
		}
	})
	return err
}

// readKeys decodes raw-mode stdin bytes into Keys. Escape sequences (arrow
// keys and friends) collapse into KeyOther.
func readKeys(in io.Reader, keys chan<- Key) {
	buf := make([]byte, 64)
	for {
		n, err := in.Read(buf)
		if err != nil {
			close(keys)
			return
		}
		for _, k := range decodeKeys(buf[:n]) {
			keys <- k
		}
	}
}

func decodeKeys(b []byte) []Key {
	var out []Key
	for len(b) > 0 {
		switch c := b[0]; {
		case c == 0x03:
			out = append(out, Key{Kind: KeyCtrlC})
			b = b[1:]
		case c == 0x1b:
			if len(b) == 1 {
				out = append(out, Key{Kind: KeyEsc})
				return out
			}
			// Swallow the rest of the chunk as one escape sequence.
			out = append(out, Key{Kind: KeyOther})
			return out
		case c == '\r' || c == '\n':
			out = append(out, Key{Kind: KeyEnter})
			b = b[1:]
		case c < 0x20 || c == 0x7f:
			out = append(out, Key{Kind: KeyOther})
			b = b[1:]
		default:
			r, size := utf8.DecodeRune(b)
			out = append(out, Key{Kind: KeyRune, Rune: r})
			b = b[size:]
		}
	}
	return out
}
