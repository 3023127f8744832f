package ui

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

var tcellColors = map[Color]tcell.Color{
	ColorRed:     tcell.ColorRed,
	ColorGreen:   tcell.ColorGreen,
	ColorYellow:  tcell.ColorYellow,
	ColorBlue:    tcell.ColorBlue,
	ColorMagenta: tcell.ColorFuchsia,
	ColorCyan:    tcell.ColorAqua,
	ColorWhite:   tcell.ColorWhite,
	ColorGray:    tcell.ColorGray,
}

// TcellTerminal draws onto a tcell.Screen. The screen double-buffers, so
// Flush only pushes cells that changed since the previous frame.
type TcellTerminal struct {
	screen   tcell.Screen
	col      int
	row      int
	style    tcell.Style
	keys     chan Key
	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// OpenTcellTerminal initializes the process terminal through tcell.
func OpenTcellTerminal() (*TcellTerminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	return NewTcellTerminal(screen)
}

// NewTcellTerminal takes ownership of screen, initializes it and starts the
// event poller. Tests pass a tcell simulation screen.
func NewTcellTerminal(screen tcell.Screen) (*TcellTerminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	screen.HideCursor()
	screen.DisableMouse()
	screen.Clear()
	t := &TcellTerminal{
		screen: screen,
		style:  tcell.StyleDefault,
		keys:   make(chan Key, 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.pollEvents()
	return t, nil
}

func (t *TcellTerminal) Keys() <-chan Key { return t.keys }

func (t *TcellTerminal) Size() (int, int) { return t.screen.Size() }

func (t *TcellTerminal) Clear() {
	t.screen.Clear()
	t.col, t.row = 0, 0
}

func (t *TcellTerminal) ClearLine(row int) {
	cols, _ := t.screen.Size()
	for x := 0; x < cols; x++ {
		t.screen.SetContent(x, row, ' ', nil, tcell.StyleDefault)
	}
	t.col, t.row = 0, row
}

func (t *TcellTerminal) MoveTo(col, row int) { t.col, t.row = col, row }

func (t *TcellTerminal) SetAttr(a Attr) { t.style = tcellStyle(a) }

func (t *TcellTerminal) WriteString(s string) {
	cols, _ := t.screen.Size()
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if t.col+w > cols {
			return
		}
		t.screen.SetContent(t.col, t.row, r, nil, t.style)
		t.col += w
	}
}

func (t *TcellTerminal) Flush() error {
	t.screen.Show()
	return nil
}

// Restore finalizes the screen, which also restores the cursor and the
// original terminal mode. The event poller exits once Fini returns.
func (t *TcellTerminal) Restore() error {
	t.stopOnce.Do(func() {
		close(t.quit)
		t.screen.Fini()
		<-t.done
	})
	return nil
}

func (t *TcellTerminal) pollEvents() {
	defer close(t.done)
	defer close(t.keys)
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		var key Key
		switch ev := ev.(type) {
		case *tcell.EventResize:
			t.screen.Sync()
			key = Key{Kind: KeyResize}
		case *tcell.EventKey:
			key = convertKey(ev)
		default:
			continue
		}
		select {
		case t.keys <- key:
		case <-t.quit:
			return
		}
	}
}

func convertKey(ev *tcell.EventKey) Key {
	switch ev.Key() {
	case tcell.KeyRune:
		return Key{Kind: KeyRune, Rune: ev.Rune()}
	case tcell.KeyCtrlC:
		return Key{Kind: KeyCtrlC}
	case tcell.KeyEscape:
		return Key{Kind: KeyEsc}
	case tcell.KeyEnter:
		return Key{Kind: KeyEnter}
	default:
		return Key{Kind: KeyOther}
	}
}

func tcellStyle(a Attr) tcell.Style {
	style := tcell.StyleDefault
	if c, ok := tcellColors[a.FG]; ok {
		style = style.Foreground(c)
	}
	return style.Bold(a.Bold).Dim(a.Dim).Reverse(a.Reverse)
}
