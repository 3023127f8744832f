package ui

// Color is a terminal foreground color.
type Color int

const (
	ColorDefault Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorGray
)

// Attr is the drawing attribute applied to subsequent writes.
type Attr struct {
	FG      Color
	Bold    bool
	Dim     bool
	Reverse bool
}

// Terminal abstracts the screen so rendering code works with semantic
// operations instead of raw escape sequences. Implementations are driven
// from the session goroutine only.
type Terminal interface {
	Size() (cols, rows int)
	Clear()
	ClearLine(row int)
	MoveTo(col, row int)
	SetAttr(a Attr)
	WriteString(s string)
	Flush() error
	// Restore returns the terminal to its original mode. It must be safe to
	// call more than once.
	Restore() error
}

// KeyKind classifies a keystroke.
type KeyKind int

const (
	KeyRune KeyKind = iota
	KeyEnter
	KeyEsc
	KeyCtrlC
	KeyResize
	KeyOther
)

// Key is one keyboard (or resize) event.
type Key struct {
	Kind KeyKind
	Rune rune
}

// KeySource is implemented by terminals that can read the keyboard.
type KeySource interface {
	Keys() <-chan Key
}
