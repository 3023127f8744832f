package ui

// Command is the closed set of operator actions.
type Command int

const (
	CmdNone Command = iota
	CmdToggleAuto
	CmdRender
	CmdCycleSort
	CmdSortTime
	CmdSortLabel
	CmdLabelNarrow
	CmdLabelWiden
	CmdPayloadNarrow
	CmdPayloadWiden
	CmdToggleHighlight
	CmdToggleMask
	CmdDetail
	CmdTableView
	CmdQuit
)

var commandNames = [...]string{
	CmdNone:            "none",
	CmdToggleAuto:      "toggle-auto",
	CmdRender:          "render",
	CmdCycleSort:       "cycle-sort",
	CmdSortTime:        "sort-time",
	CmdSortLabel:       "sort-label",
	CmdLabelNarrow:     "label-narrow",
	CmdLabelWiden:      "label-widen",
	CmdPayloadNarrow:   "payload-narrow",
	CmdPayloadWiden:    "payload-widen",
	CmdToggleHighlight: "toggle-highlight",
	CmdToggleMask:      "toggle-mask",
	CmdDetail:          "detail",
	CmdTableView:       "table",
	CmdQuit:            "quit",
}

func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return "unknown"
	}
	return commandNames[c]
}

// Keymap maps runes to commands. Keys with no binding fall back to
// CmdTableView so any stray key returns to the table.
type Keymap map[rune]Command

// DefaultKeymap returns the stock bindings.
func DefaultKeymap() Keymap {
	return Keymap{
		'a': CmdToggleAuto,
		'r': CmdRender,
		's': CmdCycleSort,
		't': CmdSortTime,
		'l': CmdSortLabel,
		'<': CmdLabelNarrow,
		'>': CmdLabelWiden,
		'-': CmdPayloadNarrow,
		'+': CmdPayloadWiden,
		'h': CmdToggleHighlight,
		'm': CmdToggleMask,
		'd': CmdDetail,
		'q': CmdQuit,
	}
}

// Lookup resolves a key event. Ctrl-C always quits; Esc is not quit and
// behaves like any other unbound key.
func (m Keymap) Lookup(k Key) Command {
	switch k.Kind {
	case KeyCtrlC:
		return CmdQuit
	case KeyResize:
		return CmdRender
	case KeyRune:
		if cmd, ok := m[k.Rune]; ok {
			return cmd
		}
	}
	return CmdTableView
}

// KeyHelp is the one-line key summary shown in the footer.
const KeyHelp = "a auto  r render  s/t/l sort  </> label  -/+ payload  h highlight  m mask  d detail  q quit"
