package filter

import (
	"fmt"
	"strings"
	"unicode"
)

// PreserveMode selects how many characters of a masked match stay readable.
type PreserveMode int

const (
	PreserveNone PreserveMode = iota
	PreserveFirst4
	PreserveLast4
	PreserveBoth4
)

const maskRune = '*'

var preserveModeNames = []string{"none", "first4", "last4", "both4"}

// PreserveModeNames lists the accepted spellings, in enum order.
func PreserveModeNames() []string {
	return append([]string(nil), preserveModeNames...)
}

// ParsePreserveMode converts a config/CLI value into a PreserveMode.
func ParsePreserveMode(value string) (PreserveMode, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range preserveModeNames {
		if value == name {
			return PreserveMode(i), nil
		}
	}
	return PreserveNone, fmt.Errorf("unknown preserve mode %q", value)
}

func (m PreserveMode) String() string {
	if m < 0 || int(m) >= len(preserveModeNames) {
		return "unknown"
	}
	return preserveModeNames[m]
}

// Masker redacts configured substrings. The enabled gate can be flipped at
// runtime without touching the pattern list.
type Masker struct {
	patterns []string
	mode     PreserveMode
	enabled  bool
}

// NewMasker builds a masker that starts enabled whenever patterns exist.
func NewMasker(patterns []string, mode PreserveMode) *Masker {
	kept := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &Masker{patterns: kept, mode: mode, enabled: len(kept) > 0}
}

func (m *Masker) HasPatterns() bool { return m != nil && len(m.patterns) > 0 }

func (m *Masker) Enabled() bool { return m != nil && m.enabled }

func (m *Masker) SetEnabled(on bool) {
	if m == nil {
		return
	}
	m.enabled = on
}

func (m *Masker) Mode() PreserveMode {
	if m == nil {
		return PreserveNone
	}
	return m.mode
}

// Mask applies every pattern when enabled and is the identity otherwise.
func (m *Masker) Mask(text string) string {
	if !m.Enabled() {
		return text
	}
	return Mask(text, m.patterns, m.mode)
}

// Mask replaces each case-insensitive occurrence of each pattern. Patterns
// are applied in order and each pass scans the output of the previous one.
func Mask(text string, patterns []string, mode PreserveMode) string {
	if text == "" {
		return text
	}
	runes := []rune(text)
	for _, p := range patterns {
		needle := []rune(p)
		if len(needle) == 0 {
			continue
		}
		for i := 0; i+len(needle) <= len(runes); {
			if !foldEqualAt(runes, i, needle) {
				i++
				continue
			}
			maskSpan(runes[i:i+len(needle)], mode)
			i += len(needle)
		}
	}
	return string(runes)
}

func foldEqualAt(haystack []rune, at int, needle []rune) bool {
	for j, r := range needle {
		if unicode.ToLower(haystack[at+j]) != unicode.ToLower(r) {
			return false
		}
	}
	return true
}

// maskSpan rewrites span in place per the preservation policy.
func maskSpan(span []rune, mode PreserveMode) {
	n := len(span)
	keepHead, keepTail := 0, 0
	switch mode {
	case PreserveFirst4:
		if n <= 4 {
			return
		}
		keepHead = 4
	case PreserveLast4:
		if n <= 4 {
			return
		}
		keepTail = 4
	case PreserveBoth4:
		if n <= 8 {
			return
		}
		keepHead, keepTail = 4, 4
	}
	for i := keepHead; i < n-keepTail; i++ {
		span[i] = maskRune
	}
}
