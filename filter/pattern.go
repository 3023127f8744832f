package filter

import (
	"regexp"
	"strings"
)

type patternKind int

const (
	kindContains patternKind = iota
	kindPrefix
	kindSuffix
	kindWildcard
)

// pattern is one compiled label/payload pattern.
type pattern struct {
	raw     string
	kind    patternKind
	literal string
	re      *regexp.Regexp // nil for a wildcard that failed to compile
	invalid bool
}

// compilePattern classifies a raw pattern by where its '*' sits.
//
// Matching rules, in priority order:
//   - Exact match: "sensors/temp" matches "sensors/temp"
//   - Wildcard at end: "err*" matches "error-1" (prefix)
//   - Wildcard at start: "*log" matches "sys.log" (suffix)
//   - Wildcard elsewhere: "a*b" is a case-insensitive unanchored regexp search
//   - No wildcard: case-sensitive substring containment
//
// The wildcard path is case-insensitive while containment is not. Callers
// depend on that asymmetry, so keep it.
func compilePattern(raw string) pattern {
	p := pattern{raw: raw}
	switch {
	case strings.HasSuffix(raw, "*"):
		p.kind = kindPrefix
		p.literal = strings.TrimSuffix(raw, "*")
	case strings.HasPrefix(raw, "*"):
		p.kind = kindSuffix
		p.literal = strings.TrimPrefix(raw, "*")
	case strings.Contains(raw, "*"):
		p.kind = kindWildcard
		re, err := regexp.Compile("(?i)" + strings.ReplaceAll(raw, "*", ".*"))
		if err != nil {
			p.invalid = true
		} else {
			p.re = re
		}
	default:
		p.kind = kindContains
		p.literal = raw
	}
	return p
}

func (p pattern) match(text string) bool {
	if text == p.raw {
		return true
	}
	switch p.kind {
	case kindPrefix:
		return strings.HasPrefix(text, p.literal)
	case kindSuffix:
		return strings.HasSuffix(text, p.literal)
	case kindWildcard:
		// A pattern that did not compile never matches; the rest of the set
		// keeps working.
		return p.re != nil && p.re.MatchString(text)
	default:
		return strings.Contains(text, p.literal)
	}
}

// Match reports whether text satisfies a single pattern.
func Match(text, raw string) bool {
	return compilePattern(raw).match(text)
}

// Patterns is an ordered, pre-compiled pattern set. A text matches the set
// when any pattern matches.
type Patterns struct {
	list []pattern
}

// NewPatterns compiles raw patterns in order. Blank entries are ignored.
func NewPatterns(raw []string) *Patterns {
	p := &Patterns{list: make([]pattern, 0, len(raw))}
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		p.list = append(p.list, compilePattern(r))
	}
	return p
}

// Len returns the number of usable entries, including invalid ones.
func (p *Patterns) Len() int {
	if p == nil {
		return 0
	}
	return len(p.list)
}

// MatchAny is the logical OR of every pattern in the set.
func (p *Patterns) MatchAny(text string) bool {
	if p == nil {
		return false
	}
	for _, pat := range p.list {
		if pat.match(text) {
			return true
		}
	}
	return false
}

// FirstMatch returns the first pattern, in configured order, that matches.
func (p *Patterns) FirstMatch(text string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, pat := range p.list {
		if pat.match(text) {
			return pat.raw, true
		}
	}
	return "", false
}

// Invalid lists wildcard patterns whose expression failed to compile.
func (p *Patterns) Invalid() []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, pat := range p.list {
		if pat.invalid {
			out = append(out, pat.raw)
		}
	}
	return out
}

// Raw returns the patterns as configured.
func (p *Patterns) Raw() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.list))
	for i, pat := range p.list {
		out[i] = pat.raw
	}
	return out
}
