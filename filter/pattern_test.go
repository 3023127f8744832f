package filter

import "testing"

func TestMatchPrefixAndSuffixWildcards(t *testing.T) {
	if !Match("error-1", "err*") {
		t.Fatalf("expected err* to match error-1")
	}
	if Match("werror", "err*") {
		t.Fatalf("expected err* not to match werror")
	}
	if !Match("sys.log", "*log") {
		t.Fatalf("expected *log to match sys.log")
	}
	if Match("logger", "*log") {
		t.Fatalf("expected *log not to match logger")
	}
}

func TestMatchExactAndContainment(t *testing.T) {
	if !Match("sensors/temp", "sensors/temp") {
		t.Fatalf("expected exact match")
	}
	if !Match("home/sensors/temp/1", "temp") {
		t.Fatalf("expected substring containment")
	}
	if Match("home/TEMP", "temp") {
		t.Fatalf("containment must stay case-sensitive")
	}
}

func TestMatchInnerWildcardIsCaseInsensitiveSearch(t *testing.T) {
	if !Match("home/Kitchen/TEMP", "kitchen*temp") {
		t.Fatalf("expected inner wildcard to match case-insensitively")
	}
	if !Match("x/home/a/b/c", "home*b") {
		t.Fatalf("expected inner wildcard search to be unanchored")
	}
	if Match("home/a", "home*b") {
		t.Fatalf("expected inner wildcard to require the trailing literal")
	}
}

func TestMalformedWildcardOnlyDisablesItself(t *testing.T) {
	set := NewPatterns([]string{"a(*b", "temp"})
	if got := set.Invalid(); len(got) != 1 || got[0] != "a(*b" {
		t.Fatalf("expected a(*b to be reported invalid, got %v", got)
	}
	if set.MatchAny("a(xb") {
		t.Fatalf("invalid pattern must not match")
	}
	if !set.MatchAny("room/temp") {
		t.Fatalf("valid pattern in the same set should still match")
	}
}

func TestPatternsSkipBlankEntries(t *testing.T) {
	set := NewPatterns([]string{"", "  ", "a"})
	if set.Len() != 1 {
		t.Fatalf("expected 1 pattern, got %d", set.Len())
	}
	var empty *Patterns
	if empty.MatchAny("x") || empty.Len() != 0 {
		t.Fatalf("nil set should match nothing")
	}
}

func TestFirstMatchFollowsConfiguredOrder(t *testing.T) {
	p := NewPatterns([]string{"*temp", "room*", "room/1"})
	got, ok := p.FirstMatch("room/1")
	if !ok || got != "room*" {
		t.Fatalf("FirstMatch = %q, %v; want room*", got, ok)
	}
	if _, ok := p.FirstMatch("hall"); ok {
		t.Fatalf("expected no match for hall")
	}
	var nilSet *Patterns
	if _, ok := nilSet.FirstMatch("x"); ok {
		t.Fatalf("nil set matched")
	}
}
