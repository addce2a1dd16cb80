// Package glob matches slash-separated archive paths against patterns.
//
// Matching is doublestar's: `*`, `?`, `[...]` and `{a,b}` stay within a
// segment, and a `**` segment matches zero or more whole segments.
package glob

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern is a compiled glob.
type Pattern struct {
	raw string
}

// Compile validates pattern and returns its compiled form.
func Compile(pattern string) (Pattern, error) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return Pattern{}, fmt.Errorf("glob: empty pattern")
	}
	if strings.HasPrefix(trimmed, "/") {
		return Pattern{}, fmt.Errorf("glob %q: patterns are relative to the archive root", pattern)
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	if strings.Contains(trimmed, "//") {
		return Pattern{}, fmt.Errorf("glob %q: empty path segment", pattern)
	}
	if !doublestar.ValidatePattern(trimmed) {
		return Pattern{}, fmt.Errorf("glob %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return Pattern{raw: trimmed}, nil
}

// MustCompile is Compile for patterns known at build time.
func MustCompile(pattern string) Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pattern without any trailing slash.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether name matches the pattern. A trailing slash on name is ignored.
func (p Pattern) Match(name string) bool {
	name = strings.TrimSuffix(name, "/")
	if name == "" || p.raw == "" {
		return false
	}
	ok, err := doublestar.Match(p.raw, name)
	return err == nil && ok
}

// Set is an ordered list of patterns.
type Set []Pattern

// CompileSet compiles every pattern, failing on the first invalid one.
func CompileSet(patterns []string) (Set, error) {
	set := make(Set, 0, len(patterns))
	for _, raw := range patterns {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

// MatchAny reports whether any pattern in the set matches name.
func (s Set) MatchAny(name string) bool {
	for _, p := range s {
		if p.Match(name) {
			return true
		}
	}
	return false
}
