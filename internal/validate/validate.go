package validate

import (
	"fmt"
	"path"
	"sort"

	"templatefiller/internal/archive"
	"templatefiller/internal/schema"
)

// Severity grades a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ParseSeverity maps a configured severity name.
func ParseSeverity(value string) (Severity, error) {
	switch Severity(value) {
	case SeverityError, SeverityWarning:
		return Severity(value), nil
	default:
		return "", fmt.Errorf("unknown severity %q", value)
	}
}

// Kind names a diagnostic class.
type Kind string

const (
	MissingRequiredEntry Kind = "MissingRequiredEntry"
	UnexpectedEntry      Kind = "UnexpectedEntry"
	TypeMismatch         Kind = "TypeMismatch"
	FillError            Kind = "FillError"
)

// Diagnostic is one validation finding.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Kind     Kind     `json:"kind"`
	Message  string   `json:"message"`
}

// Options tunes a validation run.
type Options struct {
	UnexpectedSeverity Severity
}

// Report is the outcome of a validation run.
type Report struct {
	Diagnostics []Diagnostic
}

// Passed reports whether no diagnostic has error severity.
func (r Report) Passed() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors counts error-severity diagnostics.
func (r Report) Errors() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Add appends diagnostics and restores the stable ordering.
func (r *Report) Add(diags ...Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, diags...)
	Sort(r.Diagnostics)
}

// Run validates entries against s.
func Run(entries []archive.Entry, s *schema.Schema, opts Options) Report {
	unexpected := opts.UnexpectedSeverity
	if unexpected == "" {
		unexpected = SeverityWarning
	}

	var diags []Diagnostic
	satisfied := make(map[int]bool)
	rules := s.Rules()

	for _, entry := range entries {
		// Required rules see every entry they match, not only entries whose
		// first match they are.
		for _, rule := range rules {
			if rule.Required && rule.Matches(entry.Path) {
				satisfied[rule.Index] = true
			}
		}

		rule, ok := s.Match(entry.Path)
		if !ok {
			diags = append(diags, Diagnostic{
				Severity: unexpected,
				Path:     entry.Path,
				Kind:     UnexpectedEntry,
				Message:  "entry matches no schema rule",
			})
			continue
		}
		if rule.Kind != entry.Kind {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Path:     entry.Path,
				Kind:     TypeMismatch,
				Message:  fmt.Sprintf("expected %s per rule %q, found %s", rule.Kind, rule.Pattern, entry.Kind),
			})
		}
	}

	// Parent directories exist in the workspace even when the archive has no
	// explicit member for them, so they can satisfy required dir rules.
	for _, dir := range impliedDirs(entries) {
		for _, rule := range rules {
			if rule.Required && rule.Kind == archive.KindDir && rule.Matches(dir) {
				satisfied[rule.Index] = true
			}
		}
	}

	for _, rule := range s.Required() {
		if satisfied[rule.Index] {
			continue
		}
		diags = append(diags, Diagnostic{
			Severity: SeverityError,
			Path:     rule.Pattern,
			Kind:     MissingRequiredEntry,
			Message:  fmt.Sprintf("required %s %q is missing", rule.Kind, rule.Pattern),
		})
	}

	Sort(diags)
	return Report{Diagnostics: diags}
}

// impliedDirs returns every ancestor directory of the entry paths.
func impliedDirs(entries []archive.Entry) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, entry := range entries {
		for dir := path.Dir(entry.Path); dir != "." && dir != "/" && !seen[dir]; dir = path.Dir(dir) {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Sort orders diagnostics by path, then kind, then message.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
}
