package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks, so "Café" becomes "Cafe". Input that
// cannot be normalized is returned unchanged.
func FoldAccents(value string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		return value
	}
	return folded
}

// SanitizeToken keeps ASCII letters, digits, '-', '_' and '.', replacing
// everything else with '_'. Accents are folded first. The result is trimmed
// of leading and trailing '.' and '_', cut to maxLen bytes when maxLen is
// positive, and replaced by fallback when empty.
func SanitizeToken(value string, maxLen int, fallback string) string {
	var b strings.Builder
	for _, r := range FoldAccents(strings.TrimSpace(value)) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if maxLen > 0 && len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "._")
	}
	if out == "" {
		return fallback
	}
	return out
}
