// Package woreda provides tolerant matching of free-text district names.
// Residents type their woreda by hand, so "Woreda 05", "woreda-05" and
// "WOREDA_05" all need to resolve to the same administrative district.
package woreda

import "strings"

// Normalize lower-cases the input and strips every non-alphanumeric
// character, yielding a canonical form for comparison.
func Normalize(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchPattern builds a case-insensitive POSIX regex that matches the
// canonical characters of value in order with arbitrary non-word filler
// between them. Returns "" for input with no alphanumeric content.
//
// The match is deliberately loose and unanchored: it is a tolerance
// mechanism for inconsistent user spelling, not an identity check. Two
// genuinely different districts whose canonical forms are subsequences of
// one another can be conflated; use Same for equality decisions.
func MatchPattern(value string) string {
	normalized := Normalize(value)
	if normalized == "" {
		return ""
	}

	parts := strings.Split(normalized, "")
	return strings.Join(parts, `\W*`)
}

// Same reports whether two district names share the same canonical form.
func Same(left, right string) bool {
	return Normalize(left) == Normalize(right)
}
