package storage

import (
	"strings"
	"unicode"
)

// SafeSegment turns an arbitrary label (a test id, a case label) into a
// single filesystem-safe path segment.
func SafeSegment(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(label) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-', r == '.':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return "unnamed"
	}
	return out
}
