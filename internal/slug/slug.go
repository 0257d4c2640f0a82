// Package slug derives URL-safe identifiers from arbitrary text.
package slug

import "strings"

// Slugify converts text to a lowercase hyphenated identifier: spaces become
// hyphens, anything outside [a-z0-9-] is dropped, runs of hyphens collapse to
// one, and leading/trailing hyphens are trimmed. The result is deterministic
// for a given input and may be empty when the input carries no usable runes.
func Slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('-')
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}
