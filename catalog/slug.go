package catalog

import (
	"strings"
	"unicode"
)

// Slugify derives the URL identifier of a title: lower-case, everything outside
// [a-z0-9], whitespace and '-' removed, trimmed, whitespace runs collapsed to '-'.
// Slugify(Slugify(s)) == Slugify(s).
func Slugify(title string) string {
	lowered := strings.ToLower(title)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), "-")
}
