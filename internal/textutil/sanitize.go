package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes a session title safe to use as a file name on the
// video volume. Path separators, colons and asterisks become dashes; quotes,
// wildcards and control characters are dropped; runs of whitespace collapse.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			return '-'
		case unicode.IsSpace(r):
			return ' '
		case strings.ContainsRune(`?"<>|`, r), unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	return strings.Join(strings.Fields(mapped), " ")
}
