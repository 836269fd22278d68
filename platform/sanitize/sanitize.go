// Package sanitize cleans operator-supplied labels before they are stored.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// Label strips HTML tags and control characters, collapses whitespace and
// truncates the result to maxRunes. A maxRunes of zero disables truncation.
func Label(s string, maxRunes int) string {
	s = htmlTagRegex.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	if maxRunes > 0 {
		runes := []rune(s)
		if len(runes) > maxRunes {
			s = strings.TrimSpace(string(runes[:maxRunes]))
		}
	}
	return s
}
