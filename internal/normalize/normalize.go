package normalize

import (
	"regexp"
	"strings"
)

var spaces = regexp.MustCompile(`\s+`)

// Text replaces NBSP with a plain space, collapses runs of whitespace and trims the result.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\u00A0", " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripChars removes every occurrence of the given characters from s.
func StripChars(s, chars string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}

// BeforeFirst returns the part of s before the first sep, or s itself when sep is absent.
func BeforeFirst(s, sep string) string {
	if idx := strings.Index(s, sep); idx > -1 {
		return s[:idx]
	}
	return s
}
