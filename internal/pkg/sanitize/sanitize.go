// Package sanitize trims and caps untrusted free-text input.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

// String trims s and truncates it to at most max runes.
func String(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// Optional is String that maps an empty result to nil.
func Optional(s string, max int) *string {
	out := String(s, max)
	if out == "" {
		return nil
	}
	return &out
}

// Default is String that falls back to def when the result is empty.
func Default(s string, max int, def string) string {
	if out := String(s, max); out != "" {
		return out
	}
	return def
}
