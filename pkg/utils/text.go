// Package utils provides shared utilities for text, math, and logging.
package utils

// Truncate shortens s to at most maxLen runes and appends "..." when cut.
// A non-positive maxLen returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
