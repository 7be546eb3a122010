package utils

// Truncate shortens s to at most maxLen runes, appending "..." when
// anything was cut. Multi-byte filenames are never split mid-rune.
func Truncate(s string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
