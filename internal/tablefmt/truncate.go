// Package tablefmt holds helpers for the fixed-width tables printed by the
// command-line tools.
package tablefmt

// Truncate shortens s to at most maxLen characters, ending in "..." when
// there is room for it. Multi-byte characters are never split.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
