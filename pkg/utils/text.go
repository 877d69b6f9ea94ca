package utils

import "github.com/mattn/go-runewidth"

// Truncate shortens s to at most maxWidth terminal columns, appending "..."
// when cut. Wide (CJK) characters count as two columns.
// If maxWidth is 0 or negative, returns s unchanged.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 || runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth+3, "...")
}

// PadRight pads s with spaces to width terminal columns.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// PadLeft right-aligns s in width terminal columns.
func PadLeft(s string, width int) string {
	return runewidth.FillLeft(s, width)
}

// Width returns the number of terminal columns s occupies.
func Width(s string) int {
	return runewidth.StringWidth(s)
}
