package locator

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// NormalizeHeader folds full-width characters and removes all whitespace,
// so "本月 计划\n工程量" and "本月计划工程量" compare equal.
func NormalizeHeader(h string) string {
	h = width.Fold.String(h)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, h)
}
