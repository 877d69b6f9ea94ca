package records

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// numberRe accepts an optional sign, digits and at most one decimal point.
// Grouping separators, exponents and units are rejected.
var numberRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// ParseNumber coerces a cell to a float. Surrounding whitespace is ignored and
// full-width digits, signs and points are folded to ASCII first. Empty or
// otherwise non-numeric cells report ok=false.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(width.Fold.String(s))
	if !numberRe.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
