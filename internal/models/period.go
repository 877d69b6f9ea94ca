package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// Period is a reporting month in the form YYYY-MM.
type Period string

var periodRe = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// ParsePeriod validates s and returns it as a Period.
func ParsePeriod(s string) (Period, error) {
	m := periodRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month out of range in %q", ErrInvalidPeriod, s)
	}
	return Period(s), nil
}

// NewPeriod formats year and month as a Period.
func NewPeriod(year, month int) Period {
	return Period(fmt.Sprintf("%04d-%02d", year, month))
}

// Patterns tried in order by PeriodFromName: "2024年3月", "2024-03" / "2024.3" / "2024_03", "202403".
var (
	cnYearMonthRe  = regexp.MustCompile(`(\d{4})\s*年\s*0?(\d{1,2})\s*月`)
	sepYearMonthRe = regexp.MustCompile(`(\d{4})[-._/](\d{1,2})(?:\D|$)`)
	compactRe      = regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(?:\D|$)`)
)

// PeriodFromName infers the reporting period from a document name.
func PeriodFromName(name string) (Period, bool) {
	for _, re := range []*regexp.Regexp{cnYearMonthRe, sepYearMonthRe, compactRe} {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return NewPeriod(year, month), true
		}
	}
	return "", false
}
