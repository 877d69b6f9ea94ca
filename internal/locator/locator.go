// Package locator finds the progress table among the tables of a document.
//
// A table qualifies when its header row satisfies a Predicate. When several
// tables qualify the second one in document order is selected: report
// templates put a structurally similar summary table before the real one.
// That rule is a heuristic about document layout and is kept as is.
package locator

import (
	"fmt"
	"strings"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// Predicate decides whether a header row marks a qualifying table.
type Predicate interface {
	Match(header []string) bool
}

// ExactHeaders qualifies a table whose header has a cell equal to every
// listed string (after trimming).
type ExactHeaders []string

// Match implements Predicate.
func (e ExactHeaders) Match(header []string) bool {
	cells := make(map[string]struct{}, len(header))
	for _, h := range header {
		cells[NormalizeHeader(h)] = struct{}{}
	}
	for _, want := range e {
		if _, ok := cells[NormalizeHeader(want)]; !ok {
			return false
		}
	}
	return true
}

// Keywords qualifies a table whose concatenated header text contains every keyword.
type Keywords []string

// Match implements Predicate.
func (k Keywords) Match(header []string) bool {
	var b strings.Builder
	for _, h := range header {
		b.WriteString(NormalizeHeader(h))
	}
	text := b.String()
	for _, kw := range k {
		if !strings.Contains(text, NormalizeHeader(kw)) {
			return false
		}
	}
	return true
}

// QualifyingTable is a table that satisfied the predicate, with its position
// in the source document.
type QualifyingTable struct {
	DocumentIndex int
	Table         models.Table
}

// Locate returns the qualifying tables of doc in document order.
// Tables without a header row never qualify.
func Locate(doc *models.Document, pred Predicate) []QualifyingTable {
	var out []QualifyingTable
	for i, t := range doc.Tables {
		if len(t.Header) == 0 {
			continue
		}
		if pred.Match(t.Header) {
			out = append(out, QualifyingTable{DocumentIndex: i, Table: t})
		}
	}
	return out
}

// Select applies the disambiguation rule: the second qualifying table when
// two or more qualify, the only one when exactly one does.
func Select(qualifying []QualifyingTable) (QualifyingTable, error) {
	switch len(qualifying) {
	case 0:
		return QualifyingTable{}, models.ErrNotFound
	case 1:
		return qualifying[0], nil
	default:
		return qualifying[1], nil
	}
}

// Candidates returns the selected table first followed by the other
// qualifying tables in document order. Callers walk this list when the
// selected table cannot be mapped.
func Candidates(qualifying []QualifyingTable) []QualifyingTable {
	if len(qualifying) == 0 {
		return nil
	}
	selected := 0
	if len(qualifying) >= 2 {
		selected = 1
	}
	out := make([]QualifyingTable, 0, len(qualifying))
	out = append(out, qualifying[selected])
	for i, q := range qualifying {
		if i != selected {
			out = append(out, q)
		}
	}
	return out
}

// Locator pairs a predicate with Locate and Select.
type Locator struct {
	pred Predicate
}

// New returns a Locator using pred.
func New(pred Predicate) *Locator {
	return &Locator{pred: pred}
}

// Locate returns the selected-first candidate list for doc, or ErrNotFound.
func (l *Locator) Locate(doc *models.Document) ([]QualifyingTable, error) {
	qualifying := Locate(doc, l.pred)
	if len(qualifying) == 0 {
		return nil, fmt.Errorf("%s: %w", doc.Name, models.ErrNotFound)
	}
	return Candidates(qualifying), nil
}

// Predicate modes accepted by FromMode.
const (
	ModeKeyword = "keyword"
	ModeExact   = "exact"
)

// FromMode builds a predicate for a configured mode.
func FromMode(mode string, keywords, exact []string) (Predicate, error) {
	switch mode {
	case ModeKeyword, "":
		return Keywords(keywords), nil
	case ModeExact:
		return ExactHeaders(exact), nil
	default:
		return nil, fmt.Errorf("unknown locator mode %q", mode)
	}
}
