// Package columns resolves canonical fields to the concrete headers of a table.
package columns

import (
	"fmt"
	"strings"

	"github.com/Larry-Leee/progressVisualisation/internal/locator"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// KeywordTable lists, per canonical field, the header substrings that identify it.
// Earlier keywords take priority over later ones.
type KeywordTable map[models.Field][]string

// DefaultKeywordTable matches the headers used by the tunnel project's monthly reports.
func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		models.FieldProjectName:        {"分部工程", "分部", "项目名称", "工程名称"},
		models.FieldDesignQuantity:     {"设计工程量", "设计"},
		models.FieldCumulativeQuantity: {"开累完成", "开累", "累计完成"},
		models.FieldPeriodPlan:         {"本月计划", "计划"},
		models.FieldPeriodActual:       {"本月完成", "本月实际", "完成"},
	}
}

// Mapper maps header rows using a fixed keyword table.
type Mapper struct {
	table KeywordTable
}

// NewMapper returns a Mapper for table. A nil table uses DefaultKeywordTable.
func NewMapper(table KeywordTable) *Mapper {
	if table == nil {
		table = DefaultKeywordTable()
	}
	return &Mapper{table: table}
}

// Map resolves every canonical field against header.
//
// Fields are resolved in models.Fields order. For each field its keywords are
// tried in order, and for each keyword the header is scanned left to right;
// the first header containing the keyword that no earlier field claimed wins.
// Claiming keeps "开累完成工程量" from also satisfying the actual-quantity
// keyword "完成" once the cumulative field has taken it.
//
// A missing required field fails the whole mapping with ErrMappingFailed.
// Missing optional fields are left out of the result.
func (m *Mapper) Map(header []string) (models.ColumnMapping, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = locator.NormalizeHeader(h)
	}
	claimed := make([]bool, len(header))
	mapping := make(models.ColumnMapping, len(models.Fields))
	var missing []string

	for _, field := range models.Fields {
		idx := resolve(normalized, claimed, m.table[field])
		if idx < 0 {
			if field.Required() {
				missing = append(missing, string(field))
			}
			continue
		}
		claimed[idx] = true
		mapping[field] = models.Column{Index: idx, Header: header[idx]}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no header for %s", models.ErrMappingFailed, strings.Join(missing, ", "))
	}
	return mapping, nil
}

func resolve(headers []string, claimed []bool, keywords []string) int {
	for _, kw := range keywords {
		kw = locator.NormalizeHeader(kw)
		if kw == "" {
			continue
		}
		for i, h := range headers {
			if !claimed[i] && strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}
