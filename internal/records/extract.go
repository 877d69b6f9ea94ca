// Package records turns the data rows of a mapped progress table into
// normalized records.
package records

import (
	"strings"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// Result is the outcome of extracting one table.
type Result struct {
	Records []models.NormalizedRecord
	// Dropped counts rows rejected because a required numeric cell did not parse.
	Dropped int
}

// Extract converts the rows of table into records for period and source.
//
// The project name is trimmed and kept even when empty. A row is dropped when
// the plan or actual cell is empty or non-numeric. Design and cumulative
// quantities are read when mapped; a bad cell leaves the value nil.
func Extract(table models.Table, mapping models.ColumnMapping, period models.Period, source string) Result {
	nameCol, _ := mapping.Lookup(models.FieldProjectName)
	planCol, _ := mapping.Lookup(models.FieldPeriodPlan)
	actualCol, _ := mapping.Lookup(models.FieldPeriodActual)
	designCol, hasDesign := mapping.Lookup(models.FieldDesignQuantity)
	cumCol, hasCum := mapping.Lookup(models.FieldCumulativeQuantity)

	var res Result
	for _, row := range table.Rows {
		plan, ok := ParseNumber(models.Cell(row, planCol.Index))
		if !ok {
			res.Dropped++
			continue
		}
		actual, ok := ParseNumber(models.Cell(row, actualCol.Index))
		if !ok {
			res.Dropped++
			continue
		}
		rec := models.NormalizedRecord{
			Period:         period,
			ProjectName:    strings.TrimSpace(models.Cell(row, nameCol.Index)),
			PlanAmount:     plan,
			ActualAmount:   actual,
			SourceDocument: source,
		}
		if hasDesign {
			rec.DesignQuantity = optional(models.Cell(row, designCol.Index))
		}
		if hasCum {
			rec.CumulativeQuantity = optional(models.Cell(row, cumCol.Index))
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

func optional(cell string) *float64 {
	v, ok := ParseNumber(cell)
	if !ok {
		return nil
	}
	return &v
}
