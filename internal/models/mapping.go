package models

// Field is a canonical column role.
type Field string

const (
	FieldProjectName        Field = "project_name"
	FieldDesignQuantity     Field = "design_quantity"
	FieldCumulativeQuantity Field = "cumulative_quantity"
	FieldPeriodPlan         Field = "period_plan"
	FieldPeriodActual       Field = "period_actual"
)

// Fields lists every canonical field in resolution order.
var Fields = []Field{
	FieldProjectName,
	FieldDesignQuantity,
	FieldCumulativeQuantity,
	FieldPeriodPlan,
	FieldPeriodActual,
}

// Required reports whether a table must provide a header for f.
func (f Field) Required() bool {
	switch f {
	case FieldProjectName, FieldPeriodPlan, FieldPeriodActual:
		return true
	default:
		return false
	}
}

// Column is the concrete header a field resolved to.
type Column struct {
	Index  int    `json:"index"`
	Header string `json:"header"`
}

// ColumnMapping maps canonical fields to headers of one table.
type ColumnMapping map[Field]Column

// Lookup returns the column for f and whether it was mapped.
func (m ColumnMapping) Lookup(f Field) (Column, bool) {
	c, ok := m[f]
	return c, ok
}
