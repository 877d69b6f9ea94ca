package query

import "github.com/Larry-Leee/progressVisualisation/internal/models"

// Series is one (label, seriesA, seriesB) triple of a grouped bar chart.
type Series struct {
	Label string  `json:"label"`
	A     float64 `json:"a"`
	B     float64 `json:"b"`
}

// PeriodSeries pairs plan (A) with actual (B) per project.
func PeriodSeries(rows []models.PeriodAggregate) []Series {
	out := make([]Series, len(rows))
	for i, r := range rows {
		out[i] = Series{Label: r.ProjectName, A: r.PlanAmount, B: r.ActualAmount}
	}
	return out
}

// CumulativeSeries pairs total plan (A) with total actual (B) per project.
func CumulativeSeries(rows []models.CumulativeAggregate) []Series {
	out := make([]Series, len(rows))
	for i, r := range rows {
		out[i] = Series{Label: r.ProjectName, A: r.TotalPlan, B: r.TotalActual}
	}
	return out
}

// DesignSeries pairs design quantity (A) with cumulative quantity (B) per project.
func DesignSeries(rows []models.DesignCumulative) []Series {
	out := make([]Series, len(rows))
	for i, r := range rows {
		out[i] = Series{Label: r.ProjectName, A: r.DesignQuantity, B: r.CumulativeQuantity}
	}
	return out
}
