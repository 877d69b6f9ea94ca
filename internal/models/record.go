package models

import "time"

// NormalizedRecord is one data row of a progress table after coercion.
// DesignQuantity and CumulativeQuantity are nil when the table has no such
// column or the cell did not parse.
type NormalizedRecord struct {
	Period             Period   `json:"period"`
	ProjectName        string   `json:"project_name"`
	PlanAmount         float64  `json:"plan_amount"`
	ActualAmount       float64  `json:"actual_amount"`
	DesignQuantity     *float64 `json:"design_quantity,omitempty"`
	CumulativeQuantity *float64 `json:"cumulative_quantity,omitempty"`
	SourceDocument     string   `json:"source_document"`
}

// RecordKey identifies a record in the store.
type RecordKey struct {
	Period         Period
	ProjectName    string
	SourceDocument string
}

// Key returns the store key of r.
func (r NormalizedRecord) Key() RecordKey {
	return RecordKey{Period: r.Period, ProjectName: r.ProjectName, SourceDocument: r.SourceDocument}
}

// PeriodAggregate is plan vs actual for one project in one period.
type PeriodAggregate struct {
	Period       Period  `json:"period"`
	ProjectName  string  `json:"project_name"`
	PlanAmount   float64 `json:"plan_amount"`
	ActualAmount float64 `json:"actual_amount"`
}

// CumulativeAggregate sums plan and actual for one project across periods.
type CumulativeAggregate struct {
	ProjectName string  `json:"project_name"`
	TotalPlan   float64 `json:"total_plan"`
	TotalActual float64 `json:"total_actual"`
}

// DesignCumulative is a project's design quantity against its cumulative-to-date
// quantity, as read from a single document.
type DesignCumulative struct {
	ProjectName        string  `json:"project_name"`
	DesignQuantity     float64 `json:"design_quantity"`
	CumulativeQuantity float64 `json:"cumulative_quantity"`
}

// IngestedDocument is one entry of the ingest log.
type IngestedDocument struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Period     Period    `json:"period"`
	TableIndex int       `json:"table_index"`
	Records    int       `json:"records"`
	Dropped    int       `json:"dropped"`
	RunID      string    `json:"run_id"`
	IngestedAt time.Time `json:"ingested_at"`
}
