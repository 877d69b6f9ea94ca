package models

// Status summarizes what the store holds.
type Status struct {
	Records           int64    `json:"records"`
	Documents         int64    `json:"documents"`
	Periods           []Period `json:"periods"`
	ProjectEntries    uint64   `json:"project_entries"`
	DatabaseBytes     int64    `json:"database_bytes"`
	ProjectIndexBytes int64    `json:"project_index_bytes"`
}
