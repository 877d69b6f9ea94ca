// Package models defines the core data structures shared by the table engine:
// documents and their tables, column mappings, normalized records and aggregates.
package models

// Document is a read-only input: a named, ordered list of tables.
type Document struct {
	Name   string  `json:"name"`
	Tables []Table `json:"tables"`
}

// Table is a grid with a single header row. Rows are aligned to Header;
// a row may be shorter or longer than the header.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Cell returns the cell at column idx of row, or "" when the row is short.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
