// Package ingest runs report documents through the table engine and persists
// the resulting records.
package ingest

import (
	"errors"
	"fmt"

	"github.com/Larry-Leee/progressVisualisation/internal/columns"
	"github.com/Larry-Leee/progressVisualisation/internal/locator"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/records"
)

// Result is the outcome of running one document through the pipeline.
type Result struct {
	Source string        `json:"source_document"`
	Period models.Period `json:"period"`
	// TableIndex is the position of the used table among all tables of the document.
	TableIndex int                       `json:"table_index"`
	Mapping    models.ColumnMapping      `json:"mapping"`
	Records    []models.NormalizedRecord `json:"records"`
	Dropped    int                       `json:"dropped"`
	// Skipped is set when the same content was already ingested for the period.
	Skipped bool   `json:"skipped,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// Pipeline locates, maps and extracts the progress table of a document.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	locator *locator.Locator
	mapper  *columns.Mapper
}

// NewPipeline returns a pipeline qualifying tables with pred and mapping
// columns with table (nil for the default keyword table).
func NewPipeline(pred locator.Predicate, table columns.KeywordTable) *Pipeline {
	return &Pipeline{
		locator: locator.New(pred),
		mapper:  columns.NewMapper(table),
	}
}

// Process extracts the records of doc for period. The document name is the
// records' source.
//
// The selected table is mapped first; if it lacks a required header the
// remaining qualifying tables are tried in document order. The error of the
// selected table is returned when none maps.
func (p *Pipeline) Process(doc *models.Document, period models.Period) (*Result, error) {
	candidates, err := p.locator.Locate(doc)
	if err != nil {
		return nil, err
	}
	var firstErr error
	for _, c := range candidates {
		mapping, err := p.mapper.Map(c.Table.Header)
		if err != nil {
			if !errors.Is(err, models.ErrMappingFailed) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: table %d: %w", doc.Name, c.DocumentIndex, err)
			}
			continue
		}
		extracted := records.Extract(c.Table, mapping, period, doc.Name)
		return &Result{
			Source:     doc.Name,
			Period:     period,
			TableIndex: c.DocumentIndex,
			Mapping:    mapping,
			Records:    extracted.Records,
			Dropped:    extracted.Dropped,
		}, nil
	}
	return nil, firstErr
}
