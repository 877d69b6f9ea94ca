// Package projectindex provides full-text lookup of project line items by name.
package projectindex

import (
	"context"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// Index maps project names to the periods they were reported in.
type Index interface {
	// IndexRecords adds the (project, period) pairs of records. Re-adding a pair is a no-op.
	IndexRecords(ctx context.Context, records []models.NormalizedRecord) error
	Search(ctx context.Context, query string, limit int) ([]*Hit, error)
	DocCount() (uint64, error)
	Close() error
}

// Hit is a project matching a search, with the periods it appears in (ascending).
type Hit struct {
	ProjectName string          `json:"project_name"`
	Score       float64         `json:"score"`
	Periods     []models.Period `json:"periods"`
}
