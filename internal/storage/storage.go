// Package storage defines the persistence gateway for normalized records and
// the ingest log.
package storage

import (
	"context"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// Storage persists normalized records keyed by (period, project, source document).
// Records are upserted on that key and never deleted.
type Storage interface {
	// Record operations
	UpsertRecords(ctx context.Context, records []models.NormalizedRecord) error
	RecordsByPeriod(ctx context.Context, period models.Period) ([]models.NormalizedRecord, error)
	AllRecords(ctx context.Context) ([]models.NormalizedRecord, error)
	Periods(ctx context.Context) ([]models.Period, error)

	// Ingest log
	RecordIngest(ctx context.Context, doc *models.IngestedDocument) error
	GetIngest(ctx context.Context, id string, period models.Period) (*models.IngestedDocument, error)
	ListIngests(ctx context.Context, offset, limit int) ([]*models.IngestedDocument, error)

	// Stats
	CountRecords(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
