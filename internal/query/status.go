package query

import (
	"context"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/projectindex"
	"github.com/Larry-Leee/progressVisualisation/internal/storage"
)

// CollectStatus counts what store and projects hold and measures their size
// on disk. projects may be nil.
func CollectStatus(ctx context.Context, store storage.Storage, projects projectindex.Index, databasePath, projectIndexPath string) (*models.Status, error) {
	records, err := store.CountRecords(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := store.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	periods, err := store.Periods(ctx)
	if err != nil {
		return nil, err
	}
	st := &models.Status{
		Records:   records,
		Documents: docs,
		Periods:   periods,
	}
	if projects != nil {
		n, err := projects.DocCount()
		if err != nil {
			return nil, err
		}
		st.ProjectEntries = n
	}
	fp, err := storage.MeasureFootprint(databasePath, projectIndexPath)
	if err != nil {
		return nil, err
	}
	st.DatabaseBytes = fp.DatabaseBytes
	st.ProjectIndexBytes = fp.ProjectIndexBytes
	return st, nil
}
