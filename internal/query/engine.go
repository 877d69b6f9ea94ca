// Package query answers the views rendering collaborators consume: per-period
// and cumulative plan vs actual from the store, and single-document snapshots
// that never touch the store.
package query

import (
	"context"
	"fmt"

	"github.com/Larry-Leee/progressVisualisation/internal/aggregate"
	"github.com/Larry-Leee/progressVisualisation/internal/extract"
	"github.com/Larry-Leee/progressVisualisation/internal/ingest"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/storage"
)

// Engine answers period, cumulative and snapshot queries.
type Engine struct {
	store    storage.Storage
	pipeline *ingest.Pipeline
	reader   *extract.Reader
}

// NewEngine creates an engine. store may be nil when only snapshots are needed.
func NewEngine(store storage.Storage, pipeline *ingest.Pipeline, reader *extract.Reader) *Engine {
	if reader == nil {
		reader = extract.NewReader()
	}
	return &Engine{store: store, pipeline: pipeline, reader: reader}
}

// Periods returns the stored periods in ascending order.
func (e *Engine) Periods(ctx context.Context) ([]models.Period, error) {
	return e.store.Periods(ctx)
}

// PeriodView returns plan vs actual per project for period, summed over
// duplicate project names, in first-stored order. A period without records
// yields an empty view.
func (e *Engine) PeriodView(ctx context.Context, period models.Period) ([]models.PeriodAggregate, error) {
	if _, err := models.ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	records, err := e.store.RecordsByPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	return aggregate.PeriodView(records, period), nil
}

// CumulativeView returns plan and actual totals per project across all stored periods.
func (e *Engine) CumulativeView(ctx context.Context) ([]models.CumulativeAggregate, error) {
	records, err := e.store.AllRecords(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.CumulativeView(records), nil
}

// Snapshot is the single-document view: the document's own plan vs actual and
// design vs cumulative columns.
type Snapshot struct {
	Source             string                    `json:"source_document"`
	Period             models.Period             `json:"period,omitempty"`
	TableIndex         int                       `json:"table_index"`
	Dropped            int                       `json:"dropped"`
	PlanVsActual       []models.PeriodAggregate  `json:"plan_vs_actual"`
	DesignVsCumulative []models.DesignCumulative `json:"design_vs_cumulative"`
}

// Snapshot runs doc through the pipeline without consulting the store.
// period only labels the plan vs actual rows and may be empty.
func (e *Engine) Snapshot(doc *models.Document, period models.Period) (*Snapshot, error) {
	res, err := e.pipeline.Process(doc, period)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Source:             res.Source,
		Period:             period,
		TableIndex:         res.TableIndex,
		Dropped:            res.Dropped,
		PlanVsActual:       aggregate.PeriodComparison(res.Records),
		DesignVsCumulative: aggregate.DesignVsCumulative(res.Records),
	}, nil
}

// SnapshotDesignVsCumulative returns the design vs cumulative view of doc.
func (e *Engine) SnapshotDesignVsCumulative(doc *models.Document) ([]models.DesignCumulative, error) {
	snap, err := e.Snapshot(doc, "")
	if err != nil {
		return nil, err
	}
	return snap.DesignVsCumulative, nil
}

// SnapshotBytes reads a document and snapshots it. An empty period is
// inferred from name when possible.
func (e *Engine) SnapshotBytes(name string, content []byte, period models.Period) (*Snapshot, error) {
	if period == "" {
		period, _ = models.PeriodFromName(name)
	} else if _, err := models.ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	doc, err := e.reader.ReadBytes(name, content)
	if err != nil {
		return nil, err
	}
	return e.Snapshot(doc, period)
}

// PeriodSection is one period of a Report.
type PeriodSection struct {
	Period models.Period             `json:"period"`
	Rows   []models.PeriodAggregate  `json:"rows"`
	Design []models.DesignCumulative `json:"design,omitempty"`
}

// Report bundles period views and the cumulative view for export.
type Report struct {
	Periods    []PeriodSection              `json:"periods"`
	Cumulative []models.CumulativeAggregate `json:"cumulative"`
}

// Report assembles the views of periods, or of every stored period when none
// are given. Each period carries its design vs cumulative quantities next to
// plan vs actual.
func (e *Engine) Report(ctx context.Context, periods []models.Period) (*Report, error) {
	if len(periods) == 0 {
		stored, err := e.Periods(ctx)
		if err != nil {
			return nil, err
		}
		periods = stored
	}
	rep := &Report{}
	for _, p := range periods {
		if _, err := models.ParsePeriod(string(p)); err != nil {
			return nil, err
		}
		records, err := e.store.RecordsByPeriod(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("period %s: %w", p, err)
		}
		rep.Periods = append(rep.Periods, PeriodSection{
			Period: p,
			Rows:   aggregate.PeriodView(records, p),
			Design: aggregate.PeriodDesign(records, p),
		})
	}
	cum, err := e.CumulativeView(ctx)
	if err != nil {
		return nil, err
	}
	rep.Cumulative = cum
	return rep, nil
}
