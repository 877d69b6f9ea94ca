// Package aggregate builds the period and cumulative views over normalized records.
//
// Snapshot views read one document's records as they are. Accumulating views
// group records by project and sum them; sums are carried in decimal so adding
// many report figures introduces no binary rounding of its own.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// PeriodComparison is the snapshot plan-vs-actual view: one row per record, in record order.
func PeriodComparison(records []models.NormalizedRecord) []models.PeriodAggregate {
	out := make([]models.PeriodAggregate, 0, len(records))
	for _, r := range records {
		out = append(out, models.PeriodAggregate{
			Period:       r.Period,
			ProjectName:  r.ProjectName,
			PlanAmount:   r.PlanAmount,
			ActualAmount: r.ActualAmount,
		})
	}
	return out
}

// DesignVsCumulative is the snapshot design-vs-cumulative view. Values are the
// document's own columns; records missing either value are left out.
func DesignVsCumulative(records []models.NormalizedRecord) []models.DesignCumulative {
	out := make([]models.DesignCumulative, 0, len(records))
	for _, r := range records {
		if r.DesignQuantity == nil || r.CumulativeQuantity == nil {
			continue
		}
		out = append(out, models.DesignCumulative{
			ProjectName:        r.ProjectName,
			DesignQuantity:     *r.DesignQuantity,
			CumulativeQuantity: *r.CumulativeQuantity,
		})
	}
	return out
}

// sums accumulates plan and actual per project in first-seen order.
type sums struct {
	order  []string
	plan   map[string]decimal.Decimal
	actual map[string]decimal.Decimal
}

func newSums() *sums {
	return &sums{
		plan:   make(map[string]decimal.Decimal),
		actual: make(map[string]decimal.Decimal),
	}
}

func (s *sums) add(r models.NormalizedRecord) {
	name := r.ProjectName
	if _, seen := s.plan[name]; !seen {
		s.order = append(s.order, name)
		s.plan[name] = decimal.Zero
		s.actual[name] = decimal.Zero
	}
	s.plan[name] = s.plan[name].Add(decimal.NewFromFloat(r.PlanAmount))
	s.actual[name] = s.actual[name].Add(decimal.NewFromFloat(r.ActualAmount))
}

func (s *sums) totals(name string) (plan, actual float64) {
	return s.plan[name].InexactFloat64(), s.actual[name].InexactFloat64()
}

// PeriodView groups the records of period by project, summing duplicates.
// Records of other periods are ignored. Projects appear in first-seen order.
func PeriodView(records []models.NormalizedRecord, period models.Period) []models.PeriodAggregate {
	s := newSums()
	for _, r := range records {
		if r.Period == period {
			s.add(r)
		}
	}
	out := make([]models.PeriodAggregate, 0, len(s.order))
	for _, name := range s.order {
		plan, actual := s.totals(name)
		out = append(out, models.PeriodAggregate{
			Period:       period,
			ProjectName:  name,
			PlanAmount:   plan,
			ActualAmount: actual,
		})
	}
	return out
}

// CumulativeView sums plan and actual per project across every record given.
// Projects appear in first-seen order.
func CumulativeView(records []models.NormalizedRecord) []models.CumulativeAggregate {
	s := newSums()
	for _, r := range records {
		s.add(r)
	}
	out := make([]models.CumulativeAggregate, 0, len(s.order))
	for _, name := range s.order {
		plan, actual := s.totals(name)
		out = append(out, models.CumulativeAggregate{
			ProjectName: name,
			TotalPlan:   plan,
			TotalActual: actual,
		})
	}
	return out
}

// PeriodDesign groups the records of period that carry both design and
// cumulative quantities by project, summing duplicates from several source
// documents. With one record per project it equals DesignVsCumulative.
func PeriodDesign(records []models.NormalizedRecord, period models.Period) []models.DesignCumulative {
	var order []string
	design := make(map[string]decimal.Decimal)
	cumulative := make(map[string]decimal.Decimal)
	for _, r := range records {
		if r.Period != period || r.DesignQuantity == nil || r.CumulativeQuantity == nil {
			continue
		}
		name := r.ProjectName
		if _, seen := design[name]; !seen {
			order = append(order, name)
		}
		design[name] = design[name].Add(decimal.NewFromFloat(*r.DesignQuantity))
		cumulative[name] = cumulative[name].Add(decimal.NewFromFloat(*r.CumulativeQuantity))
	}
	out := make([]models.DesignCumulative, 0, len(order))
	for _, name := range order {
		out = append(out, models.DesignCumulative{
			ProjectName:        name,
			DesignQuantity:     design[name].InexactFloat64(),
			CumulativeQuantity: cumulative[name].InexactFloat64(),
		})
	}
	return out
}

// Merge collapses records sharing a store key into one, summing plan and actual
// and any optional quantities present. It keeps a document that repeats a
// project name from losing rows when persisted under the
// (period, project, source) key.
func Merge(records []models.NormalizedRecord) []models.NormalizedRecord {
	index := make(map[models.RecordKey]int, len(records))
	out := make([]models.NormalizedRecord, 0, len(records))
	for _, r := range records {
		i, ok := index[r.Key()]
		if !ok {
			index[r.Key()] = len(out)
			out = append(out, copyRecord(r))
			continue
		}
		cur := &out[i]
		cur.PlanAmount = addFloat(cur.PlanAmount, r.PlanAmount)
		cur.ActualAmount = addFloat(cur.ActualAmount, r.ActualAmount)
		cur.DesignQuantity = addOptional(cur.DesignQuantity, r.DesignQuantity)
		cur.CumulativeQuantity = addOptional(cur.CumulativeQuantity, r.CumulativeQuantity)
	}
	return out
}

func copyRecord(r models.NormalizedRecord) models.NormalizedRecord {
	if r.DesignQuantity != nil {
		v := *r.DesignQuantity
		r.DesignQuantity = &v
	}
	if r.CumulativeQuantity != nil {
		v := *r.CumulativeQuantity
		r.CumulativeQuantity = &v
	}
	return r
}

func addFloat(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

func addOptional(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		return a
	}
	v := addFloat(*a, *b)
	return &v
}
