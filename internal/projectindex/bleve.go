package projectindex

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// entry is the indexed unit: one project in one period.
type entry struct {
	Name   string `json:"name"`
	Period string `json:"period"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// Project names are mostly Chinese, so the name field uses the CJK bigram
// analyzer; Latin names are lowercased and tokenized on word boundaries.
// If you change the mapping, remove the index directory; the server
// rebuilds it from the store when it opens empty.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	nameMapping := bleve.NewTextFieldMapping()
	nameMapping.Analyzer = cjk.AnalyzerName
	nameMapping.Store = true
	docMapping.AddFieldMappingsAt("name", nameMapping)
	periodMapping := bleve.NewKeywordFieldMapping()
	periodMapping.Store = true
	docMapping.AddFieldMappingsAt("period", periodMapping)
	im.AddDocumentMapping("project", docMapping)
	im.DefaultType = "project"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func entryID(name string, period models.Period) string {
	return string(period) + "/" + name
}

// IndexRecords indexes the distinct (project, period) pairs of records in one batch.
// Records with an empty project name are not searchable and are skipped.
func (b *BleveIndex) IndexRecords(ctx context.Context, records []models.NormalizedRecord) error {
	batch := b.index.NewBatch()
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.ProjectName == "" {
			continue
		}
		id := entryID(r.ProjectName, r.Period)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if err := batch.Index(id, entry{Name: r.ProjectName, Period: string(r.Period)}); err != nil {
			return fmt.Errorf("failed to batch project %q: %w", r.ProjectName, err)
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index projects: %w", err)
	}
	return nil
}

// Search matches query against project names and returns up to limit
// projects, best first. Each project's hits across periods are folded into
// one Hit scored by its best period hit.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(buildQuery(query))
	// One project usually has an entry per month; fetch enough to fill limit.
	req.Size = limit * 24
	req.Fields = []string{"name", "period"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	byName := make(map[string]*Hit)
	var order []*Hit
	for _, hit := range results.Hits {
		name, _ := hit.Fields["name"].(string)
		period, _ := hit.Fields["period"].(string)
		if name == "" {
			continue
		}
		h, ok := byName[name]
		if !ok {
			h = &Hit{ProjectName: name, Score: hit.Score}
			byName[name] = h
			order = append(order, h)
		}
		if hit.Score > h.Score {
			h.Score = hit.Score
		}
		if period != "" {
			h.Periods = append(h.Periods, models.Period(period))
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].Score > order[j].Score })
	if len(order) > limit {
		order = order[:limit]
	}
	for _, h := range order {
		sort.Slice(h.Periods, func(i, j int) bool { return h.Periods[i] < h.Periods[j] })
	}
	return order, nil
}

// buildQuery matches the analyzed query and, for single Latin terms, also
// tolerates one typo.
func buildQuery(query string) blevequery.Query {
	mq := bleve.NewMatchQuery(query)
	mq.SetField("name")
	if strings.ContainsAny(query, " \t") || !isASCII(query) {
		return mq
	}
	fq := bleve.NewFuzzyQuery(strings.ToLower(query))
	fq.SetField("name")
	fq.SetFuzziness(1)
	return bleve.NewDisjunctionQuery(mq, fq)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// DocCount returns the number of indexed (project, period) entries.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
