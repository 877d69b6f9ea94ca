// Package cli renders query results for the progressvis command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Larry-Leee/progressVisualisation/internal/ingest"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/projectindex"
	"github.com/Larry-Leee/progressVisualisation/internal/query"
	"github.com/Larry-Leee/progressVisualisation/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable aligned tables (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatNumber prints v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WritePeriodView writes plan vs actual rows for one period.
func WritePeriodView(w io.Writer, period models.Period, rows []models.PeriodAggregate, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, query.PeriodSection{Period: period, Rows: rows})
	}
	fmt.Fprintf(w, "\nPeriod %s: %d projects\n\n", period, len(rows))
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r.ProjectName, FormatNumber(r.PlanAmount), FormatNumber(r.ActualAmount)}
	}
	writeTable(w, []string{"项目", "计划", "完成"}, cells)
	return nil
}

// WriteCumulativeView writes plan and actual totals per project.
func WriteCumulativeView(w io.Writer, rows []models.CumulativeAggregate, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rows)
	}
	fmt.Fprintf(w, "\nCumulative totals: %d projects\n\n", len(rows))
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r.ProjectName, FormatNumber(r.TotalPlan), FormatNumber(r.TotalActual)}
	}
	writeTable(w, []string{"项目", "累计计划", "累计完成"}, cells)
	return nil
}

// WriteSnapshot writes both snapshot views of one document.
func WriteSnapshot(w io.Writer, snap *query.Snapshot, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, snap)
	}
	fmt.Fprintf(w, "\n%s (table %d", snap.Source, snap.TableIndex)
	if snap.Period != "" {
		fmt.Fprintf(w, ", period %s", snap.Period)
	}
	fmt.Fprintf(w, ", %d rows dropped)\n\n", snap.Dropped)

	fmt.Fprintln(w, "--- 计划工程量 vs 实际工程量 ---")
	plan := make([][]string, len(snap.PlanVsActual))
	for i, r := range snap.PlanVsActual {
		plan[i] = []string{r.ProjectName, FormatNumber(r.PlanAmount), FormatNumber(r.ActualAmount)}
	}
	writeTable(w, []string{"项目", "计划", "完成"}, plan)

	fmt.Fprintln(w, "\n--- 设计工程量 vs 开累完成工程量 ---")
	design := make([][]string, len(snap.DesignVsCumulative))
	for i, r := range snap.DesignVsCumulative {
		design[i] = []string{r.ProjectName, FormatNumber(r.DesignQuantity), FormatNumber(r.CumulativeQuantity)}
	}
	writeTable(w, []string{"项目", "设计", "开累完成"}, design)
	return nil
}

// WriteIngestResult writes the outcome of ingesting one document.
func WriteIngestResult(w io.Writer, res *ingest.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Skipped {
		fmt.Fprintf(w, "%s: unchanged for %s, skipped\n", res.Source, res.Period)
		return nil
	}
	fmt.Fprintf(w, "%s: %d records for %s from table %d", res.Source, len(res.Records), res.Period, res.TableIndex)
	if res.Dropped > 0 {
		fmt.Fprintf(w, " (%d rows dropped)", res.Dropped)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteBatchResult writes the outcome of ingesting a directory.
func WriteBatchResult(w io.Writer, batch *ingest.BatchResult, format OutputFormat) error {
	if format == OutputJSON {
		type failure struct {
			Path  string `json:"path"`
			Error string `json:"error"`
		}
		out := struct {
			Results []*ingest.Result `json:"results"`
			Failed  []failure        `json:"failed"`
		}{Results: batch.Results}
		for _, f := range batch.Failed {
			out.Failed = append(out.Failed, failure{Path: f.Path, Error: f.Err.Error()})
		}
		return writeJSON(w, out)
	}
	for _, res := range batch.Results {
		_ = WriteIngestResult(w, res, OutputText)
	}
	for _, f := range batch.Failed {
		fmt.Fprintf(w, "FAILED %s\n", f.Error())
	}
	fmt.Fprintf(w, "\n%d ingested, %d failed\n", len(batch.Results), len(batch.Failed))
	return nil
}

// WriteProjectHits writes project search hits.
func WriteProjectHits(w io.Writer, hits []*projectindex.Hit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []*projectindex.Hit{}
		}
		return writeJSON(w, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matching projects")
		return nil
	}
	cells := make([][]string, len(hits))
	for i, h := range hits {
		periods := make([]string, len(h.Periods))
		for j, p := range h.Periods {
			periods[j] = string(p)
		}
		cells[i] = []string{utils.Truncate(h.ProjectName, 40), fmt.Sprintf("%.3f", h.Score), strings.Join(periods, ", ")}
	}
	writeTable(w, []string{"项目", "Score", "Periods"}, cells)
	return nil
}

// WriteStatus writes store statistics.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Records:         %d\n", st.Records)
	fmt.Fprintf(w, "Documents:       %d\n", st.Documents)
	fmt.Fprintf(w, "Periods:         %d", len(st.Periods))
	if n := len(st.Periods); n > 0 {
		fmt.Fprintf(w, " (%s .. %s)", st.Periods[0], st.Periods[n-1])
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Project entries: %d\n", st.ProjectEntries)
	fmt.Fprintf(w, "Disk usage:      %s (database %s, project index %s)\n",
		FormatBytes(st.DatabaseBytes+st.ProjectIndexBytes), FormatBytes(st.DatabaseBytes), FormatBytes(st.ProjectIndexBytes))
	return nil
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// writeTable writes an aligned table. The first column is left-aligned and
// the rest right-aligned, measured in terminal columns so CJK names line up.
func writeTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utils.Width(h)
	}
	for _, row := range rows {
		for i, c := range row {
			if i < len(widths) && utils.Width(c) > widths[i] {
				widths[i] = utils.Width(c)
			}
		}
	}
	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			c := models.Cell(cells, i)
			if i == 0 {
				parts[i] = utils.PadRight(c, widths[i])
			} else {
				parts[i] = utils.PadLeft(c, widths[i])
			}
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(header)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("─", n)
	}
	fmt.Fprintln(w, strings.Join(sep, "  "))
	for _, row := range rows {
		line(row)
	}
}
