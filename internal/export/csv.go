// Package export writes progress reports as XLSX workbooks or CSV files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/query"
)

// BOM is the UTF-8 byte order mark; Excel on Windows needs it to read Chinese CSV.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Section labels of CSV rows.
const (
	SectionPeriod     = "period"
	SectionCumulative = "cumulative"
)

// csvColumns defines the CSV header row.
var csvColumns = []string{"Section", "Period", "Project", "Plan", "Actual", "Design", "CumulativeQuantity"}

// CSVWriter wraps csv.Writer for exporting reports.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes CSV to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(csvColumns)
}

// WriteReport writes every period row, then the cumulative rows with an empty
// period. Period rows carry the project's design and cumulative quantities when
// the report has them; the other cells stay empty.
func (w *CSVWriter) WriteReport(rep *query.Report) error {
	for _, sec := range rep.Periods {
		design := make(map[string]models.DesignCumulative, len(sec.Design))
		for _, d := range sec.Design {
			design[d.ProjectName] = d
		}
		for _, r := range sec.Rows {
			row := []string{SectionPeriod, string(sec.Period), r.ProjectName, formatFloat(r.PlanAmount), formatFloat(r.ActualAmount), "", ""}
			if d, ok := design[r.ProjectName]; ok {
				row[5] = formatFloat(d.DesignQuantity)
				row[6] = formatFloat(d.CumulativeQuantity)
			}
			if err := w.csv.Write(row); err != nil {
				return err
			}
		}
	}
	for _, r := range rep.Cumulative {
		if err := w.csv.Write([]string{SectionCumulative, "", r.ProjectName, formatFloat(r.TotalPlan), formatFloat(r.TotalActual), "", ""}); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

// WriteCSV writes rep to w as BOM-prefixed CSV.
func WriteCSV(w io.Writer, rep *query.Report) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := NewCSVWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	if err := cw.WriteReport(rep); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
