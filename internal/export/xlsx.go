package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/query"
)

// CumulativeSheet is the name of the workbook sheet holding cumulative totals.
const CumulativeSheet = "累计"

var (
	cumulativeHeader = []interface{}{"项目", "计划工程量", "实际工程量", "完成率"}
	periodHeader     = append(append([]interface{}{}, cumulativeHeader...), "设计工程量", "开累完成工程量", "开累完成率")
)

// WriteWorkbook writes rep as an XLSX workbook: one sheet per period and a
// CumulativeSheet. Every sheet has a plan vs actual column chart beside the
// table; period sheets with design quantities get a design vs cumulative chart
// below it.
func WriteWorkbook(w io.Writer, rep *query.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		return fmt.Errorf("create percent style: %w", err)
	}
	styles := sheetStyles{header: header, percent: percent}

	for _, sec := range rep.Periods {
		// Design rows come from the same records as Rows, so every project has a row.
		design := make(map[string]models.DesignCumulative, len(sec.Design))
		for _, d := range sec.Design {
			design[d.ProjectName] = d
		}
		rows := make([]sheetRow, len(sec.Rows))
		for i, r := range sec.Rows {
			rows[i] = sheetRow{name: r.ProjectName, plan: r.PlanAmount, actual: r.ActualAmount}
			if d, ok := design[r.ProjectName]; ok {
				rows[i].design = &d
			}
		}
		if err := writeSheet(f, string(sec.Period), periodHeader, rows, styles); err != nil {
			return err
		}
	}
	rows := make([]sheetRow, len(rep.Cumulative))
	for i, r := range rep.Cumulative {
		rows[i] = sheetRow{name: r.ProjectName, plan: r.TotalPlan, actual: r.TotalActual}
	}
	if err := writeSheet(f, CumulativeSheet, cumulativeHeader, rows, styles); err != nil {
		return err
	}

	// NewFile starts with Sheet1; drop it now that real sheets exist.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	header, percent int
}

type sheetRow struct {
	name         string
	plan, actual float64
	design       *models.DesignCumulative
}

// values lays a row out under periodHeader; nil leaves a cell empty.
func (r sheetRow) values() []interface{} {
	values := []interface{}{r.name, r.plan, r.actual, nil}
	if r.plan != 0 {
		values[3] = r.actual / r.plan
	}
	if r.design != nil {
		values = append(values, r.design.DesignQuantity, r.design.CumulativeQuantity, nil)
		if r.design.DesignQuantity != 0 {
			values[6] = r.design.CumulativeQuantity / r.design.DesignQuantity
		}
	}
	return values
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows []sheetRow, styles sheetStyles) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheet, err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("sheet %q header: %w", sheet, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", styles.header); err != nil {
		return err
	}
	hasDesign := false
	for i, r := range rows {
		hasDesign = hasDesign || r.design != nil
		for j, v := range r.values() {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("sheet %q cell %s: %w", sheet, cell, err)
			}
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", lastCol, 14); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	last := len(rows) + 1
	percentCols := []string{"D"}
	if len(header) == len(periodHeader) {
		percentCols = append(percentCols, "G")
	}
	for _, col := range percentCols {
		if err := f.SetCellStyle(sheet, col+"2", fmt.Sprintf("%s%d", col, last), styles.percent); err != nil {
			return err
		}
	}
	chartCol, err := excelize.ColumnNumberToName(len(header) + 2)
	if err != nil {
		return err
	}
	if err := addColumnChart(f, sheet, chartCol+"2", last, "B", "C"); err != nil {
		return err
	}
	if !hasDesign {
		return nil
	}
	return addColumnChart(f, sheet, chartCol+"20", last, "E", "F")
}

// addColumnChart places a clustered column chart of two value columns,
// named by their header cells, over the project names in column A.
func addColumnChart(f *excelize.File, sheet, anchor string, last int, colA, colB string) error {
	ref := func(col string) string {
		return fmt.Sprintf("'%s'!$%s$2:$%s$%d", sheet, col, col, last)
	}
	series := make([]excelize.ChartSeries, 0, 2)
	for _, col := range []string{colA, colB} {
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("'%s'!$%s$1", sheet, col),
			Categories: ref("A"),
			Values:     ref(col),
		})
	}
	return f.AddChart(sheet, anchor, &excelize.Chart{Type: excelize.Col, Series: series})
}
