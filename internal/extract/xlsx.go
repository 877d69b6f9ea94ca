package extract

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// readXLSXTables returns one table per worksheet, in sheet order. Cells are
// read raw: a numeric cell formatted "#,##0" yields "1500", not "1,500".
func readXLSXTables(content []byte) ([]models.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var tables []models.Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		merges, err := f.GetMergeCells(sheet)
		if err != nil {
			return nil, fmt.Errorf("get merged cells for sheet %q: %w", sheet, err)
		}
		for _, m := range merges {
			value, err := f.GetCellValue(sheet, m.GetStartAxis(), excelize.Options{RawCellValue: true})
			if err != nil {
				return nil, fmt.Errorf("sheet %q: %w", sheet, err)
			}
			rows, err = fillMerged(rows, m.GetStartAxis(), m.GetEndAxis(), value)
			if err != nil {
				return nil, fmt.Errorf("sheet %q: %w", sheet, err)
			}
		}
		tables = append(tables, gridToTable(rows))
	}
	return tables, nil
}

// fillMerged writes value into every cell of the range start:end, growing
// rows as needed.
func fillMerged(rows [][]string, start, end, value string) ([][]string, error) {
	c1, r1, err := excelize.CellNameToCoordinates(start)
	if err != nil {
		return nil, err
	}
	c2, r2, err := excelize.CellNameToCoordinates(end)
	if err != nil {
		return nil, err
	}
	for len(rows) < r2 {
		rows = append(rows, nil)
	}
	for r := r1 - 1; r < r2; r++ {
		for len(rows[r]) < c2 {
			rows[r] = append(rows[r], "")
		}
		for c := c1 - 1; c < c2; c++ {
			rows[r][c] = value
		}
	}
	return rows, nil
}
