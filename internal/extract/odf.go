package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// odfContentPath is the path to the main content inside an OpenDocument zip.
const odfContentPath = "content.xml"

// odfTableNS is the OpenDocument table namespace.
const odfTableNS = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"

// readODFTables returns the <table:table> elements of an .ods or .odt file.
// Spreadsheets yield one table per sheet.
func readODFTables(content []byte) ([]models.Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip: %w", err)
	}
	data, err := readZipFile(zr, odfContentPath)
	if err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var tables []models.Table
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return tables, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse content: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Space != odfTableNS || start.Name.Local != "table" {
			continue
		}
		grid, err := parseODFTable(dec)
		if err != nil {
			return nil, err
		}
		tables = append(tables, gridToTable(grid))
	}
}

// parseODFTable consumes tokens up to the end of the current <table:table>.
//
// Repeated empty cells and rows are only materialized when content follows
// them, so the padding spreadsheets write to the sheet edge is dropped.
// A covered cell takes the text of the spanning cell to its left, or of the
// cell above when the span is vertical.
func parseODFTable(dec *xml.Decoder) ([][]string, error) {
	var (
		grid        [][]string
		prev        []string
		row         []string
		pendingRows int
		pendingCols int
		rowRepeat   int
		cellRepeat  int
		covered     bool
		spanText    string
		spanLeft    int
		cellSpan    int
		cellValue   string
		paras       []string
		para        strings.Builder
		inPara      bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse table: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("parse nested table: %w", err)
				}
			case "table-row":
				row = nil
				pendingCols = 0
				spanLeft = 0
				rowRepeat = intAttr(t, "number-rows-repeated")
			case "table-cell", "covered-table-cell":
				covered = t.Name.Local == "covered-table-cell"
				cellRepeat = intAttr(t, "number-columns-repeated")
				cellSpan = intAttr(t, "number-columns-spanned")
				cellValue = numericValue(t)
				paras = nil
			case "p", "h":
				para.Reset()
				inPara = true
			case "s":
				if inPara {
					para.WriteString(strings.Repeat(" ", intAttr(t, "c")))
				}
			case "tab":
				if inPara {
					para.WriteByte('\t')
				}
			case "line-break":
				if inPara {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inPara {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "h":
				paras = append(paras, para.String())
				inPara = false
			case "table-cell", "covered-table-cell":
				text := strings.Join(paras, "\n")
				if cellValue != "" {
					text = cellValue
				}
				col := len(row) + pendingCols
				switch {
				case covered && spanLeft > 0:
					text = spanText
					spanLeft -= cellRepeat
				case covered:
					text = models.Cell(prev, col)
				case cellSpan > 1:
					spanText = text
					spanLeft = cellSpan - 1
				}
				if text == "" {
					pendingCols += cellRepeat
					continue
				}
				for ; pendingCols > 0; pendingCols-- {
					row = append(row, "")
				}
				for i := 0; i < cellRepeat; i++ {
					row = append(row, text)
				}
			case "table-row":
				if len(row) == 0 {
					if len(grid) > 0 {
						pendingRows += rowRepeat
					}
					continue
				}
				for ; pendingRows > 0; pendingRows-- {
					grid = append(grid, nil)
				}
				for i := 0; i < rowRepeat; i++ {
					grid = append(grid, append([]string(nil), row...))
				}
				prev = row
			case "table":
				return grid, nil
			}
		}
	}
}

// numericValue returns the office:value of a float, percentage or currency
// cell. The <text:p> of such a cell is display text in the cell's number
// format ("1,500", "¥1,500.00") which the number parser rejects.
func numericValue(e xml.StartElement) string {
	switch attr(e, "value-type") {
	case "float", "percentage", "currency":
		return attr(e, "value")
	}
	return ""
}

// intAttr returns a positive integer attribute, or 1 when absent or invalid.
func intAttr(e xml.StartElement, local string) int {
	if n, err := strconv.Atoi(attr(e, local)); err == nil && n > 0 {
		return n
	}
	return 1
}
