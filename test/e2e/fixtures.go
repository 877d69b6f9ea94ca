// Package e2e provides end-to-end tests; this file writes progress reports in every supported format.
package e2e

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// ReportFormats are the file extensions the end-to-end tests write.
var ReportFormats = []string{".docx", ".xlsx", ".ods", ".odt"}

// WriteReport encodes tables as a document of the given extension. Word and
// Writer documents hold the tables in body order; workbooks hold one table per sheet.
func WriteReport(ext string, tables []models.Table) ([]byte, error) {
	switch ext {
	case ".docx":
		return docxReport(tables)
	case ".xlsx":
		return xlsxReport(tables)
	case ".ods", ".odt":
		return odfReport(tables)
	default:
		return nil, fmt.Errorf("no fixture writer for %s", ext)
	}
}

func rowsOf(t models.Table) [][]string {
	return append([][]string{t.Header}, t.Rows...)
}

func docxReport(tables []models.Table) ([]byte, error) {
	var body strings.Builder
	for i, t := range tables {
		fmt.Fprintf(&body, `<w:p><w:r><w:t>表%d</w:t></w:r></w:p><w:tbl>`, i+1)
		for _, row := range rowsOf(t) {
			body.WriteString("<w:tr>")
			for _, c := range row {
				body.WriteString("<w:tc><w:p><w:r><w:t>" + html.EscapeString(c) + "</w:t></w:r></w:p></w:tc>")
			}
			body.WriteString("</w:tr>")
		}
		body.WriteString("</w:tbl>")
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func xlsxReport(tables []models.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, t := range tables {
		sheet := fmt.Sprintf("表%d", i+1)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		for r, row := range rowsOf(t) {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, err
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return nil, err
			}
		}
	}
	if len(tables) > 0 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func odfReport(tables []models.Table) ([]byte, error) {
	var body strings.Builder
	for i, t := range tables {
		fmt.Fprintf(&body, `<table:table table:name="表%d">`, i+1)
		for _, row := range rowsOf(t) {
			body.WriteString("<table:table-row>")
			for _, c := range row {
				body.WriteString("<table:table-cell><text:p>" + html.EscapeString(c) + "</text:p></table:table-cell>")
			}
			body.WriteString("</table:table-row>")
		}
		body.WriteString("</table:table>")
	}
	contentXML := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
		`xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" ` +
		`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">` +
		`<office:body><office:spreadsheet>` + body.String() + `</office:spreadsheet></office:body></office:document-content>`
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("content.xml")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write([]byte(contentXML)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
