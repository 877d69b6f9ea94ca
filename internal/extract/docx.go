package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, contentTypesPath)
	if err != nil {
		return ""
	}
	content := string(data)
	if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

// readDocxTables returns the top-level tables (<w:tbl>) of a .docx in
// document order. Tables nested inside cells are ignored.
func readDocxTables(content []byte) ([]models.Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip: %w", err)
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	data, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, err
	}
	return parseDocxTables(data)
}

func parseDocxTables(data []byte) ([]models.Table, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var tables []models.Table
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return tables, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "tbl" {
			continue
		}
		rows, err := parseDocxTable(dec)
		if err != nil {
			return nil, err
		}
		tables = append(tables, gridToTable(docxGrid(rows)))
	}
}

// docxCell is a <w:tc> as written, before spans are expanded.
type docxCell struct {
	text string
	span int
	// merged is set for cells carrying <w:vMerge>; restart marks the top cell.
	merged  bool
	restart bool
}

// parseDocxTable consumes tokens up to the end of the current <w:tbl>.
func parseDocxTable(dec *xml.Decoder) ([][]docxCell, error) {
	var (
		rows   [][]docxCell
		row    []docxCell
		cell   *docxCell
		paras  []string
		para   strings.Builder
		inRun  bool
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse table: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("parse nested table: %w", err)
				}
			case "tr":
				row = nil
			case "tc":
				cell = &docxCell{span: 1}
				paras = nil
			case "gridSpan":
				if cell != nil {
					if n, err := strconv.Atoi(attr(t, "val")); err == nil && n > 1 {
						cell.span = n
					}
				}
			case "vMerge":
				if cell != nil {
					cell.merged = true
					cell.restart = attr(t, "val") == "restart"
				}
			case "p":
				para.Reset()
			case "r":
				inRun = true
			case "t":
				inText = inRun
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				inRun = false
			case "p":
				if cell != nil {
					paras = append(paras, para.String())
				}
			case "tc":
				if cell != nil {
					cell.text = strings.Join(paras, "\n")
					row = append(row, *cell)
					cell = nil
				}
			case "tr":
				rows = append(rows, row)
				row = nil
			case "tbl":
				return rows, nil
			}
		}
	}
}

// docxGrid expands horizontal spans by repeating the cell text and fills
// vertical merge continuations with the text of the cell above.
func docxGrid(rows [][]docxCell) [][]string {
	grid := make([][]string, 0, len(rows))
	var prev []string
	for _, row := range rows {
		var line []string
		for _, c := range row {
			text := c.text
			if c.merged && !c.restart {
				text = models.Cell(prev, len(line))
			}
			for i := 0; i < c.span; i++ {
				line = append(line, text)
			}
		}
		grid = append(grid, line)
		prev = line
	}
	return grid
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
