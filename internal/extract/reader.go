// Package extract reads the tables of report documents into models.Document.
//
// Every table becomes a grid whose first non-empty row is the header. Merged
// cells are expanded so each grid column carries the merged cell's text.
package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// SupportedExtensions lists the file extensions with a table reader.
var SupportedExtensions = []string{".docx", ".xlsx", ".ods", ".odt"}

// Supported reports whether ext (with leading dot, any case) has a table reader.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Reader reads tables from document files.
type Reader struct{}

// NewReader returns a new Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read reads the file at path. The document is named after the file's base name.
func (r *Reader) Read(path string) (*models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return r.ReadBytes(filepath.Base(path), content)
}

// ReadBytes reads the tables of content, choosing the format from name's extension.
// Formats without a reader yield models.ErrUnsupportedFormat.
func (r *Reader) ReadBytes(name string, content []byte) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(name))
	var (
		tables []models.Table
		err    error
	)
	switch ext {
	case ".docx":
		tables, err = readDocxTables(content)
	case ".xlsx":
		tables, err = readXLSXTables(content)
	case ".ods", ".odt":
		tables, err = readODFTables(content)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return &models.Document{Name: name, Tables: tables}, nil
}

// gridToTable splits a grid into header and data rows. Leading empty rows
// are skipped; a grid with no content yields a table without header.
func gridToTable(grid [][]string) models.Table {
	for len(grid) > 0 && emptyRow(grid[0]) {
		grid = grid[1:]
	}
	if len(grid) == 0 {
		return models.Table{}
	}
	return models.Table{Header: grid[0], Rows: grid[1:]}
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// readZipFile returns the content of the named member of zr.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%s not found", name)
}
