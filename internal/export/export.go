package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/query"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatFromPath picks the format from path's extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: export to %q", models.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Write writes rep to w in format.
func Write(w io.Writer, rep *query.Report, format Format) error {
	switch format {
	case FormatXLSX:
		return WriteWorkbook(w, rep)
	case FormatCSV:
		return WriteCSV(w, rep)
	default:
		return fmt.Errorf("%w: export format %q", models.ErrUnsupportedFormat, format)
	}
}

// WriteFile writes rep to path, creating parent directories. The format
// follows the extension.
func WriteFile(path string, rep *query.Report) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := Write(f, rep, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
