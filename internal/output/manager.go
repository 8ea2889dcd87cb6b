// internal/output/manager.go
package output

import (
	"fmt"
	"io"

	"github.com/valpere/PriceScrapexter/internal/utils"
)

// NewWriter returns the file writer for format.
func NewWriter(format OutputFormat, filename string, logger utils.Logger) (Writer, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(filename)
	case FormatJSON:
		return NewJSONWriter(filename)
	case FormatExcel:
		return NewExcelWriter(ExcelConfig{FilePath: filename, AutoFilter: true, FreezePane: true, Logger: logger})
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// NewStreamWriter returns a writer for format that writes to w.
func NewStreamWriter(format OutputFormat, w io.Writer, logger utils.Logger) (Writer, error) {
	switch format {
	case FormatCSV:
		return NewCSVStreamWriter(w), nil
	case FormatJSON:
		return NewJSONStreamWriter(w), nil
	case FormatExcel:
		return NewExcelStreamWriter(w, ExcelConfig{AutoFilter: true, FreezePane: true, Logger: logger})
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// ExportFile writes rows to filename in the format named by its extension.
func ExportFile(filename string, rows []Record, logger utils.Logger) (OutputFormat, error) {
	format, err := FormatFromPath(filename)
	if err != nil {
		return "", err
	}
	writer, err := NewWriter(format, filename, logger)
	if err != nil {
		return format, fmt.Errorf("failed to get writer: %w", err)
	}
	if err := writer.Write(rows); err != nil {
		writer.Close()
		return format, err
	}
	return format, writer.Close()
}
