// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVWriter writes data in CSV format
type CSVWriter struct {
	closer        io.Closer
	writer        *csv.Writer
	headerWritten bool
}

// NewCSVWriter creates a CSV file at filename.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := NewCSVStreamWriter(file)
	w.closer = file
	return w, nil
}

// NewCSVStreamWriter writes CSV to w. Close flushes but does not close w.
func NewCSVStreamWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: csv.NewWriter(w)}
}

// Write writes rows, preceded by the header on the first call.
func (w *CSVWriter) Write(rows []Record) error {
	if w.writer == nil {
		return fmt.Errorf("csv writer is closed")
	}
	if !w.headerWritten {
		if err := w.writer.Write(Headers); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		w.headerWritten = true
	}

	for _, row := range rows {
		if err := w.writer.Write(row.cells()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Flush flushes any buffered data to the underlying writer
func (w *CSVWriter) Flush() error {
	if w.writer != nil {
		w.writer.Flush()
		return w.writer.Error()
	}
	return nil
}

// Close closes the CSV writer
func (w *CSVWriter) Close() error {
	if w.writer != nil {
		w.writer.Flush()
		if err := w.writer.Error(); err != nil {
			return err
		}
		w.writer = nil
	}
	if w.closer != nil {
		err := w.closer.Close()
		w.closer = nil
		return err
	}
	return nil
}

// GetType returns the output type
func (w *CSVWriter) GetType() string {
	return string(FormatCSV)
}
