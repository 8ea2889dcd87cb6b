// internal/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONWriter writes rows as one indented JSON array on Close.
type JSONWriter struct {
	out    io.Writer
	closer io.Closer
	rows   []Record
}

// NewJSONWriter creates a JSON file at filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{out: file, closer: file, rows: make([]Record, 0)}, nil
}

// NewJSONStreamWriter writes JSON to w. Close does not close w.
func NewJSONStreamWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{out: w, rows: make([]Record, 0)}
}

// Write buffers rows.
func (w *JSONWriter) Write(rows []Record) error {
	if w.out == nil {
		return fmt.Errorf("json writer is closed")
	}
	w.rows = append(w.rows, rows...)
	return nil
}

// Close encodes the buffered rows.
func (w *JSONWriter) Close() error {
	if w.out == nil {
		return nil
	}
	encoder := json.NewEncoder(w.out)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(w.rows)
	w.out = nil
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}

// GetType returns the output type
func (w *JSONWriter) GetType() string {
	return string(FormatJSON)
}
