// internal/output/types.go
package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valpere/PriceScrapexter/internal/domain"
)

// OutputFormat represents an export file format
type OutputFormat string

const (
	FormatCSV   OutputFormat = "csv"
	FormatExcel OutputFormat = "xlsx"
	FormatJSON  OutputFormat = "json"
)

// ValidOutputFormats returns the supported formats.
func ValidOutputFormats() []OutputFormat {
	return []OutputFormat{FormatCSV, FormatExcel, FormatJSON}
}

// IsValid checks if the output format is valid
func (of OutputFormat) IsValid() bool {
	for _, f := range ValidOutputFormats() {
		if of == f {
			return true
		}
	}
	return false
}

// GetMimeType returns the MIME type for the format
func (of OutputFormat) GetMimeType() string {
	switch of {
	case FormatCSV:
		return "text/csv"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (OutputFormat, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "xls" || ext == "excel" {
		ext = string(FormatExcel)
	}
	format := OutputFormat(ext)
	if !format.IsValid() {
		return "", fmt.Errorf("unsupported output format %q (want .csv, .xlsx or .json)", filepath.Ext(path))
	}
	return format, nil
}

// Writer writes exported product rows.
type Writer interface {
	Write(rows []Record) error
	Close() error
	GetType() string
}

// Record is one exported product with its latest price.
type Record struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Price         decimal.NullDecimal `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	Currency      string              `json:"currency,omitempty"`
	Available     bool                `json:"available"`
	ProductURL    string              `json:"product_url"`
	ImageURL      string              `json:"image_url,omitempty"`
	Description   string              `json:"description,omitempty"`
	FirstSeenAt   time.Time           `json:"first_seen_at"`
	LastUpdatedAt time.Time           `json:"last_updated_at"`
}

// Headers is the column order of tabular exports.
var Headers = []string{
	"id", "name", "price", "original_price", "currency", "available",
	"product_url", "image_url", "description", "first_seen_at", "last_updated_at",
}

// priceColumns are the zero-based indexes of money columns in Headers.
var priceColumns = map[int]bool{2: true, 3: true}

// Records converts stored products into export rows.
func Records(products []domain.Product) []Record {
	rows := make([]Record, 0, len(products))
	for _, p := range products {
		rows = append(rows, Record{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.CurrentPrice,
			OriginalPrice: p.OriginalPrice,
			Currency:      p.Currency,
			Available:     p.IsAvailable,
			ProductURL:    p.ProductURL,
			ImageURL:      p.ImageURL,
			Description:   p.Description,
			FirstSeenAt:   p.FirstSeenAt,
			LastUpdatedAt: p.LastUpdatedAt,
		})
	}
	return rows
}

// cells returns the record as text cells in Headers order. Missing
// prices are empty; times are RFC 3339 UTC.
func (r Record) cells() []string {
	return []string{
		fmt.Sprintf("%d", r.ID),
		r.Name,
		nullString(r.Price),
		nullString(r.OriginalPrice),
		r.Currency,
		fmt.Sprintf("%t", r.Available),
		r.ProductURL,
		r.ImageURL,
		r.Description,
		timeString(r.FirstSeenAt),
		timeString(r.LastUpdatedAt),
	}
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
