// internal/domain/product.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxNameLength bounds stored product names, in runes.
const MaxNameLength = 500

// MaxDescriptionLength bounds extracted descriptions, in runes.
const MaxDescriptionLength = 500

// ProductRecord is one product as extracted from a page, before it is
// matched against stored state.
type ProductRecord struct {
	Name          string              `json:"name"`
	Price         decimal.NullDecimal `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	Currency      string              `json:"currency,omitempty"`
	ImageURL      string              `json:"image_url,omitempty"`
	ProductURL    string              `json:"product_url,omitempty"`
	Description   string              `json:"description,omitempty"`
}

// Product is a tracked item. (SourceID, ProductURL) identifies it.
type Product struct {
	ID            int64
	SourceID      int64
	Name          string
	Description   string
	ImageURL      string
	ProductURL    string
	CurrentPrice  decimal.NullDecimal
	OriginalPrice decimal.NullDecimal
	Currency      string
	IsAvailable   bool
	IsFavorite    bool
	Notes         string
	FirstSeenAt   time.Time
	LastUpdatedAt time.Time
}

// PriceHistory is an append-only price observation.
type PriceHistory struct {
	ID         int64
	ProductID  int64
	Price      decimal.Decimal
	RecordedAt time.Time
}

// PriceChanged reports whether a newly extracted price must be recorded.
func (p *Product) PriceChanged(price decimal.NullDecimal) bool {
	if !price.Valid {
		return false
	}
	return !p.CurrentPrice.Valid || !p.CurrentPrice.Decimal.Equal(price.Decimal)
}

// ApplyRecord refreshes the product from a newer extraction. Empty fields
// in the record never erase stored values.
func (p *Product) ApplyRecord(rec ProductRecord, now time.Time) {
	if rec.Price.Valid {
		p.CurrentPrice = rec.Price
	}
	if rec.Name != "" {
		p.Name = rec.Name
	}
	if rec.ImageURL != "" {
		p.ImageURL = rec.ImageURL
	}
	if rec.OriginalPrice.Valid {
		p.OriginalPrice = rec.OriginalPrice
	}
	if rec.Description != "" {
		p.Description = rec.Description
	}
	if rec.Currency != "" {
		p.Currency = rec.Currency
	}
	p.IsAvailable = true
	p.LastUpdatedAt = now
}
