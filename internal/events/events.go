// internal/events/events.go

// Package events publishes product changes discovered by syncs.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valpere/PriceScrapexter/internal/domain"
)

// Type is the event name, also used as the routing key.
type Type string

const (
	ProductCreated      Type = "product.created"
	ProductPriceChanged Type = "product.price_changed"
)

// ProductEvent describes one product change.
type ProductEvent struct {
	Type       Type                `json:"type"`
	SourceID   int64               `json:"source_id"`
	ProductID  int64               `json:"product_id"`
	Name       string              `json:"name"`
	ProductURL string              `json:"product_url"`
	Currency   string              `json:"currency,omitempty"`
	OldPrice   decimal.NullDecimal `json:"old_price"`
	NewPrice   decimal.NullDecimal `json:"new_price"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// Created builds a product.created event.
func Created(p *domain.Product, at time.Time) ProductEvent {
	return ProductEvent{
		Type:       ProductCreated,
		SourceID:   p.SourceID,
		ProductID:  p.ID,
		Name:       p.Name,
		ProductURL: p.ProductURL,
		Currency:   p.Currency,
		NewPrice:   p.CurrentPrice,
		OccurredAt: at,
	}
}

// PriceChanged builds a product.price_changed event.
func PriceChanged(p *domain.Product, old decimal.NullDecimal, at time.Time) ProductEvent {
	ev := Created(p, at)
	ev.Type = ProductPriceChanged
	ev.OldPrice = old
	return ev
}

// Publisher delivers product events.
type Publisher interface {
	Publish(ctx context.Context, event ProductEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ProductEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
