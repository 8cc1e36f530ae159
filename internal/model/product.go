package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item in the catalogue together with its available stock.
type Product struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	SKU       string          `json:"sku" db:"sku"`
	Price     decimal.Decimal `json:"price" db:"price"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	Stock     int             `json:"stock" db:"stock"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Catalog page sizes.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ProductQuery selects a page of the active catalog.
type ProductQuery struct {
	Limit   int
	Offset  int
	InStock bool
	// Search matches product names case-insensitively.
	Search string
}

// Normalize clamps the page into range and trims the search term.
func (q ProductQuery) Normalize() ProductQuery {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultPageSize
	case q.Limit > MaxPageSize:
		q.Limit = MaxPageSize
	}
	q.Offset = max(q.Offset, 0)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// ImportSummary counts what a catalog import wrote.
type ImportSummary struct {
	Products int `json:"products"`
	Rules    int `json:"shipping_rules"`
}
