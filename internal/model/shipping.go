package model

import "github.com/shopspring/decimal"

// Destination identifies where an order ships to.
type Destination struct {
	Country string `json:"country" validate:"required"`
	State   string `json:"state" validate:"required"`
	City    string `json:"city" validate:"required"`
}

// ShippingRule prices shipping to one exact destination.
type ShippingRule struct {
	Country  string          `db:"country"`
	State    string          `db:"state"`
	City     string          `db:"city"`
	IsFree   bool            `db:"is_free"`
	BaseCost decimal.Decimal `db:"base_cost"`
}

// ShippingQuote is the shipping cost applied to an order. Confirmed is false when no rule matched.
type ShippingQuote struct {
	IsFree    bool            `json:"is_free"`
	Cost      decimal.Decimal `json:"cost"`
	Message   string          `json:"message"`
	Confirmed bool            `json:"confirmed"`
}
