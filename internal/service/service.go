package service

import (
	"context"

	"storefront/internal/model"
)

// ProductService defines read operations on the catalogue.
type ProductService interface {
	// List returns one page of active products with their available stock.
	List(ctx context.Context, q model.ProductQuery) ([]model.Product, error)

	// GetByID retrieves a single active product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// OrderService defines the order placement and fulfilment workflow.
type OrderService interface {
	// CreateOrder validates the cart, reserves stock and persists a pending order.
	// identity is nil for guest checkouts.
	CreateOrder(ctx context.Context, req *model.CreateOrderRequest, identity *model.Identity) (*model.CreateOrderResult, error)

	// UploadProof stores an inline base64 payment proof and attaches its URL to the order.
	UploadProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error)

	// AttachProof attaches a proof that was already written to the blob store.
	AttachProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error)

	// CancelOrder restores the reserved stock of a pending order and deletes it.
	CancelOrder(ctx context.Context, orderID string, identity *model.Identity) error

	// Track returns the anonymous view of an order by tracking code.
	Track(ctx context.Context, code string) (*model.TrackingView, error)

	// History returns the orders placed by the signed-in caller.
	History(ctx context.Context, identity *model.Identity) ([]model.Order, error)
}

// ShippingService prices shipping to a destination.
type ShippingService interface {
	// Quote returns the shipping quote. A destination without a rule is quoted at zero and left unconfirmed.
	Quote(ctx context.Context, dest model.Destination) (*model.ShippingQuote, error)
}

// ProfileService manages saved checkout profiles of signed-in customers.
type ProfileService interface {
	// Get returns the caller's saved profile.
	Get(ctx context.Context, identity *model.Identity) (*model.CustomerProfile, error)

	// Save creates or replaces the caller's profile.
	Save(ctx context.Context, identity *model.Identity, profile *model.CustomerProfile) (*model.CustomerProfile, error)
}
