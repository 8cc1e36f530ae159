package repository

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// List retrieves a page of active products with their stock. The query is already normalized.
	List(ctx context.Context, q model.ProductQuery) ([]model.Product, error)

	// GetByID retrieves a single active product by its ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs, active or not.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// InventoryRepository mutates stock levels inside a caller-owned transaction.
type InventoryRepository interface {
	// Reserve locks the inventory rows of every requested product and decrements them.
	// When any line is short nothing is decremented and the shortages are returned.
	Reserve(ctx context.Context, tx pgx.Tx, items []model.StockRequest) ([]model.StockShortage, error)

	// Restore adds quantities back to inventory.
	Restore(ctx context.Context, tx pgx.Tx, items []model.StockRequest) error
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	// It returns false without error when the tracking code is already taken.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) (bool, error)

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetByID retrieves an order by its ID without items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetForUpdate locks an order row and returns it along with its items.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// GetByTrackingCode retrieves an order and its items by tracking code.
	GetByTrackingCode(ctx context.Context, code string) (*model.Order, error)

	// SetPaymentProof stores the proof URL. It returns false when the order no longer exists.
	SetPaymentProof(ctx context.Context, id uuid.UUID, url string) (bool, error)

	// Delete removes an order and its items within the provided transaction.
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// ListByUser returns the orders of a user, newest first, with items.
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error)
}

// ShippingRepository reads the shipping rule table.
type ShippingRepository interface {
	// FindRule returns the active rule for the exact destination, or nil when none exists.
	FindRule(ctx context.Context, dest model.Destination) (*model.ShippingRule, error)
}

// ProfileRepository persists customer checkout profiles.
type ProfileRepository interface {
	// Get returns the profile for id, or nil when none has been saved.
	Get(ctx context.Context, id string) (*model.CustomerProfile, error)

	// Upsert creates or replaces the profile.
	Upsert(ctx context.Context, profile *model.CustomerProfile) error
}

// CatalogRepository bulk-loads the catalog and shipping rules.
type CatalogRepository interface {
	// Import upserts products with their stock and, when rules is non-nil, replaces every shipping rule.
	Import(ctx context.Context, products []model.Product, rules []model.ShippingRule) (*model.ImportSummary, error)
}
