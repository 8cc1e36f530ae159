package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are emitted as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// PaymentMethodTransfer is the only accepted payment method.
const PaymentMethodTransfer = "transfer"

// Order represents a customer order.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	TrackingCode    string          `json:"tracking_code" db:"tracking_code"`
	UserID          *string         `json:"user_id,omitempty" db:"user_id"`
	CustomerName    string          `json:"customer_name" db:"customer_name"`
	CustomerEmail   string          `json:"customer_email" db:"customer_email"`
	CustomerPhone   *string         `json:"customer_phone,omitempty" db:"customer_phone"`
	Cedula          string          `json:"cedula" db:"cedula"`
	Notes           string          `json:"notes" db:"notes"`
	PaymentMethod   string          `json:"payment_method" db:"payment_method"`
	PaymentProofURL *string         `json:"payment_proof_url,omitempty" db:"payment_proof_url"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	ShippingCost    decimal.Decimal `json:"shipping_cost" db:"shipping_cost"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status          OrderStatus     `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OwnedBy reports whether identity may act on the order. Guest orders are open to anyone holding the order id.
func (o *Order) OwnedBy(identity *Identity) bool {
	if o.UserID == nil {
		return true
	}
	return identity != nil && identity.ID == *o.UserID
}

// OrderItem is a write-once snapshot of a product at purchase time.
type OrderItem struct {
	ID           uuid.UUID       `json:"-" db:"id"`
	OrderID      uuid.UUID       `json:"-" db:"order_id"`
	ProductID    string          `json:"product_id" db:"product_id"`
	ProductName  string          `json:"product_name" db:"product_name"`
	ProductSKU   string          `json:"product_sku" db:"product_sku"`
	ProductPrice decimal.Decimal `json:"product_price" db:"product_price"`
	Quantity     int             `json:"quantity" db:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal" db:"subtotal"`
	Position     int             `json:"-" db:"position"`
}

// CreateOrderRequest represents the request payload for creating an order.
type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string             `json:"customer_email" validate:"required,email,max=254"`
	CustomerPhone   *string            `json:"customer_phone,omitempty" validate:"omitempty,max=40"`
	Country         string             `json:"country" validate:"required,max=100"`
	State           string             `json:"state" validate:"required,max=100"`
	City            string             `json:"city" validate:"required,max=100"`
	Address         *string            `json:"address,omitempty" validate:"omitempty,max=300"`
	Cedula          string             `json:"cedula" validate:"required,max=20"`
	Items           []OrderItemRequest `json:"items"`
	PaymentProofURL *string            `json:"payment_proof_url,omitempty"`
}

// Destination returns the shipping destination of the request.
func (r *CreateOrderRequest) Destination() Destination {
	return Destination{Country: r.Country, State: r.State, City: r.City}
}

// OrderItemRequest represents a single item in an order request.
type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderResult is returned after an order has been persisted.
type CreateOrderResult struct {
	Success      bool            `json:"success"`
	OrderID      uuid.UUID       `json:"order_id"`
	TrackingCode string          `json:"tracking_code"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// UploadProofRequest attaches a payment proof either as inline base64 data or as an already stored URL.
type UploadProofRequest struct {
	OrderID         string `json:"order_id"`
	FileName        string `json:"file_name,omitempty"`
	FileData        string `json:"file_data,omitempty"`
	PaymentProofURL string `json:"payment_proof_url,omitempty"`
}

// ProofResult is returned after a payment proof has been attached.
type ProofResult struct {
	Success         bool   `json:"success"`
	PaymentProofURL string `json:"payment_proof_url"`
}

// CancelOrderRequest represents the request payload for cancelling an order.
type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

// TrackOrderRequest represents the request payload for looking up an order.
type TrackOrderRequest struct {
	TrackingCode string `json:"tracking_code"`
}

// TrackingView is the anonymous, read-only projection of an order.
type TrackingView struct {
	TrackingCode string          `json:"tracking_code"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Items        []TrackedItem   `json:"items"`
}

// TrackedItem is a line of a TrackingView.
type TrackedItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// NewTrackingView projects an order and its items for anonymous tracking.
func NewTrackingView(order *Order) *TrackingView {
	items := make([]TrackedItem, len(order.Items))
	for i, it := range order.Items {
		items[i] = TrackedItem{Name: it.ProductName, Quantity: it.Quantity, Price: it.ProductPrice}
	}
	return &TrackingView{
		TrackingCode: order.TrackingCode,
		Status:       order.Status,
		CreatedAt:    order.CreatedAt,
		TotalAmount:  order.TotalAmount,
		Items:        items,
	}
}

// StockRequest is a quantity of one product to reserve or restore.
type StockRequest struct {
	ProductID string
	Quantity  int
}

// StockShortage describes a cart line that inventory cannot cover.
type StockShortage struct {
	ProductID string `json:"product_id"`
	Product   string `json:"product"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Identity is the verified caller behind a bearer token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}
