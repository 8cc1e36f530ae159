package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types published on the orders topic.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderProofUploaded = "order.proof_uploaded"
	TypeOrderCancelled     = "order.cancelled"
)

// Event is the payload of an order lifecycle message. Messages are keyed by order id.
type Event struct {
	Type         string          `json:"type"`
	OrderID      uuid.UUID       `json:"order_id"`
	TrackingCode string          `json:"tracking_code"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ProofURL     string          `json:"payment_proof_url,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// Publisher emits order events. Publish never blocks the caller and never fails the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that discards every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, Event) {}
