package checkout

import (
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Step is a position in the checkout wizard.
type Step string

const (
	StepCartReview      Step = "cart_review"
	StepAddressForm     Step = "address_form"
	StepOrderSubmitting Step = "order_submitting"
	StepOrderCreated    Step = "order_created"
	StepProofForm       Step = "proof_form"
	StepProofUploading  Step = "proof_uploading"
	StepProofUploaded   Step = "proof_uploaded"
	StepDone            Step = "done"
)

// CartLine is one product in the shopper's cart.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Customer holds the address form.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Country string `json:"country"`
	State   string `json:"state"`
	City    string `json:"city"`
	Address string `json:"address,omitempty"`
	Cedula  string `json:"cedula"`
}

// State is the persisted checkout session.
type State struct {
	Step     Step       `json:"step"`
	Cart     []CartLine `json:"cart,omitempty"`
	Customer Customer   `json:"customer"`

	// Set once the order exists.
	OrderID      uuid.UUID       `json:"order_id,omitempty"`
	TrackingCode string          `json:"tracking_code,omitempty"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	// OrderedCart is the cart that was submitted. It goes back into the cart if the order is cancelled.
	OrderedCart []CartLine `json:"ordered_cart,omitempty"`

	ProofURL string   `json:"proof_url,omitempty"`
	Failure  *Failure `json:"failure,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns an empty session at the cart review step.
func NewState() *State {
	return &State{Step: StepCartReview}
}

// CartTotal is the cart subtotal at the prices shown to the shopper.
func (s *State) CartTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Cart {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func (s *State) clone() *State {
	c := *s
	c.Cart = append([]CartLine(nil), s.Cart...)
	c.OrderedCart = append([]CartLine(nil), s.OrderedCart...)
	if s.Failure != nil {
		f := *s.Failure
		f.Shortages = append([]model.StockShortage(nil), s.Failure.Shortages...)
		c.Failure = &f
	}
	return &c
}
