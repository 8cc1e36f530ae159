package checkout

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// ErrInvalidTransition is returned when an action is not allowed from the current step.
var ErrInvalidTransition = errors.New("invalid checkout transition")

// Options configures a Workflow.
type Options struct {
	// Authenticated enables profile prefill and the profile upsert after a successful order.
	Authenticated bool
	Now           func() time.Time
}

// Workflow drives one checkout session. Every transition is saved before the next API call.
// A Workflow is not safe for concurrent use.
type Workflow struct {
	api    API
	store  Store
	opts   Options
	state  *State
	logger zerolog.Logger
}

// NewWorkflow creates a workflow at a fresh cart review. Call Resume to pick up a saved session.
func NewWorkflow(api API, store Store, opts Options, logger zerolog.Logger) *Workflow {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Workflow{
		api:    api,
		store:  store,
		opts:   opts,
		state:  NewState(),
		logger: logger.With().Str("component", "checkout").Logger(),
	}
}

// State returns a copy of the current state.
func (w *Workflow) State() *State {
	return w.state.clone()
}

// Resume loads the saved session. An interrupted order submission comes back at the address form with an
// unknown-outcome failure and is never re-submitted automatically. An interrupted upload comes back at the
// proof form.
func (w *Workflow) Resume(ctx context.Context) (*State, error) {
	saved, err := w.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if saved == nil || saved.Step == StepDone || saved.Step == "" {
		w.state = NewState()
		return w.State(), nil
	}

	w.state = saved
	switch saved.Step {
	case StepOrderSubmitting:
		w.logger.Warn().Msg("previous order submission was interrupted")
		saved.Step = StepAddressForm
		saved.Failure = newFailure(FailureUnknownOutcome)
		if err := w.save(ctx); err != nil {
			return nil, err
		}
	case StepProofUploading:
		saved.Step = StepProofForm
		if err := w.save(ctx); err != nil {
			return nil, err
		}
	}

	return w.State(), nil
}

// AddToCart adds quantity units of a product, looking up its current name and price.
func (w *Workflow) AddToCart(ctx context.Context, productID string, quantity int) error {
	if err := w.expect("add to the cart", StepCartReview); err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" || quantity <= 0 {
		return w.fail(ctx, &Failure{Code: model.ErrCodeValidation, Message: "Indica un producto y una cantidad mayor a cero"})
	}

	product, err := w.api.GetProduct(ctx, productID)
	if err != nil {
		if IsNotFound(err) {
			return w.fail(ctx, &Failure{
				Code:    model.ErrCodeProductNotFound,
				Message: failureMessages[model.ErrCodeProductNotFound] + ": " + productID,
			})
		}
		return w.fail(ctx, failureFrom(err))
	}

	s := w.state
	s.Failure = nil
	for i := range s.Cart {
		if s.Cart[i].ProductID == product.ID {
			s.Cart[i].Quantity += quantity
			s.Cart[i].Name = product.Name
			s.Cart[i].Price = product.Price
			return w.save(ctx)
		}
	}
	s.Cart = append(s.Cart, CartLine{ProductID: product.ID, Name: product.Name, Price: product.Price, Quantity: quantity})

	return w.save(ctx)
}

// ReviewCart moves a non-empty cart to the address form, prefilled from the saved profile when signed in.
func (w *Workflow) ReviewCart(ctx context.Context) error {
	if err := w.expect("review the cart", StepCartReview); err != nil {
		return err
	}
	if len(w.state.Cart) == 0 {
		return w.fail(ctx, newFailure(model.ErrCodeEmptyCart))
	}

	if w.opts.Authenticated && w.state.Customer.Name == "" {
		w.prefill(ctx)
	}

	w.state.Step = StepAddressForm
	w.state.Failure = nil
	return w.save(ctx)
}

// EditCart returns from the address form to the cart.
func (w *Workflow) EditCart(ctx context.Context) error {
	if err := w.expect("edit the cart", StepAddressForm); err != nil {
		return err
	}
	w.state.Step = StepCartReview
	w.state.Failure = nil
	return w.save(ctx)
}

// SubmitOrder places the order. The submitting step is saved before the request so an interruption is
// detected on Resume. On failure the workflow returns to the address form with the failure set.
func (w *Workflow) SubmitOrder(ctx context.Context, customer Customer) error {
	if err := w.expect("submit the order", StepAddressForm); err != nil {
		return err
	}

	s := w.state
	s.Customer = customer
	s.Step = StepOrderSubmitting
	s.Failure = nil
	if err := w.save(ctx); err != nil {
		s.Step = StepAddressForm
		return err
	}

	result, err := w.api.CreateOrder(ctx, w.orderRequest())
	if err != nil {
		f := failureFrom(err)
		if f.Code == FailureNetwork {
			// The request may have reached the server.
			f = newFailure(FailureUnknownOutcome)
		}
		w.logger.Warn().Err(err).Str("code", f.Code).Msg("order submission failed")
		s.Step = StepAddressForm
		return w.fail(ctx, f)
	}

	s.Step = StepOrderCreated
	s.OrderID = result.OrderID
	s.TrackingCode = result.TrackingCode
	s.Subtotal = result.Subtotal
	s.ShippingCost = result.ShippingCost
	s.TotalAmount = result.TotalAmount
	s.OrderedCart = s.Cart
	s.Cart = nil

	w.logger.Info().
		Str("order_id", result.OrderID.String()).
		Str("tracking_code", result.TrackingCode).
		Msg("order created")

	if err := w.save(ctx); err != nil {
		return err
	}

	if w.opts.Authenticated {
		if _, err := w.api.SaveProfile(ctx, profileFrom(customer)); err != nil {
			w.logger.Warn().Err(err).Msg("failed to save customer profile")
		}
	}

	return nil
}

// StartProof opens the proof form for the created order.
func (w *Workflow) StartProof(ctx context.Context) error {
	if err := w.expect("start the proof upload", StepOrderCreated); err != nil {
		return err
	}
	w.state.Step = StepProofForm
	w.state.Failure = nil
	return w.save(ctx)
}

// UploadProof sends the transfer receipt. Failures leave the workflow on the proof form.
func (w *Workflow) UploadProof(ctx context.Context, fileName string, data []byte) error {
	if err := w.expect("upload the proof", StepProofForm); err != nil {
		return err
	}
	if len(data) == 0 {
		return w.fail(ctx, &Failure{Code: model.ErrCodeValidation, Message: "Debes seleccionar una imagen del comprobante"})
	}

	s := w.state
	s.Step = StepProofUploading
	s.Failure = nil
	if err := w.save(ctx); err != nil {
		s.Step = StepProofForm
		return err
	}

	result, err := w.api.UploadProof(ctx, &model.UploadProofRequest{
		OrderID:  s.OrderID.String(),
		FileName: fileName,
		FileData: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		w.logger.Warn().Err(err).Str("order_id", s.OrderID.String()).Msg("proof upload failed")
		s.Step = StepProofForm
		return w.fail(ctx, failureFrom(err))
	}

	s.Step = StepProofUploaded
	s.ProofURL = result.PaymentProofURL
	return w.save(ctx)
}

// CancelAndReturn cancels the created order and starts over with the ordered products back in the cart.
// An order the server no longer knows is treated as already cancelled.
func (w *Workflow) CancelAndReturn(ctx context.Context) error {
	if err := w.expect("cancel the order", StepOrderCreated, StepProofForm); err != nil {
		return err
	}

	s := w.state
	if err := w.api.CancelOrder(ctx, s.OrderID.String()); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeOrderNotFound {
			w.logger.Warn().Err(err).Str("order_id", s.OrderID.String()).Msg("order cancellation failed")
			return w.fail(ctx, failureFrom(err))
		}
	}

	w.logger.Info().Str("order_id", s.OrderID.String()).Msg("order cancelled")

	if err := w.store.Clear(ctx); err != nil {
		return err
	}

	fresh := NewState()
	fresh.Cart = s.OrderedCart
	fresh.Customer = s.Customer
	w.state = fresh

	if len(fresh.Cart) == 0 {
		return nil
	}
	return w.save(ctx)
}

// Finish closes a session whose proof was uploaded and clears the saved state.
func (w *Workflow) Finish(ctx context.Context) error {
	if err := w.expect("finish", StepProofUploaded); err != nil {
		return err
	}
	if err := w.store.Clear(ctx); err != nil {
		return err
	}
	w.state.Step = StepDone
	w.state.Failure = nil
	return nil
}

func (w *Workflow) expect(action string, steps ...Step) error {
	for _, step := range steps {
		if w.state.Step == step {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, w.state.Step)
}

// fail records f on the current step and returns it.
func (w *Workflow) fail(ctx context.Context, f *Failure) error {
	w.state.Failure = f
	if err := w.save(ctx); err != nil {
		return errors.Join(f, err)
	}
	return f
}

func (w *Workflow) save(ctx context.Context) error {
	w.state.UpdatedAt = w.opts.Now()
	if err := w.store.Save(ctx, w.state); err != nil {
		w.logger.Error().Err(err).Str("step", string(w.state.Step)).Msg("failed to save checkout state")
		return err
	}
	return nil
}

func (w *Workflow) prefill(ctx context.Context) {
	profile, err := w.api.GetProfile(ctx)
	if err != nil {
		if !IsNotFound(err) {
			w.logger.Warn().Err(err).Msg("failed to load customer profile")
		}
		return
	}

	c := &w.state.Customer
	c.Name = strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	c.Cedula = profile.Cedula
	c.Phone = profile.Phone
	c.Country = profile.Country
	c.State = profile.State
	c.City = profile.City
	c.Address = profile.AddressLine1
}

func (w *Workflow) orderRequest() *model.CreateOrderRequest {
	c := w.state.Customer
	req := &model.CreateOrderRequest{
		CustomerName:  c.Name,
		CustomerEmail: c.Email,
		Country:       c.Country,
		State:         c.State,
		City:          c.City,
		Cedula:        c.Cedula,
		Items:         make([]model.OrderItemRequest, len(w.state.Cart)),
	}
	if c.Phone != "" {
		req.CustomerPhone = &c.Phone
	}
	if c.Address != "" {
		req.Address = &c.Address
	}
	for i, l := range w.state.Cart {
		req.Items[i] = model.OrderItemRequest{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return req
}

func newFailure(code string) *Failure {
	return &Failure{Code: code, Message: failureMessages[code]}
}

func profileFrom(c Customer) *model.CustomerProfile {
	first, last, _ := strings.Cut(strings.TrimSpace(c.Name), " ")
	return &model.CustomerProfile{
		FirstName:    first,
		LastName:     strings.TrimSpace(last),
		Cedula:       c.Cedula,
		Phone:        c.Phone,
		Country:      c.Country,
		State:        c.State,
		City:         c.City,
		AddressLine1: c.Address,
	}
}
