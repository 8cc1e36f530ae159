package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"storefront/internal/cache"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	maxTrackingCodeAttempts = 5
	maxProofKeyAttempts     = 20
	historyLimit            = 50
)

// OrderDependencies are the collaborators of the order service.
// Cache, Events, Metrics, NewTrackingCode and Now are optional.
type OrderDependencies struct {
	Orders    repository.OrderRepository
	Products  repository.ProductRepository
	Inventory repository.InventoryRepository
	Shipping  ShippingService
	Store     storage.BlobStore
	Cache     cache.TrackingCache
	Events    events.Publisher
	Metrics   *metrics.Metrics

	NewTrackingCode TrackingCodeGenerator
	Now             func() time.Time
}

// OrderSettings tune the order workflow.
type OrderSettings struct {
	// RequireProof makes payment_proof_url mandatory on order creation.
	RequireProof  bool
	MaxProofBytes int
	ProofFolder   string
	// CacheSettleDelay repeats the tracking cache invalidation after a cancel, dropping views
	// that lookups racing the commit wrote back. Zero skips the second pass.
	CacheSettleDelay time.Duration
}

// orderService implements OrderService.
type orderService struct {
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	shipping      ShippingService
	store         storage.BlobStore
	cache         cache.TrackingCache
	publisher     events.Publisher
	metrics       *metrics.Metrics
	newCode       TrackingCodeGenerator
	now           func() time.Time
	settings      OrderSettings
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(deps OrderDependencies, settings OrderSettings, logger zerolog.Logger) OrderService {
	s := &orderService{
		orderRepo:     deps.Orders,
		productRepo:   deps.Products,
		inventoryRepo: deps.Inventory,
		shipping:      deps.Shipping,
		store:         deps.Store,
		cache:         deps.Cache,
		publisher:     deps.Events,
		metrics:       deps.Metrics,
		newCode:       deps.NewTrackingCode,
		now:           deps.Now,
		settings:      settings,
		validate:      newValidator(),
		logger:        logger.With().Str("service", "order").Logger(),
	}

	if s.cache == nil {
		s.cache = cache.NewNopTrackingCache()
	}
	if s.publisher == nil {
		s.publisher = events.NewNopPublisher()
	}
	if s.newCode == nil {
		s.newCode = NewTrackingCode
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.settings.ProofFolder = strings.Trim(s.settings.ProofFolder, "/")

	return s
}

// CreateOrder validates the cart, reserves stock and persists a pending order.
func (s *orderService) CreateOrder(ctx context.Context, req *model.CreateOrderRequest, identity *model.Identity) (*model.CreateOrderResult, error) {
	result, err := s.createOrder(ctx, req, identity)
	s.metrics.OrderOperation("create", outcomeOf(err))
	return result, err
}

func (s *orderService) createOrder(ctx context.Context, req *model.CreateOrderRequest, identity *model.Identity) (result *model.CreateOrderResult, err error) {
	if req == nil {
		return nil, model.NewValidationError("order request is required")
	}

	normalizeCreateRequest(req)
	if err := validateStruct(s.validate, req); err != nil {
		s.logger.Debug().Err(err).Msg("order request rejected")
		return nil, err
	}

	if err := s.checkProofURL(req.PaymentProofURL); err != nil {
		return nil, err
	}

	if len(req.Items) == 0 {
		return nil, model.ErrEmptyCart
	}

	lines, err := mergeCartItems(req.Items)
	if err != nil {
		return nil, err
	}

	products, err := s.resolveProducts(ctx, lines)
	if err != nil {
		return nil, err
	}

	quote, err := s.shipping.Quote(ctx, req.Destination())
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &model.Order{
		ID:              uuid.New(),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Cedula:          req.Cedula,
		Notes:           shippingNotes(req, quote),
		PaymentMethod:   model.PaymentMethodTransfer,
		PaymentProofURL: req.PaymentProofURL,
		ShippingCost:    quote.Cost,
		Status:          model.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if identity != nil {
		order.UserID = &identity.ID
	}

	subtotal := decimal.Zero
	items := make([]model.OrderItem, len(lines))
	for i, line := range lines {
		p := products[line.ProductID]
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items[i] = model.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductSKU:   p.SKU,
			ProductPrice: p.Price,
			Quantity:     line.Quantity,
			Subtotal:     lineTotal,
			Position:     i,
		}
		subtotal = subtotal.Add(lineTotal)
	}
	order.Subtotal = subtotal
	order.TotalAmount = subtotal.Add(quote.Cost)

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	shortages, err := s.inventoryRepo.Reserve(ctx, tx, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}
	if len(shortages) > 0 {
		for i := range shortages {
			shortages[i].Product = products[shortages[i].ProductID].Name
		}
		s.logger.Info().
			Int("short_lines", len(shortages)).
			Msg("order rejected for insufficient stock")
		return nil, model.NewInsufficientStockError(shortages)
	}

	if err = s.insertWithTrackingCode(ctx, tx, order); err != nil {
		return nil, err
	}

	if err = s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
		return nil, fmt.Errorf("failed to create order items: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("tracking_code", order.TrackingCode).
		Int("item_count", len(items)).
		Str("total_amount", order.TotalAmount.StringFixed(2)).
		Bool("guest", order.UserID == nil).
		Msg("order created successfully")

	s.publish(ctx, events.TypeOrderCreated, order)

	return &model.CreateOrderResult{
		Success:      true,
		OrderID:      order.ID,
		TrackingCode: order.TrackingCode,
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		TotalAmount:  order.TotalAmount,
	}, nil
}

// insertWithTrackingCode draws tracking codes until one is not taken.
func (s *orderService) insertWithTrackingCode(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	for attempt := 1; attempt <= maxTrackingCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return err
		}
		order.TrackingCode = code

		inserted, err := s.orderRepo.CreateOrder(ctx, tx, order)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if inserted {
			return nil
		}

		s.logger.Warn().
			Str("tracking_code", code).
			Int("attempt", attempt).
			Msg("tracking code collision, regenerating")
	}

	return fmt.Errorf("failed to create order: no unique tracking code after %d attempts", maxTrackingCodeAttempts)
}

// resolveProducts loads every cart product and rejects unknown or inactive ones.
func (s *orderService) resolveProducts(ctx context.Context, lines []model.StockRequest) (map[string]model.Product, error) {
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	found, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}

	products := make(map[string]model.Product, len(found))
	for _, p := range found {
		products[p.ID] = p
	}

	var missing, inactive []string
	for _, id := range ids {
		p, ok := products[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case !p.IsActive:
			inactive = append(inactive, p.Name)
		}
	}

	if len(missing) > 0 {
		s.logger.Info().Strs("product_ids", missing).Msg("order references unknown products")
		return nil, model.NewProductNotFoundError(missing)
	}
	if len(inactive) > 0 {
		s.logger.Info().Strs("products", inactive).Msg("order references inactive products")
		return nil, model.NewProductUnavailableError(inactive)
	}

	return products, nil
}

func (s *orderService) checkProofURL(url *string) error {
	if url == nil {
		if s.settings.RequireProof {
			return model.ErrMissingProof
		}
		return nil
	}
	if _, ok := s.store.KeyFromURL(*url); !ok {
		return model.NewValidationError("payment_proof_url must point to an uploaded payment proof")
	}
	return nil
}

// UploadProof stores an inline base64 payment proof and attaches its URL to the order.
func (s *orderService) UploadProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error) {
	result, err := s.uploadProof(ctx, req)
	s.metrics.OrderOperation("upload_proof", outcomeOf(err))
	return result, err
}

func (s *orderService) uploadProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error) {
	if req == nil {
		return nil, model.NewValidationError("proof request is required")
	}

	id, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}

	data := stripDataURL(req.FileData)
	if data == "" {
		return nil, model.NewValidationError("file_data is required")
	}

	body, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, model.NewValidationError("file_data must be base64 encoded")
	}
	if len(body) == 0 {
		return nil, model.NewValidationError("file_data is empty")
	}
	if s.settings.MaxProofBytes > 0 && len(body) > s.settings.MaxProofBytes {
		return nil, model.NewValidationError("payment proof exceeds %d bytes", s.settings.MaxProofBytes)
	}

	ext, contentType, err := proofFileType(req.FileName)
	if err != nil {
		return nil, err
	}

	order, err := s.pendingOrder(ctx, id, "attach a payment proof to")
	if err != nil {
		return nil, err
	}

	key, err := s.writeProof(ctx, order.TrackingCode, ext, body, contentType)
	if err != nil {
		return nil, err
	}
	url := s.store.PublicURL(key)

	found, err := s.orderRepo.SetPaymentProof(ctx, order.ID, url)
	if err != nil || !found {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", key).Msg("failed to remove orphaned payment proof")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to attach payment proof: %w", err)
		}
		return nil, model.ErrOrderNotFound
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("key", key).
		Int("bytes", len(body)).
		Msg("payment proof uploaded")

	order.PaymentProofURL = &url
	s.publish(ctx, events.TypeOrderProofUploaded, order)

	return &model.ProofResult{Success: true, PaymentProofURL: url}, nil
}

// writeProof claims the first free key for the order's proof.
func (s *orderService) writeProof(ctx context.Context, trackingCode, ext string, body []byte, contentType string) (string, error) {
	base := s.proofPrefix(trackingCode)
	for n := 1; n <= maxProofKeyAttempts; n++ {
		key := base + "." + ext
		if n > 1 {
			key = fmt.Sprintf("%s-%d.%s", base, n, ext)
		}

		err := s.store.Create(ctx, key, body, contentType)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, storage.ErrObjectExists) {
			return "", fmt.Errorf("failed to store payment proof: %w", err)
		}
	}

	return "", fmt.Errorf("failed to store payment proof: no free key after %d attempts", maxProofKeyAttempts)
}

// AttachProof attaches a proof that was already written to the blob store.
func (s *orderService) AttachProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error) {
	result, err := s.attachProof(ctx, req)
	s.metrics.OrderOperation("attach_proof", outcomeOf(err))
	return result, err
}

func (s *orderService) attachProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error) {
	if req == nil {
		return nil, model.NewValidationError("proof request is required")
	}

	id, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSpace(req.PaymentProofURL)
	if url == "" {
		return nil, model.NewValidationError("payment_proof_url or file_data is required")
	}
	key, ok := s.store.KeyFromURL(url)
	if !ok {
		return nil, model.NewValidationError("payment_proof_url must point to an uploaded payment proof")
	}

	order, err := s.pendingOrder(ctx, id, "attach a payment proof to")
	if err != nil {
		return nil, err
	}
	if !s.ownsProofKey(order.TrackingCode, key) {
		s.logger.Warn().Str("order_id", order.ID.String()).Str("key", key).Msg("proof key belongs to another order")
		return nil, model.NewValidationError("payment_proof_url must point to a payment proof of this order")
	}

	found, err := s.orderRepo.SetPaymentProof(ctx, order.ID, url)
	if err != nil {
		return nil, fmt.Errorf("failed to attach payment proof: %w", err)
	}
	if !found {
		return nil, model.ErrOrderNotFound
	}

	s.logger.Info().Str("order_id", order.ID.String()).Msg("payment proof attached")

	order.PaymentProofURL = &url
	s.publish(ctx, events.TypeOrderProofUploaded, order)

	return &model.ProofResult{Success: true, PaymentProofURL: url}, nil
}

func (s *orderService) pendingOrder(ctx context.Context, id uuid.UUID, action string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	if order.Status != model.StatusPending {
		return nil, model.NewInvalidStateError(order.Status, action)
	}
	return order, nil
}

// CancelOrder restores the reserved stock of a pending order and deletes it.
func (s *orderService) CancelOrder(ctx context.Context, orderID string, identity *model.Identity) error {
	err := s.cancelOrder(ctx, orderID, identity)
	s.metrics.OrderOperation("cancel", outcomeOf(err))
	return err
}

func (s *orderService) cancelOrder(ctx context.Context, orderID string, identity *model.Identity) (err error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	order, err := s.orderRepo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if order == nil {
		return model.ErrOrderNotFound
	}
	if order.Status != model.StatusPending {
		return model.NewInvalidStateError(order.Status, "cancel")
	}
	if !order.OwnedBy(identity) {
		s.logger.Warn().Str("order_id", order.ID.String()).Msg("cancel attempted by another user")
		return model.ErrUnauthorised
	}

	restock := make([]model.StockRequest, len(order.Items))
	for i, it := range order.Items {
		restock[i] = model.StockRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	if err = s.inventoryRepo.Restore(ctx, tx, restock); err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	if err = s.orderRepo.Delete(ctx, tx, order.ID); err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("tracking_code", order.TrackingCode).
		Int("item_count", len(order.Items)).
		Msg("order cancelled")

	cleanupCtx := context.WithoutCancel(ctx)
	s.removeProofs(cleanupCtx, order)
	s.cache.Invalidate(cleanupCtx, order.TrackingCode)
	if delay := s.settings.CacheSettleDelay; delay > 0 {
		code := order.TrackingCode
		time.AfterFunc(delay, func() { s.cache.Invalidate(cleanupCtx, code) })
	}

	order.Status = model.StatusCancelled
	s.publish(ctx, events.TypeOrderCancelled, order)

	return nil
}

// removeProofs deletes the proof blobs of a cancelled order. Only keys under the order's
// own prefix are touched; a proof URL given at creation may be shared and is left alone.
// Failures are only logged.
func (s *orderService) removeProofs(ctx context.Context, order *model.Order) {
	prefix := s.proofPrefix(order.TrackingCode)

	removed, err := s.store.DeletePrefix(ctx, prefix)
	if err != nil {
		s.logger.Error().Err(err).Str("prefix", prefix).Msg("failed to remove payment proofs")
		return
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Str("prefix", prefix).Msg("payment proofs removed")
	}
}

// Track returns the anonymous view of an order by tracking code.
func (s *orderService) Track(ctx context.Context, code string) (*model.TrackingView, error) {
	view, err := s.track(ctx, code)
	s.metrics.OrderOperation("track", outcomeOf(err))
	return view, err
}

func (s *orderService) track(ctx context.Context, code string) (*model.TrackingView, error) {
	code = NormalizeTrackingCode(code)
	if code == "" {
		return nil, model.NewValidationError("tracking_code is required")
	}

	if view, ok := s.cache.Get(ctx, code); ok {
		return view, nil
	}

	order, err := s.orderRepo.GetByTrackingCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to track order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	view := model.NewTrackingView(order)
	s.cache.Set(ctx, view)

	return view, nil
}

// History returns the orders placed by the signed-in caller.
func (s *orderService) History(ctx context.Context, identity *model.Identity) ([]model.Order, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}

	orders, err := s.orderRepo.ListByUser(ctx, identity.ID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

func (s *orderService) proofPrefix(trackingCode string) string {
	return s.settings.ProofFolder + "/" + trackingCode
}

// ownsProofKey reports whether key is one of the names writeProof derives for the tracking code.
func (s *orderService) ownsProofKey(trackingCode, key string) bool {
	rest, ok := strings.CutPrefix(key, s.proofPrefix(trackingCode))
	return ok && (strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "-"))
}

func (s *orderService) publish(ctx context.Context, eventType string, order *model.Order) {
	event := events.Event{
		Type:         eventType,
		OrderID:      order.ID,
		TrackingCode: order.TrackingCode,
		Status:       string(order.Status),
		TotalAmount:  order.TotalAmount,
		OccurredAt:   s.now().UTC(),
	}
	if order.PaymentProofURL != nil {
		event.ProofURL = *order.PaymentProofURL
	}
	s.publisher.Publish(ctx, event)
}

func normalizeCreateRequest(req *model.CreateOrderRequest) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CustomerPhone = trimPtr(req.CustomerPhone)
	req.Country = strings.TrimSpace(req.Country)
	req.State = strings.TrimSpace(req.State)
	req.City = strings.TrimSpace(req.City)
	req.Address = trimPtr(req.Address)
	req.Cedula = strings.TrimSpace(req.Cedula)
	req.PaymentProofURL = trimPtr(req.PaymentProofURL)
}

// mergeCartItems sums duplicate products, keeping the order in which each product first appears.
func mergeCartItems(items []model.OrderItemRequest) ([]model.StockRequest, error) {
	index := make(map[string]int, len(items))
	lines := make([]model.StockRequest, 0, len(items))

	for i, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, model.NewValidationError("items[%d]: product_id is required", i)
		}
		if it.Quantity <= 0 {
			return nil, model.NewValidationError("items[%d]: quantity must be greater than zero", i)
		}

		if pos, ok := index[id]; ok {
			lines[pos].Quantity += it.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, model.StockRequest{ProductID: id, Quantity: it.Quantity})
	}

	return lines, nil
}

func shippingNotes(req *model.CreateOrderRequest, quote *model.ShippingQuote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cédula: %s\nEstado: %s\nCiudad: %s", req.Cedula, req.State, req.City)
	if req.Address != nil {
		fmt.Fprintf(&b, "\nDirección: %s", *req.Address)
	}
	b.WriteString("\n" + quote.Message)
	return b.String()
}

func parseOrderID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, model.NewValidationError("order_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, model.NewValidationError("order_id must be a valid UUID")
	}
	return id, nil
}

func stripDataURL(data string) string {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		if _, payload, ok := strings.Cut(data, ","); ok {
			return payload
		}
	}
	return data
}

// proofFileType maps the uploaded file name to a stored extension and content type.
func proofFileType(fileName string) (string, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(fileName)), "."))
	switch ext {
	case "":
		return "jpg", "image/jpeg", nil
	case "jpg", "jpeg":
		return ext, "image/jpeg", nil
	case "png":
		return ext, "image/png", nil
	case "webp":
		return ext, "image/webp", nil
	default:
		return "", "", model.NewValidationError("unsupported payment proof type %q (use jpg, png or webp)", ext)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
