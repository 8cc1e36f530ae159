package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront/internal/events"
	"storefront/internal/model"
	"storefront/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)

type orderFixture struct {
	orders    *MockOrderRepository
	products  *MockProductRepository
	inventory *MockInventoryRepository
	shipping  *MockShippingRepository
	store     *MockBlobStore
	tx        *MockTx
	events    *recordingPublisher
	cache     *memoryCache
	codes     []string
	service   OrderService
}

func newOrderFixture(t *testing.T, settings OrderSettings) *orderFixture {
	t.Helper()

	f := &orderFixture{
		orders:    new(MockOrderRepository),
		products:  new(MockProductRepository),
		inventory: new(MockInventoryRepository),
		shipping:  new(MockShippingRepository),
		store:     new(MockBlobStore),
		tx:        new(MockTx),
		events:    &recordingPublisher{},
		cache:     newMemoryCache(),
	}

	f.service = NewOrderService(OrderDependencies{
		Orders:    f.orders,
		Products:  f.products,
		Inventory: f.inventory,
		Shipping:  NewShippingService(f.shipping, zerolog.Nop()),
		Store:     f.store,
		Cache:     f.cache,
		Events:    f.events,
		NewTrackingCode: func() (string, error) {
			if len(f.codes) == 0 {
				return "TRK-ABCD2345", nil
			}
			code := f.codes[0]
			f.codes = f.codes[1:]
			return code, nil
		},
		Now: func() time.Time { return fixedNow },
	}, settings, zerolog.Nop())

	t.Cleanup(func() {
		f.orders.AssertExpectations(t)
		f.products.AssertExpectations(t)
		f.inventory.AssertExpectations(t)
		f.shipping.AssertExpectations(t)
		f.store.AssertExpectations(t)
		f.tx.AssertExpectations(t)
	})

	return f
}

func defaultSettings() OrderSettings {
	return OrderSettings{MaxProofBytes: 1024, ProofFolder: "transferencias/"}
}

func hammerAndNails() []model.Product {
	return []model.Product{
		{ID: "P1", Name: "Hammer", SKU: "HAM-1", Price: decimal.RequireFromString("10.00"), IsActive: true, Stock: 5},
		{ID: "P2", Name: "Nails", SKU: "NAI-1", Price: decimal.RequireFromString("5.00"), IsActive: true, Stock: 5},
	}
}

func validRequest() *model.CreateOrderRequest {
	return &model.CreateOrderRequest{
		CustomerName:  "Ana Pérez",
		CustomerEmail: "ana@example.com",
		Country:       "Venezuela",
		State:         "Miranda",
		City:          "Los Teques",
		Cedula:        "V-12345678",
		Items: []model.OrderItemRequest{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 2},
		},
	}
}

func destinationOf(req *model.CreateOrderRequest) model.Destination {
	return model.Destination{Country: req.Country, State: req.State, City: req.City}
}

func requireCode(t *testing.T, err error, code string) *model.DomainError {
	t.Helper()
	var domainErr *model.DomainError
	require.True(t, errors.As(err, &domainErr), "expected a domain error, got %v", err)
	assert.Equal(t, code, domainErr.Code)
	return domainErr
}

func TestOrderService_CreateOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, defaultSettings())
	req := validRequest()
	address := "Calle 5, Casa 12"
	req.Address = &address

	rule := &model.ShippingRule{BaseCost: decimal.RequireFromString("5.00")}
	lines := []model.StockRequest{{ProductID: "P1", Quantity: 2}, {ProductID: "P2", Quantity: 2}}

	var created *model.Order
	var items []model.OrderItem

	f.products.On("GetByIDs", ctx, []string{"P1", "P2"}).Return(hammerAndNails(), nil)
	f.shipping.On("FindRule", ctx, destinationOf(req)).Return(rule, nil)
	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.inventory.On("Reserve", ctx, f.tx, lines).Return(nil, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.AnythingOfType("*model.Order")).
		Run(func(args mock.Arguments) { created = args.Get(2).(*model.Order) }).
		Return(true, nil)
	f.orders.On("CreateOrderItems", ctx, f.tx, mock.AnythingOfType("[]model.OrderItem")).
		Run(func(args mock.Arguments) { items = args.Get(2).([]model.OrderItem) }).
		Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	result, err := f.service.CreateOrder(ctx, req, nil)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "TRK-ABCD2345", result.TrackingCode)
	assert.Equal(t, "30.00", result.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", result.ShippingCost.StringFixed(2))
	assert.Equal(t, "35.00", result.TotalAmount.StringFixed(2))

	require.NotNil(t, created)
	assert.Equal(t, result.OrderID, created.ID)
	assert.Nil(t, created.UserID)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.PaymentMethodTransfer, created.PaymentMethod)
	assert.Equal(t, fixedNow, created.CreatedAt)
	assert.Equal(t,
		"Cédula: V-12345678\nEstado: Miranda\nCiudad: Los Teques\nDirección: Calle 5, Casa 12\nCosto de envío: $5.00",
		created.Notes)

	require.Len(t, items, 2)
	assert.Equal(t, "Hammer", items[0].ProductName)
	assert.Equal(t, "HAM-1", items[0].ProductSKU)
	assert.Equal(t, "20.00", items[0].Subtotal.StringFixed(2))
	assert.Equal(t, 0, items[0].Position)
	assert.Equal(t, "Nails", items[1].ProductName)
	assert.Equal(t, 1, items[1].Position)
	for _, it := range items {
		assert.Equal(t, created.ID, it.OrderID)
	}

	assert.Equal(t, []string{events.TypeOrderCreated}, f.events.types())
}

func TestOrderService_CreateOrder_SignedInAndMergedCart(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, defaultSettings())

	req := validRequest()
	req.Items = []model.OrderItemRequest{
		{ProductID: "P2", Quantity: 1},
		{ProductID: "P1", Quantity: 1},
		{ProductID: "P2", Quantity: 2},
	}
	identity := &model.Identity{ID: "user-1", Email: "ana@example.com"}

	var created *model.Order
	f.products.On("GetByIDs", ctx, []string{"P2", "P1"}).Return(hammerAndNails(), nil)
	f.shipping.On("FindRule", ctx, destinationOf(req)).Return(nil, nil)
	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.inventory.On("Reserve", ctx, f.tx, []model.StockRequest{
		{ProductID: "P2", Quantity: 3},
		{ProductID: "P1", Quantity: 1},
	}).Return(nil, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.AnythingOfType("*model.Order")).
		Run(func(args mock.Arguments) { created = args.Get(2).(*model.Order) }).
		Return(true, nil)
	f.orders.On("CreateOrderItems", ctx, f.tx, mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 2 && items[0].ProductID == "P2" && items[0].Quantity == 3
	})).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	result, err := f.service.CreateOrder(ctx, req, identity)

	require.NoError(t, err)
	assert.Equal(t, "25.00", result.Subtotal.StringFixed(2))
	assert.True(t, result.ShippingCost.IsZero())
	assert.Equal(t, "25.00", result.TotalAmount.StringFixed(2))

	require.NotNil(t, created.UserID)
	assert.Equal(t, "user-1", *created.UserID)
	assert.Contains(t, created.Notes, "Envío por confirmar")
	assert.NotContains(t, created.Notes, "Dirección")
}

func TestOrderService_CreateOrder_RejectedBeforeTransaction(t *testing.T) {
	ctx := context.Background()
	foreignURL := "https://elsewhere.example.com/proof.jpg"

	tests := []struct {
		name     string
		settings OrderSettings
		mutate   func(req *model.CreateOrderRequest)
		code     string
	}{
		{
			name:   "Missing customer name",
			mutate: func(req *model.CreateOrderRequest) { req.CustomerName = "   " },
			code:   model.ErrCodeValidation,
		},
		{
			name:   "Malformed email",
			mutate: func(req *model.CreateOrderRequest) { req.CustomerEmail = "not-an-email" },
			code:   model.ErrCodeValidation,
		},
		{
			name:   "Missing city",
			mutate: func(req *model.CreateOrderRequest) { req.City = "" },
			code:   model.ErrCodeValidation,
		},
		{
			name:   "Missing cedula",
			mutate: func(req *model.CreateOrderRequest) { req.Cedula = "" },
			code:   model.ErrCodeValidation,
		},
		{
			name:     "Proof required but absent",
			settings: OrderSettings{RequireProof: true, ProofFolder: "transferencias"},
			mutate:   func(req *model.CreateOrderRequest) {},
			code:     model.ErrCodeMissingProof,
		},
		{
			name:   "Proof URL outside the store",
			mutate: func(req *model.CreateOrderRequest) { req.PaymentProofURL = &foreignURL },
			code:   model.ErrCodeValidation,
		},
		{
			name:   "Empty cart",
			mutate: func(req *model.CreateOrderRequest) { req.Items = nil },
			code:   model.ErrCodeEmptyCart,
		},
		{
			name: "Zero quantity",
			mutate: func(req *model.CreateOrderRequest) {
				req.Items = []model.OrderItemRequest{{ProductID: "P1", Quantity: 0}}
			},
			code: model.ErrCodeValidation,
		},
		{
			name: "Negative quantity",
			mutate: func(req *model.CreateOrderRequest) {
				req.Items = []model.OrderItemRequest{{ProductID: "P1", Quantity: -3}}
			},
			code: model.ErrCodeValidation,
		},
		{
			name: "Blank product id",
			mutate: func(req *model.CreateOrderRequest) {
				req.Items = []model.OrderItemRequest{{ProductID: " ", Quantity: 1}}
			},
			code: model.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := tt.settings
			if settings.ProofFolder == "" {
				settings = defaultSettings()
			}
			f := newOrderFixture(t, settings)
			req := validRequest()
			tt.mutate(req)

			result, err := f.service.CreateOrder(ctx, req, nil)

			assert.Nil(t, result)
			requireCode(t, err, tt.code)
			f.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
			f.products.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything)
			assert.Empty(t, f.events.types())
		})
	}
}

func TestOrderService_CreateOrder_ValidationDetails(t *testing.T) {
	f := newOrderFixture(t, defaultSettings())
	req := validRequest()
	req.CustomerEmail = "bad"
	req.State = ""

	_, err := f.service.CreateOrder(context.Background(), req, nil)

	domainErr := requireCode(t, err, model.ErrCodeValidation)
	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email address", details["customer_email"])
	assert.Equal(t, "is required", details["state"])
}

func TestOrderService_CreateOrder_WithStoredProof(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, OrderSettings{RequireProof: true, ProofFolder: "transferencias"})
	req := validRequest()
	url := testProofBase + "/transferencias/upload-1.jpg"
	req.PaymentProofURL = &url

	f.products.On("GetByIDs", ctx, []string{"P1", "P2"}).Return(hammerAndNails(), nil)
	f.shipping.On("FindRule", ctx, destinationOf(req)).Return(&model.ShippingRule{IsFree: true}, nil)
	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.inventory.On("Reserve", ctx, f.tx, mock.Anything).Return(nil, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		return o.PaymentProofURL != nil && *o.PaymentProofURL == url && strings.HasSuffix(o.Notes, "Envío gratis")
	})).Return(true, nil)
	f.orders.On("CreateOrderItems", ctx, f.tx, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	result, err := f.service.CreateOrder(ctx, req, nil)

	require.NoError(t, err)
	assert.Equal(t, "30.00", result.TotalAmount.StringFixed(2))
}

func TestOrderService_CreateOrder_ProductChecks(t *testing.T) {
	ctx := context.Background()

	inactive := hammerAndNails()
	inactive[1].IsActive = false

	tests := []struct {
		name     string
		products []model.Product
		code     string
		details  any
	}{
		{
			name:     "Unknown product",
			products: hammerAndNails()[:1],
			code:     model.ErrCodeProductNotFound,
			details:  []string{"P2"},
		},
		{
			name:     "Inactive product",
			products: inactive,
			code:     model.ErrCodeProductUnavailable,
			details:  []string{"Nails"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t, defaultSettings())
			f.products.On("GetByIDs", ctx, []string{"P1", "P2"}).Return(tt.products, nil)

			result, err := f.service.CreateOrder(ctx, validRequest(), nil)

			assert.Nil(t, result)
			domainErr := requireCode(t, err, tt.code)
			assert.Equal(t, tt.details, domainErr.Details)
			f.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
		})
	}
}

func TestOrderService_CreateOrder_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, defaultSettings())
	req := validRequest()

	f.products.On("GetByIDs", ctx, []string{"P1", "P2"}).Return(hammerAndNails(), nil)
	f.shipping.On("FindRule", ctx, destinationOf(req)).Return(nil, nil)
	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.inventory.On("Reserve", ctx, f.tx, mock.Anything).Return([]model.StockShortage{
		{ProductID: "P2", Requested: 2, Available: 1},
	}, nil)
	f.tx.On("Rollback", ctx).Return(nil)

	result, err := f.service.CreateOrder(ctx, req, nil)

	assert.Nil(t, result)
	domainErr := requireCode(t, err, model.ErrCodeInsufficientStock)
	assert.Equal(t, []model.StockShortage{
		{ProductID: "P2", Product: "Nails", Requested: 2, Available: 1},
	}, domainErr.Details)
	assert.Contains(t, domainErr.Message, "Nails (requested 2, available 1)")

	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	f.tx.AssertNotCalled(t, "Commit", mock.Anything)
	assert.Empty(t, f.events.types())
}

func TestOrderService_CreateOrder_TrackingCodeCollision(t *testing.T) {
	ctx := context.Background()

	t.Run("Regenerates on collision", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		f.codes = []string{"TRK-AAAA2222", "TRK-BBBB3333"}
		req := validRequest()

		f.products.On("GetByIDs", ctx, mock.Anything).Return(hammerAndNails(), nil)
		f.shipping.On("FindRule", ctx, mock.Anything).Return(nil, nil)
		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.inventory.On("Reserve", ctx, f.tx, mock.Anything).Return(nil, nil)
		f.orders.On("CreateOrder", ctx, f.tx, mock.Anything).Return(false, nil).Once()
		f.orders.On("CreateOrder", ctx, f.tx, mock.Anything).Return(true, nil).Once()
		f.orders.On("CreateOrderItems", ctx, f.tx, mock.Anything).Return(nil)
		f.tx.On("Commit", ctx).Return(nil)

		result, err := f.service.CreateOrder(ctx, req, nil)

		require.NoError(t, err)
		assert.Equal(t, "TRK-BBBB3333", result.TrackingCode)
	})

	t.Run("Gives up after repeated collisions", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		f.products.On("GetByIDs", ctx, mock.Anything).Return(hammerAndNails(), nil)
		f.shipping.On("FindRule", ctx, mock.Anything).Return(nil, nil)
		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.inventory.On("Reserve", ctx, f.tx, mock.Anything).Return(nil, nil)
		f.orders.On("CreateOrder", ctx, f.tx, mock.Anything).Return(false, nil).Times(maxTrackingCodeAttempts)
		f.tx.On("Rollback", ctx).Return(nil)

		result, err := f.service.CreateOrder(ctx, validRequest(), nil)

		require.Error(t, err)
		assert.Nil(t, result)
		var domainErr *model.DomainError
		assert.False(t, errors.As(err, &domainErr))
	})
}

func TestOrderService_CreateOrder_TransactionRollback(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(f *orderFixture)
	}{
		{
			name: "Reserve fails",
			setup: func(f *orderFixture) {
				f.inventory.On("Reserve", ctx, f.tx, mock.Anything).Return(nil, errors.New("database error"))
			},
		},
		{
			name: "Insert fails",
			setup: func(f *orderFixture) {
				f.inventory.On("Reserve", ctx, f.tx, mock.Anything).Return(nil, nil)
				f.orders.On("CreateOrder", ctx, f.tx, mock.Anything).Return(false, errors.New("database error"))
			},
		},
		{
			name: "Items fail",
			setup: func(f *orderFixture) {
				f.inventory.On("Reserve", ctx, f.tx, mock.Anything).Return(nil, nil)
				f.orders.On("CreateOrder", ctx, f.tx, mock.Anything).Return(true, nil)
				f.orders.On("CreateOrderItems", ctx, f.tx, mock.Anything).Return(errors.New("database error"))
			},
		},
		{
			name: "Commit fails",
			setup: func(f *orderFixture) {
				f.inventory.On("Reserve", ctx, f.tx, mock.Anything).Return(nil, nil)
				f.orders.On("CreateOrder", ctx, f.tx, mock.Anything).Return(true, nil)
				f.orders.On("CreateOrderItems", ctx, f.tx, mock.Anything).Return(nil)
				f.tx.On("Commit", ctx).Return(errors.New("connection reset"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t, defaultSettings())
			f.products.On("GetByIDs", ctx, mock.Anything).Return(hammerAndNails(), nil)
			f.shipping.On("FindRule", ctx, mock.Anything).Return(nil, nil)
			f.orders.On("BeginTx", ctx).Return(f.tx, nil)
			f.tx.On("Rollback", ctx).Return(nil)
			tt.setup(f)

			result, err := f.service.CreateOrder(ctx, validRequest(), nil)

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Empty(t, f.events.types())
		})
	}
}

func TestOrderService_UploadProof(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	png := []byte("\x89PNG fake image bytes")
	encoded := base64.StdEncoding.EncodeToString(png)

	pending := func() *model.Order {
		return &model.Order{ID: orderID, TrackingCode: "TRK-ABCD2345", Status: model.StatusPending}
	}

	t.Run("Stores the proof under the tracking code", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		key := "transferencias/TRK-ABCD2345.png"
		url := testProofBase + "/" + key

		f.orders.On("GetByID", ctx, orderID).Return(pending(), nil)
		f.store.On("Create", ctx, key, png, "image/png").Return(nil)
		f.orders.On("SetPaymentProof", ctx, orderID, url).Return(true, nil)

		result, err := f.service.UploadProof(ctx, &model.UploadProofRequest{
			OrderID:  orderID.String(),
			FileName: "comprobante.PNG",
			FileData: "data:image/png;base64," + encoded,
		})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, url, result.PaymentProofURL)
		assert.Equal(t, []string{events.TypeOrderProofUploaded}, f.events.types())
	})

	t.Run("Takes the next free suffix", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		f.orders.On("GetByID", ctx, orderID).Return(pending(), nil)
		f.store.On("Create", ctx, "transferencias/TRK-ABCD2345.jpg", png, "image/jpeg").Return(storage.ErrObjectExists)
		f.store.On("Create", ctx, "transferencias/TRK-ABCD2345-2.jpg", png, "image/jpeg").Return(storage.ErrObjectExists)
		f.store.On("Create", ctx, "transferencias/TRK-ABCD2345-3.jpg", png, "image/jpeg").Return(nil)
		f.orders.On("SetPaymentProof", ctx, orderID, testProofBase+"/transferencias/TRK-ABCD2345-3.jpg").Return(true, nil)

		result, err := f.service.UploadProof(ctx, &model.UploadProofRequest{
			OrderID:  orderID.String(),
			FileData: encoded,
		})

		require.NoError(t, err)
		assert.Equal(t, testProofBase+"/transferencias/TRK-ABCD2345-3.jpg", result.PaymentProofURL)
	})

	t.Run("Removes the blob when the order update fails", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		key := "transferencias/TRK-ABCD2345.webp"

		f.orders.On("GetByID", ctx, orderID).Return(pending(), nil)
		f.store.On("Create", ctx, key, png, "image/webp").Return(nil)
		f.orders.On("SetPaymentProof", ctx, orderID, testProofBase+"/"+key).Return(false, errors.New("database error"))
		f.store.On("Delete", mock.Anything, key).Return(nil)

		result, err := f.service.UploadProof(ctx, &model.UploadProofRequest{
			OrderID:  orderID.String(),
			FileName: "proof.webp",
			FileData: encoded,
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Empty(t, f.events.types())
	})

	t.Run("Removes the blob when the order vanished", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		key := "transferencias/TRK-ABCD2345.jpg"

		f.orders.On("GetByID", ctx, orderID).Return(pending(), nil)
		f.store.On("Create", ctx, key, png, "image/jpeg").Return(nil)
		f.orders.On("SetPaymentProof", ctx, orderID, testProofBase+"/"+key).Return(false, nil)
		f.store.On("Delete", mock.Anything, key).Return(nil)

		_, err := f.service.UploadProof(ctx, &model.UploadProofRequest{OrderID: orderID.String(), FileData: encoded})

		requireCode(t, err, model.ErrCodeOrderNotFound)
	})

	t.Run("Store failure", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		f.orders.On("GetByID", ctx, orderID).Return(pending(), nil)
		f.store.On("Create", ctx, mock.Anything, png, "image/jpeg").Return(errors.New("access denied"))

		_, err := f.service.UploadProof(ctx, &model.UploadProofRequest{OrderID: orderID.String(), FileData: encoded})

		require.Error(t, err)
		f.orders.AssertNotCalled(t, "SetPaymentProof", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOrderService_UploadProof_Rejected(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	encoded := base64.StdEncoding.EncodeToString([]byte("image"))

	tests := []struct {
		name  string
		req   *model.UploadProofRequest
		order *model.Order
		code  string
	}{
		{
			name: "Missing order id",
			req:  &model.UploadProofRequest{FileData: encoded},
			code: model.ErrCodeValidation,
		},
		{
			name: "Malformed order id",
			req:  &model.UploadProofRequest{OrderID: "order-1", FileData: encoded},
			code: model.ErrCodeValidation,
		},
		{
			name: "Invalid base64",
			req:  &model.UploadProofRequest{OrderID: orderID.String(), FileData: "%%%not-base64"},
			code: model.ErrCodeValidation,
		},
		{
			name: "Too large",
			req: &model.UploadProofRequest{
				OrderID:  orderID.String(),
				FileData: base64.StdEncoding.EncodeToString(make([]byte, 2048)),
			},
			code: model.ErrCodeValidation,
		},
		{
			name: "Unsupported type",
			req:  &model.UploadProofRequest{OrderID: orderID.String(), FileName: "proof.pdf", FileData: encoded},
			code: model.ErrCodeValidation,
		},
		{
			name: "Unknown order",
			req:  &model.UploadProofRequest{OrderID: orderID.String(), FileData: encoded},
			code: model.ErrCodeOrderNotFound,
		},
		{
			name:  "Order no longer pending",
			req:   &model.UploadProofRequest{OrderID: orderID.String(), FileData: encoded},
			order: &model.Order{ID: orderID, TrackingCode: "TRK-ABCD2345", Status: model.StatusConfirmed},
			code:  model.ErrCodeInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t, defaultSettings())
			if tt.code == model.ErrCodeOrderNotFound || tt.order != nil {
				if tt.order != nil {
					f.orders.On("GetByID", ctx, orderID).Return(tt.order, nil)
				} else {
					f.orders.On("GetByID", ctx, orderID).Return(nil, nil)
				}
			}

			result, err := f.service.UploadProof(ctx, tt.req)

			assert.Nil(t, result)
			requireCode(t, err, tt.code)
			f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_AttachProof(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	url := testProofBase + "/transferencias/TRK-ABCD2345.jpg"

	t.Run("Attaches a stored proof", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		f.orders.On("GetByID", ctx, orderID).
			Return(&model.Order{ID: orderID, TrackingCode: "TRK-ABCD2345", Status: model.StatusPending}, nil)
		f.orders.On("SetPaymentProof", ctx, orderID, url).Return(true, nil)

		result, err := f.service.AttachProof(ctx, &model.UploadProofRequest{OrderID: orderID.String(), PaymentProofURL: url})

		require.NoError(t, err)
		assert.Equal(t, url, result.PaymentProofURL)
		assert.Equal(t, []string{events.TypeOrderProofUploaded}, f.events.types())
	})

	t.Run("Rejects foreign URLs", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		_, err := f.service.AttachProof(ctx, &model.UploadProofRequest{
			OrderID:         orderID.String(),
			PaymentProofURL: "https://evil.example.com/x.jpg",
		})

		requireCode(t, err, model.ErrCodeValidation)
	})

	foreign := []struct {
		name string
		key  string
	}{
		{"another order's proof", "transferencias/TRK-PAID2222.jpg"},
		{"another order's suffixed proof", "transferencias/TRK-PAID2222-2.png"},
		{"same code in another folder", "uploads/TRK-ABCD2345.jpg"},
		{"code without separator", "transferencias/TRK-ABCD2345jpg"},
	}
	for _, tt := range foreign {
		t.Run("Rejects "+tt.name, func(t *testing.T) {
			f := newOrderFixture(t, defaultSettings())
			f.orders.On("GetByID", ctx, orderID).
				Return(&model.Order{ID: orderID, TrackingCode: "TRK-ABCD2345", Status: model.StatusPending}, nil)

			_, err := f.service.AttachProof(ctx, &model.UploadProofRequest{
				OrderID:         orderID.String(),
				PaymentProofURL: testProofBase + "/" + tt.key,
			})

			requireCode(t, err, model.ErrCodeValidation)
			f.orders.AssertNotCalled(t, "SetPaymentProof", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("Attaches a suffixed proof of the same order", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		suffixed := testProofBase + "/transferencias/TRK-ABCD2345-2.png"
		f.orders.On("GetByID", ctx, orderID).
			Return(&model.Order{ID: orderID, TrackingCode: "TRK-ABCD2345", Status: model.StatusPending}, nil)
		f.orders.On("SetPaymentProof", ctx, orderID, suffixed).Return(true, nil)

		_, err := f.service.AttachProof(ctx, &model.UploadProofRequest{OrderID: orderID.String(), PaymentProofURL: suffixed})

		require.NoError(t, err)
	})

	t.Run("Unknown order", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		f.orders.On("GetByID", ctx, orderID).Return(nil, nil)

		_, err := f.service.AttachProof(ctx, &model.UploadProofRequest{OrderID: orderID.String(), PaymentProofURL: url})

		requireCode(t, err, model.ErrCodeOrderNotFound)
	})
}

func TestOrderService_CancelOrder(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	owner := "user-1"

	newOrder := func(status model.OrderStatus, userID *string, proof *string) *model.Order {
		return &model.Order{
			ID:              orderID,
			TrackingCode:    "TRK-ABCD2345",
			UserID:          userID,
			Status:          status,
			PaymentProofURL: proof,
			Items: []model.OrderItem{
				{ProductID: "P1", Quantity: 2},
				{ProductID: "P2", Quantity: 1},
			},
		}
	}
	restock := []model.StockRequest{{ProductID: "P1", Quantity: 2}, {ProductID: "P2", Quantity: 1}}

	t.Run("Restores stock and removes the order", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		f.cache.Set(ctx, &model.TrackingView{TrackingCode: "TRK-ABCD2345"})

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("GetForUpdate", ctx, f.tx, orderID).Return(newOrder(model.StatusPending, nil, nil), nil)
		f.inventory.On("Restore", ctx, f.tx, restock).Return(nil)
		f.orders.On("Delete", ctx, f.tx, orderID).Return(nil)
		f.tx.On("Commit", ctx).Return(nil)
		f.store.On("DeletePrefix", mock.Anything, "transferencias/TRK-ABCD2345").Return(2, nil)

		err := f.service.CancelOrder(ctx, orderID.String(), nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"TRK-ABCD2345"}, f.cache.invalidated)
		_, cached := f.cache.Get(ctx, "TRK-ABCD2345")
		assert.False(t, cached)
		assert.Equal(t, []string{events.TypeOrderCancelled}, f.events.types())
		assert.Equal(t, string(model.StatusCancelled), f.events.events[0].Status)
	})

	t.Run("Owner cancels and a proof outside the order prefix is kept", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		shared := testProofBase + "/transferencias/TRK-PAID2222.jpg"

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("GetForUpdate", ctx, f.tx, orderID).Return(newOrder(model.StatusPending, &owner, &shared), nil)
		f.inventory.On("Restore", ctx, f.tx, restock).Return(nil)
		f.orders.On("Delete", ctx, f.tx, orderID).Return(nil)
		f.tx.On("Commit", ctx).Return(nil)
		f.store.On("DeletePrefix", mock.Anything, "transferencias/TRK-ABCD2345").Return(0, nil)

		err := f.service.CancelOrder(ctx, orderID.String(), &model.Identity{ID: owner})

		require.NoError(t, err)
		f.store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Tracking view written back during the cancel is dropped again", func(t *testing.T) {
		settings := defaultSettings()
		settings.CacheSettleDelay = 200 * time.Millisecond
		f := newOrderFixture(t, settings)

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("GetForUpdate", ctx, f.tx, orderID).Return(newOrder(model.StatusPending, nil, nil), nil)
		f.inventory.On("Restore", ctx, f.tx, restock).Return(nil)
		f.orders.On("Delete", ctx, f.tx, orderID).Return(nil)
		f.tx.On("Commit", ctx).Return(nil)
		f.store.On("DeletePrefix", mock.Anything, "transferencias/TRK-ABCD2345").Return(0, nil)

		require.NoError(t, f.service.CancelOrder(ctx, orderID.String(), nil))

		// A lookup that read the order before the commit stores its view after the first invalidation.
		f.cache.Set(ctx, &model.TrackingView{TrackingCode: "TRK-ABCD2345", Status: model.StatusPending})

		assert.Eventually(t, func() bool {
			_, cached := f.cache.Get(ctx, "TRK-ABCD2345")
			return !cached
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"TRK-ABCD2345", "TRK-ABCD2345"}, f.cache.invalidations())
	})

	t.Run("Blob cleanup failure does not fail the cancellation", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("GetForUpdate", ctx, f.tx, orderID).Return(newOrder(model.StatusPending, nil, nil), nil)
		f.inventory.On("Restore", ctx, f.tx, restock).Return(nil)
		f.orders.On("Delete", ctx, f.tx, orderID).Return(nil)
		f.tx.On("Commit", ctx).Return(nil)
		f.store.On("DeletePrefix", mock.Anything, mock.Anything).Return(0, errors.New("bucket unavailable"))

		err := f.service.CancelOrder(ctx, orderID.String(), nil)

		require.NoError(t, err)
	})

	rejected := []struct {
		name     string
		order    *model.Order
		identity *model.Identity
		code     string
	}{
		{name: "Unknown order", order: nil, code: model.ErrCodeOrderNotFound},
		{name: "Confirmed order", order: newOrder(model.StatusConfirmed, nil, nil), code: model.ErrCodeInvalidState},
		{name: "Completed order", order: newOrder(model.StatusCompleted, nil, nil), code: model.ErrCodeInvalidState},
		{
			name:     "Another user's order",
			order:    newOrder(model.StatusPending, &owner, nil),
			identity: &model.Identity{ID: "user-2"},
			code:     model.ErrCodeUnauthorised,
		},
		{
			name:  "Owned order, anonymous caller",
			order: newOrder(model.StatusPending, &owner, nil),
			code:  model.ErrCodeUnauthorised,
		},
	}

	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t, defaultSettings())

			f.orders.On("BeginTx", ctx).Return(f.tx, nil)
			if tt.order == nil {
				f.orders.On("GetForUpdate", ctx, f.tx, orderID).Return(nil, nil)
			} else {
				f.orders.On("GetForUpdate", ctx, f.tx, orderID).Return(tt.order, nil)
			}
			f.tx.On("Rollback", ctx).Return(nil)

			err := f.service.CancelOrder(ctx, orderID.String(), tt.identity)

			requireCode(t, err, tt.code)
			f.inventory.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything, mock.Anything)
			f.orders.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.events.types())
		})
	}

	t.Run("Restore failure rolls back", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("GetForUpdate", ctx, f.tx, orderID).Return(newOrder(model.StatusPending, nil, nil), nil)
		f.inventory.On("Restore", ctx, f.tx, restock).Return(errors.New("database error"))
		f.tx.On("Rollback", ctx).Return(nil)

		err := f.service.CancelOrder(ctx, orderID.String(), nil)

		require.Error(t, err)
		f.store.AssertNotCalled(t, "DeletePrefix", mock.Anything, mock.Anything)
	})

	t.Run("Malformed order id", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		err := f.service.CancelOrder(ctx, "42", nil)

		requireCode(t, err, model.ErrCodeValidation)
		f.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
	})
}

func TestOrderService_Track(t *testing.T) {
	ctx := context.Background()

	order := &model.Order{
		ID:           uuid.New(),
		TrackingCode: "TRK-ABCD2345",
		Status:       model.StatusPending,
		CreatedAt:    fixedNow,
		TotalAmount:  decimal.RequireFromString("35"),
		Items: []model.OrderItem{
			{ProductName: "Hammer", Quantity: 2, ProductPrice: decimal.RequireFromString("10")},
			{ProductName: "Nails", Quantity: 2, ProductPrice: decimal.RequireFromString("5")},
		},
	}

	t.Run("Case-insensitive lookup through the cache", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		f.orders.On("GetByTrackingCode", ctx, "TRK-ABCD2345").Return(order, nil).Once()

		first, err := f.service.Track(ctx, "  trk-abcd2345 ")
		require.NoError(t, err)
		second, err := f.service.Track(ctx, "TRK-ABCD2345")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, model.StatusPending, first.Status)
		require.Len(t, first.Items, 2)
		assert.Equal(t, "Hammer", first.Items[0].Name)
		assert.Equal(t, "Nails", first.Items[1].Name)
	})

	t.Run("Unknown code", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		f.orders.On("GetByTrackingCode", ctx, "TRK-NOPE2345").Return(nil, nil)

		_, err := f.service.Track(ctx, "trk-nope2345")

		requireCode(t, err, model.ErrCodeOrderNotFound)
	})

	t.Run("Blank code", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		_, err := f.service.Track(ctx, "   ")

		requireCode(t, err, model.ErrCodeValidation)
	})

	t.Run("Repository failure", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		f.orders.On("GetByTrackingCode", ctx, "TRK-ABCD2345").Return(nil, errors.New("database error"))

		_, err := f.service.Track(ctx, "TRK-ABCD2345")

		require.Error(t, err)
		var domainErr *model.DomainError
		assert.False(t, errors.As(err, &domainErr))
	})
}

func TestOrderService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("Requires a signed-in caller", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())

		_, err := f.service.History(ctx, nil)

		requireCode(t, err, model.ErrCodeUnauthenticated)
	})

	t.Run("Lists the caller's orders", func(t *testing.T) {
		f := newOrderFixture(t, defaultSettings())
		orders := []model.Order{{ID: uuid.New(), TrackingCode: "TRK-ABCD2345"}}
		f.orders.On("ListByUser", ctx, "user-1", historyLimit).Return(orders, nil)

		got, err := f.service.History(ctx, &model.Identity{ID: "user-1"})

		require.NoError(t, err)
		assert.Equal(t, orders, got)
	})
}
