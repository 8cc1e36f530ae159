package handler

import (
	"context"

	"storefront/internal/model"

	"github.com/stretchr/testify/mock"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) List(ctx context.Context, q model.ProductQuery) ([]model.Product, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, req *model.CreateOrderRequest, identity *model.Identity) (*model.CreateOrderResult, error) {
	args := m.Called(ctx, req, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreateOrderResult), args.Error(1)
}

func (m *MockOrderService) UploadProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProofResult), args.Error(1)
}

func (m *MockOrderService) AttachProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProofResult), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderID string, identity *model.Identity) error {
	args := m.Called(ctx, orderID, identity)
	return args.Error(0)
}

func (m *MockOrderService) Track(ctx context.Context, code string) (*model.TrackingView, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TrackingView), args.Error(1)
}

func (m *MockOrderService) History(ctx context.Context, identity *model.Identity) ([]model.Order, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

// MockShippingService is a mock implementation of ShippingService.
type MockShippingService struct {
	mock.Mock
}

func (m *MockShippingService) Quote(ctx context.Context, dest model.Destination) (*model.ShippingQuote, error) {
	args := m.Called(ctx, dest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShippingQuote), args.Error(1)
}

// MockProfileService is a mock implementation of ProfileService.
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Get(ctx context.Context, identity *model.Identity) (*model.CustomerProfile, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustomerProfile), args.Error(1)
}

func (m *MockProfileService) Save(ctx context.Context, identity *model.Identity, profile *model.CustomerProfile) (*model.CustomerProfile, error) {
	args := m.Called(ctx, identity, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustomerProfile), args.Error(1)
}
