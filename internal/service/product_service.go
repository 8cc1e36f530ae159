package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

type productService struct {
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewProductService creates the read-only catalog service used for cart review.
func NewProductService(productRepo repository.ProductRepository, logger zerolog.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger.With().Str("service", "product").Logger(),
	}
}

func (s *productService) List(ctx context.Context, q model.ProductQuery) ([]model.Product, error) {
	q = q.Normalize()

	products, err := s.productRepo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	s.logger.Debug().
		Int("count", len(products)).
		Int("limit", q.Limit).
		Int("offset", q.Offset).
		Bool("in_stock", q.InStock).
		Str("search", q.Search).
		Msg("catalog page served")

	return products, nil
}

func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, model.ErrProductNotFound
	}

	product, err := s.productRepo.GetByID(ctx, id)
	switch {
	case err != nil:
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	case product == nil:
		return nil, model.ErrProductNotFound
	}

	return product, nil
}
