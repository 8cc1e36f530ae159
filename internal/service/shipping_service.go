package service

import (
	"context"
	"strings"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	shippingFreeMessage        = "Envío gratis"
	shippingUnconfirmedMessage = "Envío por confirmar"
)

type shippingService struct {
	shippingRepo repository.ShippingRepository
	validate     *validator.Validate
	logger       zerolog.Logger
}

// NewShippingService creates a new shipping service.
func NewShippingService(shippingRepo repository.ShippingRepository, logger zerolog.Logger) ShippingService {
	return &shippingService{
		shippingRepo: shippingRepo,
		validate:     newValidator(),
		logger:       logger.With().Str("service", "shipping").Logger(),
	}
}

// Quote looks up the exact destination rule. Lookup failures are logged and quoted like a missing rule.
func (s *shippingService) Quote(ctx context.Context, dest model.Destination) (*model.ShippingQuote, error) {
	dest = model.Destination{
		Country: strings.TrimSpace(dest.Country),
		State:   strings.TrimSpace(dest.State),
		City:    strings.TrimSpace(dest.City),
	}
	if err := validateStruct(s.validate, dest); err != nil {
		return nil, err
	}

	rule, err := s.shippingRepo.FindRule(ctx, dest)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("country", dest.Country).
			Str("state", dest.State).
			Str("city", dest.City).
			Msg("shipping rule lookup failed, quoting as unconfirmed")
		rule = nil
	}

	return quoteFor(rule), nil
}

func quoteFor(rule *model.ShippingRule) *model.ShippingQuote {
	switch {
	case rule == nil:
		return &model.ShippingQuote{Cost: decimal.Zero, Message: shippingUnconfirmedMessage}
	case rule.IsFree:
		return &model.ShippingQuote{IsFree: true, Cost: decimal.Zero, Message: shippingFreeMessage, Confirmed: true}
	default:
		return &model.ShippingQuote{
			Cost:      rule.BaseCost,
			Message:   "Costo de envío: $" + rule.BaseCost.StringFixed(2),
			Confirmed: true,
		}
	}
}
