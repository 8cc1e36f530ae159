package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type shippingRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewShippingRepository creates a new PostgreSQL-backed shipping rule repository.
func NewShippingRepository(pool *pgxpool.Pool, logger zerolog.Logger) ShippingRepository {
	return &shippingRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "shipping").Logger(),
	}
}

// FindRule returns the active rule for the exact destination.
func (r *shippingRepository) FindRule(ctx context.Context, dest model.Destination) (*model.ShippingRule, error) {
	query := `
		SELECT country, state, city, is_free, base_cost
		FROM shipping_rules
		WHERE country = $1 AND state = $2 AND city = $3 AND is_active
		ORDER BY id
		LIMIT 1
	`

	var rule model.ShippingRule
	err := r.pool.QueryRow(ctx, query, dest.Country, dest.State, dest.City).
		Scan(&rule.Country, &rule.State, &rule.City, &rule.IsFree, &rule.BaseCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().
				Str("country", dest.Country).
				Str("state", dest.State).
				Str("city", dest.City).
				Msg("no shipping rule for destination")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("city", dest.City).Msg("failed to query shipping rule")
		return nil, fmt.Errorf("failed to query shipping rule: %w", err)
	}

	return &rule, nil
}
