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

type profileRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProfileRepository creates a new PostgreSQL-backed customer profile repository.
func NewProfileRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProfileRepository {
	return &profileRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "profile").Logger(),
	}
}

// Get returns the saved profile or nil.
func (r *profileRepository) Get(ctx context.Context, id string) (*model.CustomerProfile, error) {
	query := `
		SELECT id, first_name, last_name, cedula, phone, country, state, city, address_line1, updated_at
		FROM customer_profiles
		WHERE id = $1
	`

	var p model.CustomerProfile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Cedula, &p.Phone,
		&p.Country, &p.State, &p.City, &p.AddressLine1, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", id).Msg("failed to query profile")
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	return &p, nil
}

// Upsert creates or replaces the profile and refreshes UpdatedAt.
func (r *profileRepository) Upsert(ctx context.Context, p *model.CustomerProfile) error {
	query := `
		INSERT INTO customer_profiles (id, first_name, last_name, cedula, phone, country, state, city, address_line1, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			cedula = EXCLUDED.cedula,
			phone = EXCLUDED.phone,
			country = EXCLUDED.country,
			state = EXCLUDED.state,
			city = EXCLUDED.city,
			address_line1 = EXCLUDED.address_line1,
			updated_at = NOW()
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		p.ID, p.FirstName, p.LastName, p.Cedula, p.Phone,
		p.Country, p.State, p.City, p.AddressLine1,
	).Scan(&p.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", p.ID).Msg("failed to upsert profile")
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}
