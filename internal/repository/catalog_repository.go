package repository

import (
	"context"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type catalogRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog writer.
func NewCatalogRepository(pool *pgxpool.Pool, logger zerolog.Logger) CatalogRepository {
	return &catalogRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "catalog").Logger(),
	}
}

// Import writes products, their stock levels and, when rules is non-nil, the shipping rule table in one transaction.
func (r *catalogRepository) Import(ctx context.Context, products []model.Product, rules []model.ShippingRule) (summary *model.ImportSummary, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = r.upsertProducts(ctx, tx, products); err != nil {
		return nil, err
	}

	summary = &model.ImportSummary{Products: len(products)}

	if rules != nil {
		if summary.Rules, err = r.replaceRules(ctx, tx, rules); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info().
		Int("products", summary.Products).
		Int("shipping_rules", summary.Rules).
		Bool("rules_replaced", rules != nil).
		Msg("catalog imported")

	return summary, nil
}

func (r *catalogRepository) upsertProducts(ctx context.Context, tx pgx.Tx, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`
			INSERT INTO products (id, name, sku, price, is_active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				sku = EXCLUDED.sku,
				price = EXCLUDED.price,
				is_active = EXCLUDED.is_active
		`, p.ID, p.Name, p.SKU, p.Price, p.IsActive)
		batch.Queue(`
			INSERT INTO inventory (product_id, quantity, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (product_id)
			DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
		`, p.ID, p.Stock)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, p := range products {
		for range 2 {
			if _, err := results.Exec(); err != nil {
				r.logger.Error().Err(err).Str("product_id", p.ID).Msg("failed to upsert product")
				return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
			}
		}
	}

	return nil
}

func (r *catalogRepository) replaceRules(ctx context.Context, tx pgx.Tx, rules []model.ShippingRule) (int, error) {
	if _, err := tx.Exec(ctx, "DELETE FROM shipping_rules"); err != nil {
		r.logger.Error().Err(err).Msg("failed to clear shipping rules")
		return 0, fmt.Errorf("failed to clear shipping rules: %w", err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"shipping_rules"},
		[]string{"country", "state", "city", "is_free", "base_cost", "is_active"},
		pgx.CopyFromSlice(len(rules), func(i int) ([]any, error) {
			rule := rules[i]
			return []any{rule.Country, rule.State, rule.City, rule.IsFree, rule.BaseCost, true}, nil
		}),
	)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(rules)).Msg("failed to copy shipping rules")
		return 0, fmt.Errorf("failed to copy shipping rules: %w", err)
	}

	return int(n), nil
}
