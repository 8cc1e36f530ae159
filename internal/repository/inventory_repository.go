package repository

import (
	"context"
	"fmt"
	"sort"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// inventoryRepository implements InventoryRepository. It only works inside transactions opened elsewhere.
type inventoryRepository struct {
	logger zerolog.Logger
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(logger zerolog.Logger) InventoryRepository {
	return &inventoryRepository{
		logger: logger.With().Str("repository", "inventory").Logger(),
	}
}

// Reserve locks the inventory rows in product id order, checks every line, then decrements.
func (r *inventoryRepository) Reserve(ctx context.Context, tx pgx.Tx, items []model.StockRequest) ([]model.StockShortage, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ordered := sortedRequests(items)
	ids := make([]string, len(ordered))
	for i, it := range ordered {
		ids[i] = it.ProductID
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity
		FROM inventory
		WHERE product_id = ANY($1)
		ORDER BY product_id
		FOR UPDATE
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to lock inventory rows")
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}

	available := make(map[string]int, len(ids))
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			rows.Close()
			r.logger.Error().Err(err).Msg("failed to scan inventory row")
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		available[id] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating inventory rows")
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}

	// A product without an inventory row has no stock.
	var shortages []model.StockShortage
	for _, it := range ordered {
		if have := available[it.ProductID]; have < it.Quantity {
			shortages = append(shortages, model.StockShortage{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: have,
			})
		}
	}
	if len(shortages) > 0 {
		r.logger.Info().Int("short_lines", len(shortages)).Msg("reservation rejected")
		return shortages, nil
	}

	batch := &pgx.Batch{}
	for _, it := range ordered {
		batch.Queue(`
			UPDATE inventory
			SET quantity = quantity - $2, updated_at = NOW()
			WHERE product_id = $1 AND quantity >= $2
		`, it.ProductID, it.Quantity)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, it := range ordered {
		tag, err := results.Exec()
		if err != nil {
			r.logger.Error().Err(err).Str("product_id", it.ProductID).Msg("failed to decrement inventory")
			return nil, fmt.Errorf("failed to decrement inventory: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return nil, fmt.Errorf("failed to decrement inventory for product %s: row changed under lock", it.ProductID)
		}
	}

	r.logger.Debug().Int("count", len(ordered)).Msg("inventory reserved")

	return nil, nil
}

// Restore increments stock, creating the inventory row when it has been removed meanwhile.
func (r *inventoryRepository) Restore(ctx context.Context, tx pgx.Tx, items []model.StockRequest) error {
	if len(items) == 0 {
		return nil
	}

	ordered := sortedRequests(items)

	batch := &pgx.Batch{}
	for _, it := range ordered {
		batch.Queue(`
			INSERT INTO inventory (product_id, quantity, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (product_id)
			DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity, updated_at = NOW()
		`, it.ProductID, it.Quantity)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, it := range ordered {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().Err(err).Str("product_id", it.ProductID).Msg("failed to restore inventory")
			return fmt.Errorf("failed to restore inventory: %w", err)
		}
	}

	r.logger.Debug().Int("count", len(ordered)).Msg("inventory restored")

	return nil
}

// sortedRequests merges duplicate products and orders them by id so concurrent transactions lock in the same order.
func sortedRequests(items []model.StockRequest) []model.StockRequest {
	merged := make(map[string]int, len(items))
	for _, it := range items {
		merged[it.ProductID] += it.Quantity
	}

	out := make([]model.StockRequest, 0, len(merged))
	for id, qty := range merged {
		out = append(out, model.StockRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })

	return out
}
