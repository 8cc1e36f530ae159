package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer with the migrated schema and returns a connection pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, pool, zerolog.Nop()))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

type seedProduct struct {
	id     string
	name   string
	price  string
	active bool
	stock  int
}

// seedProducts inserts products and their inventory rows.
func seedProducts(t *testing.T, pool *pgxpool.Pool, products []seedProduct) {
	t.Helper()
	ctx := context.Background()

	for _, p := range products {
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, sku, price, is_active) VALUES ($1, $2, $3, $4, $5)`,
			p.id, p.name, "SKU-"+p.id, decimal.RequireFromString(p.price), p.active,
		)
		require.NoError(t, err)

		_, err = pool.Exec(ctx, `INSERT INTO inventory (product_id, quantity) VALUES ($1, $2)`, p.id, p.stock)
		require.NoError(t, err)
	}
}

func stockOf(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()
	var qty int
	err := pool.QueryRow(context.Background(), `SELECT quantity FROM inventory WHERE product_id = $1`, productID).Scan(&qty)
	require.NoError(t, err)
	return qty
}

func newTestOrder(code string, userID *string) *model.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Order{
		ID:            uuid.New(),
		TrackingCode:  code,
		UserID:        userID,
		CustomerName:  "Ana Pérez",
		CustomerEmail: "ana@example.com",
		Cedula:        "0102030405",
		Notes:         "Cédula: 0102030405",
		PaymentMethod: model.PaymentMethodTransfer,
		Subtotal:      decimal.RequireFromString("30.00"),
		ShippingCost:  decimal.RequireFromString("5.00"),
		TotalAmount:   decimal.RequireFromString("35.00"),
		Status:        model.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
