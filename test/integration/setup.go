package integration

import (
	"context"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB is a migrated PostgreSQL instance running in a container for one test.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

const (
	dbImage   = "postgres:16-alpine"
	dbName    = "storefront_it"
	dbUser    = "storefront"
	dbSecret  = "storefront"
	readyLine = "database system is ready to accept connections"
)

// SetupTestDB starts a container, migrates the schema and returns a pool sized for
// the concurrency scenarios. Everything is torn down when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, dbImage,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbSecret),
		testcontainers.WithWaitStrategy(
			wait.ForLog(readyLine).WithOccurrence(2).WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("postgres container did not start: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("postgres container did not stop: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("no connection string for container: %v", err)
	}

	pool, err := database.NewPoolFromURL(ctx, dsn, config.DatabaseConfig{
		MaxConnections:  20,
		MinConnections:  2,
		MaxConnLifetime: 300,
		ConnectAttempts: 5,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("pool against %s failed: %v", dbImage, err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("schema migration failed: %v", err)
	}

	return &TestDB{Container: container, Pool: pool, ConnStr: dsn}
}

// SeedCatalog inserts the products, stock levels and shipping rules used by the scenarios.
func SeedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	products := []struct {
		id     string
		name   string
		price  string
		active bool
		stock  int
	}{
		{"P-HAMMER", "Hammer", "10.00", true, 10},
		{"P-NAILS", "Nails", "2.50", true, 100},
		{"P-SAW", "Saw", "25.00", true, 1},
		{"P-OLD", "Discontinued Drill", "99.00", false, 5},
		{"P-BULK", "Screw", "0.10", true, 2000},
	}

	for _, p := range products {
		_, err := pool.Exec(ctx,
			"INSERT INTO products (id, name, sku, price, is_active) VALUES ($1, $2, $3, $4, $5)",
			p.id, p.name, "SKU-"+p.id, decimal.RequireFromString(p.price), p.active,
		)
		if err != nil {
			t.Fatalf("failed to seed product %s: %v", p.id, err)
		}
		_, err = pool.Exec(ctx, "INSERT INTO inventory (product_id, quantity) VALUES ($1, $2)", p.id, p.stock)
		if err != nil {
			t.Fatalf("failed to seed inventory for %s: %v", p.id, err)
		}
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO shipping_rules (country, state, city, is_free, base_cost, is_active) VALUES
			('Venezuela', 'Miranda', 'Caracas', FALSE, 5.00, TRUE),
			('Venezuela', 'Zulia', 'Maracaibo', TRUE, 0, TRUE),
			('Venezuela', 'Lara', 'Barquisimeto', FALSE, 7.00, FALSE)
	`)
	if err != nil {
		t.Fatalf("failed to seed shipping rules: %v", err)
	}
}

// CleanupDB empties every table the scenarios write to.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`TRUNCATE order_items, orders, inventory, products, shipping_rules, customer_profiles CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// StockOf returns the current inventory of a product.
func StockOf(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()

	var qty int
	err := pool.QueryRow(context.Background(), "SELECT quantity FROM inventory WHERE product_id = $1", productID).Scan(&qty)
	if err != nil {
		t.Fatalf("failed to read stock of %s: %v", productID, err)
	}
	return qty
}

// CountRows runs a COUNT query.
func CountRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()

	var n int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}
