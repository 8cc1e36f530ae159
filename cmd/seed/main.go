// Command seed loads the product catalog, stock levels and shipping rules from CSV files.
//
// Files may be gzipped. When STORAGE_BACKEND=s3 the files are read from the bucket under -prefix first,
// falling back to the local path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	productsFile := flag.String("products", "", "products CSV (id,name,sku,price,stock,active)")
	rulesFile := flag.String("rules", "", "shipping rules CSV (country,state,city,is_free,base_cost); replaces every rule")
	prefix := flag.String("prefix", "catalog/", "object store key prefix")
	migrate := flag.Bool("migrate", true, "apply database migrations first")
	flag.Parse()

	if *productsFile == "" && *rulesFile == "" {
		flag.Usage()
		return fmt.Errorf("nothing to import: pass -products and/or -rules")
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if *migrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	loader := catalog.NewLoader(newSource(ctx, cfg, *prefix, logger), logger)

	var products []model.Product
	if *productsFile != "" {
		if products, err = loader.LoadProducts(ctx, *productsFile); err != nil {
			return err
		}
	}

	var rules []model.ShippingRule
	if *rulesFile != "" {
		if rules, err = loader.LoadShippingRules(ctx, *rulesFile); err != nil {
			return err
		}
	}

	summary, err := repository.NewCatalogRepository(pool, logger).Import(ctx, products, rules)
	if err != nil {
		return fmt.Errorf("failed to import catalog: %w", err)
	}

	fmt.Printf("imported %d products and %d shipping rules\n", summary.Products, summary.Rules)
	return nil
}

func newSource(ctx context.Context, cfg *config.Config, prefix string, logger zerolog.Logger) catalog.Source {
	var remote catalog.Source
	if cfg.Storage.Backend == "s3" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialise S3 store, reading local files only")
		} else {
			remote = s3Store
		}
	}
	return catalog.NewFallbackSource(remote, catalog.LocalFiles(), prefix, logger)
}
