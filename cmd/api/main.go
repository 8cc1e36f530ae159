package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
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
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	inventoryRepo := repository.NewInventoryRepository(logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	shippingRepo := repository.NewShippingRepository(pool, logger)
	profileRepo := repository.NewProfileRepository(pool, logger)

	// Proof storage with local fallback
	store, files, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()

	var verifier auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience, logger)
	} else {
		verifier = auth.NewNopVerifier()
		logger.Info().Msg("bearer tokens disabled, every caller is a guest")
	}

	trackingCache := cache.NewNopTrackingCache()
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, tracking cache disabled")
		} else {
			defer client.Close()
			trackingCache = cache.NewRedisTrackingCache(client, cfg.Redis.TrackingTTL, logger)
		}
	}

	publisher := events.NewNopPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, m.EventDropped, logger)
		kafkaPublisher.Start(ctx)
		defer kafkaPublisher.WaitClosed()
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// Initialize services
	productService := service.NewProductService(productRepo, logger)
	shippingService := service.NewShippingService(shippingRepo, logger)
	profileService := service.NewProfileService(profileRepo, logger)
	orderService := service.NewOrderService(service.OrderDependencies{
		Orders:    orderRepo,
		Products:  productRepo,
		Inventory: inventoryRepo,
		Shipping:  shippingService,
		Store:     store,
		Cache:     trackingCache,
		Events:    publisher,
		Metrics:   m,
	}, service.OrderSettings{
		RequireProof:     cfg.Orders.RequireProof,
		MaxProofBytes:    cfg.Orders.MaxProofBytes,
		ProofFolder:      cfg.Storage.ProofFolder,
		CacheSettleDelay: cfg.Redis.TrackingSettle,
	}, logger)

	// Initialize router
	mux := router.New(router.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Orders:   handler.NewOrderHandler(orderService, cfg.Orders.MaxProofBytes, logger),
		Shipping: handler.NewShippingHandler(shippingService, logger),
		Profiles: handler.NewProfileHandler(profileService, logger),
	}, router.Options{
		APIKey:   cfg.Auth.APIKey,
		Verifier: verifier,
		Metrics:  m,
		Files:    files,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newBlobStore selects the proof store. When the local store is in use its file handler is returned for /files/.
func newBlobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.BlobStore, http.Handler, error) {
	if cfg.Storage.Backend == "s3" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
		if err == nil {
			return s3Store, nil, nil
		}
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 store, falling back to local file system")
	}

	base := cfg.Storage.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d/files", cfg.Server.Port)
	}

	fileStore, err := storage.NewFileStore(cfg.Storage.LocalDir, base, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize proof storage: %w", err)
	}

	return fileStore, fileStore.Handler(), nil
}
