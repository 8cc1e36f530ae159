package database

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

const (
	firstRetryDelay = 500 * time.Millisecond
	maxRetryDelay   = 5 * time.Second
)

// NewPool creates a new PostgreSQL connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	return NewPoolFromURL(ctx, cfg.ConnectionString(), cfg, logger)
}

// NewPoolFromURL creates a pool for an explicit connection string with the sizing,
// query logging and startup retries from cfg.
func NewPoolFromURL(ctx context.Context, connString string, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		poolConfig.MinConns = int32(cfg.MinConnections)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Second
	}
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	tracer, err := newQueryTracer(cfg.QueryLogLevel, logger)
	if err != nil {
		return nil, err
	}
	if tracer != nil {
		poolConfig.ConnConfig.Tracer = tracer
	}

	conn := poolConfig.ConnConfig
	logger.Info().
		Str("host", conn.Host).
		Uint16("port", conn.Port).
		Str("database", conn.Database).
		Int32("max_connections", poolConfig.MaxConns).
		Int32("min_connections", poolConfig.MinConns).
		Msg("creating database connection pool")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := waitReady(ctx, pool, max(cfg.ConnectAttempts, 1), logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Msg("database connection pool created successfully")

	return pool, nil
}

// waitReady pings until the database answers, backing off between attempts.
func waitReady(ctx context.Context, pool *pgxpool.Pool, attempts int, logger zerolog.Logger) error {
	delay := firstRetryDelay
	for attempt := 1; ; attempt++ {
		err := pool.Ping(ctx)
		if err == nil || attempt >= attempts {
			return err
		}

		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("database not ready")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// newQueryTracer returns nil when query logging is off.
func newQueryTracer(level string, logger zerolog.Logger) (*tracelog.TraceLog, error) {
	if level == "" || level == "none" {
		return nil, nil
	}

	lvl, err := tracelog.LogLevelFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid query log level: %w", err)
	}

	return &tracelog.TraceLog{
		Logger:   queryLogger(logger.With().Str("component", "pgx").Logger()),
		LogLevel: lvl,
	}, nil
}

func queryLogger(logger zerolog.Logger) tracelog.LoggerFunc {
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		var zl zerolog.Level
		switch level {
		case tracelog.LogLevelTrace:
			zl = zerolog.TraceLevel
		case tracelog.LogLevelDebug:
			zl = zerolog.DebugLevel
		case tracelog.LogLevelInfo:
			zl = zerolog.InfoLevel
		case tracelog.LogLevelWarn:
			zl = zerolog.WarnLevel
		case tracelog.LogLevelError:
			zl = zerolog.ErrorLevel
		default:
			zl = zerolog.NoLevel
		}
		logger.WithLevel(zl).Fields(data).Msg(msg)
	}
}
