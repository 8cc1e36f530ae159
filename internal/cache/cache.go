package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// KeyTracking caches the tracking view of an order: order_track:{tracking_code}.
const KeyTracking = "order_track:%s"

// TrackingCache keeps recently looked up tracking views.
// Failures are logged and treated as misses so lookups fall through to the database.
type TrackingCache interface {
	Get(ctx context.Context, code string) (*model.TrackingView, bool)
	Set(ctx context.Context, view *model.TrackingView)
	Invalidate(ctx context.Context, code string)
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("redis connection established")

	return client, nil
}

type redisTrackingCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisTrackingCache stores tracking views as JSON with the given TTL.
func NewRedisTrackingCache(client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) TrackingCache {
	return &redisTrackingCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("cache", "tracking").Logger(),
	}
}

func trackingKey(code string) string {
	return fmt.Sprintf(KeyTracking, strings.ToUpper(code))
}

func (c *redisTrackingCache) Get(ctx context.Context, code string) (*model.TrackingView, bool) {
	raw, err := c.client.Get(ctx, trackingKey(code)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("tracking_code", code).Msg("failed to read tracking cache")
		}
		return nil, false
	}

	var view model.TrackingView
	if err := json.Unmarshal(raw, &view); err != nil {
		c.logger.Warn().Err(err).Str("tracking_code", code).Msg("discarding corrupt tracking cache entry")
		c.Invalidate(ctx, code)
		return nil, false
	}

	return &view, true
}

func (c *redisTrackingCache) Set(ctx context.Context, view *model.TrackingView) {
	raw, err := json.Marshal(view)
	if err != nil {
		c.logger.Warn().Err(err).Str("tracking_code", view.TrackingCode).Msg("failed to encode tracking view")
		return
	}

	if err := c.client.Set(ctx, trackingKey(view.TrackingCode), raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("tracking_code", view.TrackingCode).Msg("failed to write tracking cache")
	}
}

func (c *redisTrackingCache) Invalidate(ctx context.Context, code string) {
	if err := c.client.Del(ctx, trackingKey(code)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("tracking_code", code).Msg("failed to invalidate tracking cache")
	}
}

type nopTrackingCache struct{}

// NewNopTrackingCache returns a cache that never holds anything.
func NewNopTrackingCache() TrackingCache {
	return nopTrackingCache{}
}

func (nopTrackingCache) Get(context.Context, string) (*model.TrackingView, bool) { return nil, false }
func (nopTrackingCache) Set(context.Context, *model.TrackingView)                {}
func (nopTrackingCache) Invalidate(context.Context, string)                      {}
