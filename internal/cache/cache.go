package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"social_metrics/internal/config"
	"social_metrics/internal/domain"
)

// ExtractionCache memoizes "same profile, same window" extraction results so
// repeated schedule requests inside one monitoring period do not trigger
// duplicate paid provider calls. The cache is a pure optimization:
// every failure degrades to a miss and the caller falls through to a real
// provider call.
type ExtractionCache struct {
	client *redis.Client
	logger *slog.Logger
}

func New(cfg config.RedisConfig, logger *slog.Logger) (*ExtractionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &ExtractionCache{
		client: client,
		logger: logger.With("component", "extraction_cache"),
	}, nil
}

// NewWithClient wires an existing client; used by tests.
func NewWithClient(client *redis.Client, logger *slog.Logger) *ExtractionCache {
	return &ExtractionCache{
		client: client,
		logger: logger.With("component", "extraction_cache"),
	}
}

// WindowKey builds the cache window for a job kind on a calendar day in the
// profile's reporting timezone.
func WindowKey(kind domain.JobKind, day time.Time) string {
	return fmt.Sprintf("%s:%s", kind, day.Format("2006-01-02"))
}

// Get returns the cached extraction result for (profile, window), or a miss.
func (c *ExtractionCache) Get(ctx context.Context, profileID, windowKey string) (*domain.ExtractionResult, bool) {
	data, err := c.client.Get(ctx, c.key(profileID, windowKey)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache get failed, treating as miss",
			"profile_id", profileID,
			"window", windowKey,
			"error", err,
		)
		return nil, false
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("cache payload corrupt, dropping",
			"profile_id", profileID,
			"window", windowKey,
			"error", err,
		)
		_ = c.client.Del(ctx, c.key(profileID, windowKey)).Err()
		return nil, false
	}

	return &result, true
}

// Put stores an extraction result for (profile, window) with the given TTL.
func (c *ExtractionCache) Put(ctx context.Context, profileID, windowKey string, result *domain.ExtractionResult, ttl time.Duration) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("cache marshal failed",
			"profile_id", profileID,
			"window", windowKey,
			"error", err,
		)
		return
	}

	if err := c.client.Set(ctx, c.key(profileID, windowKey), data, ttl).Err(); err != nil {
		c.logger.Warn("cache put failed",
			"profile_id", profileID,
			"window", windowKey,
			"error", err,
		)
	}
}

func (c *ExtractionCache) key(profileID, windowKey string) string {
	return fmt.Sprintf("extract:%s:%s", profileID, windowKey)
}

// Close releases the redis connection.
func (c *ExtractionCache) Close() error {
	return c.client.Close()
}
