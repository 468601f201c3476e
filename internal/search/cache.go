package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/localrecos/recos-engine/internal/cache"
	"github.com/localrecos/recos-engine/internal/observability"
)

const allCities = "all"

// ResultCache caches enriched search responses by query and city.
type ResultCache struct {
	client cache.Client
	logger *observability.Logger
	config ResultCacheConfig
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// ResultCacheConfig configures the result cache.
type ResultCacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
	Enabled   bool
}

// DefaultResultCacheConfig returns default cache configuration.
func DefaultResultCacheConfig() ResultCacheConfig {
	return ResultCacheConfig{
		TTL:       time.Hour,
		KeyPrefix: "search:",
		Enabled:   true,
	}
}

// NewResultCache creates a result cache over client.
func NewResultCache(client cache.Client, logger *observability.Logger, config ResultCacheConfig) *ResultCache {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "search:"
	}
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	return &ResultCache{
		client: client,
		logger: logger.WithComponent("search.cache"),
		config: config,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for expiry checks.
func (c *ResultCache) WithClock(now func() time.Time) *ResultCache {
	c.now = now
	return c
}

// CacheKey hashes the lower-cased query and city. An empty city keys as "all".
func (c *ResultCache) CacheKey(query, city string) string {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		city = allCities
	}
	combined := strings.ToLower(strings.TrimSpace(query)) + "|" + city
	hash := sha256.Sum256([]byte(combined))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:16])
}

// CachedResponse is the stored form of a response.
type CachedResponse struct {
	Response  *Response `json:"response"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   string    `json:"version"`
}

// Get returns a cached response when present and unexpired.
func (c *ResultCache) Get(ctx context.Context, query, city string) (*Response, bool) {
	if !c.config.Enabled || c.client == nil {
		return nil, false
	}

	key := c.CacheKey(query, city)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Debug().Err(err).Str("key", key).Msg("Cache get error")
		}
		c.misses.Add(1)
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached response")
		c.misses.Add(1)
		return nil, false
	}

	if c.now().After(cached.ExpiresAt) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	c.logger.Debug().Str("key", key).Str("version", cached.Version).Msg("Cache hit")
	return cached.Response, true
}

// Set stores resp under its query and city.
func (c *ResultCache) Set(ctx context.Context, query, city string, resp *Response) error {
	if !c.config.Enabled || c.client == nil {
		return nil
	}

	key := c.CacheKey(query, city)
	now := c.now()
	cached := CachedResponse{
		Response:  resp,
		CachedAt:  now,
		ExpiresAt: now.Add(c.config.TTL),
		Version:   uuid.NewString(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.config.TTL); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
		return err
	}

	c.logger.Debug().Str("key", key).Dur("ttl", c.config.TTL).Msg("Cached response")
	return nil
}

// Invalidate drops every cached response. Called after restaurants change.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	if !c.config.Enabled || c.client == nil {
		return nil
	}
	c.logger.Info().Msg("Invalidating search cache")
	return c.client.DeleteByPrefix(ctx, c.config.KeyPrefix)
}

// PurgeExpired removes expired entries when the backing client keeps them.
// Redis expires keys itself, so it reports zero.
func (c *ResultCache) PurgeExpired(ctx context.Context) (int, error) {
	if c.client == nil {
		return 0, nil
	}
	purger, ok := c.client.(cache.Purger)
	if !ok {
		return 0, nil
	}
	return purger.PurgeExpired(ctx)
}

// Stats returns cache statistics.
func (c *ResultCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{Enabled: c.config.Enabled && c.client != nil, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Enabled bool    `json:"enabled"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
