package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"canlaw/contracts/slotconfig"
	"canlaw/internal/slot"
	"canlaw/internal/slot/metrics"
)

const cacheKeyPrefix = "canlaw:slot:"

// CachedRegistry decorates a Registry with a Redis read-through cache for
// GetSlot. The registry is read-mostly: GetSlot is on the hot path of every
// resolve, while writes only happen on seeding or authoring updates, which
// invalidate the cached entry.
//
// Listings are not cached; they change shape with every scope filter and the
// backing query is already indexed.
type CachedRegistry struct {
	inner   Registry
	rdb     redis.UniversalClient
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// CacheOption configures the CachedRegistry.
type CacheOption func(*CachedRegistry)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedRegistry) { c.logger = logger }
}

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *CachedRegistry) { c.metrics = m }
}

// NewCachedRegistry wraps inner with a Redis cache.
func NewCachedRegistry(inner Registry, rdb redis.UniversalClient, ttl time.Duration, opts ...CacheOption) *CachedRegistry {
	c := &CachedRegistry{inner: inner, rdb: rdb, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedRegistry) GetSlot(ctx context.Context, key slot.Key) (*slot.Slot, error) {
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+string(key)).Bytes()
	if err == nil {
		if s, decodeErr := decodeSlot(raw); decodeErr == nil {
			c.metrics.IncrementCacheHits()
			return s, nil
		}
		// A cache entry that no longer decodes is stale contract data; fall
		// through to the source of truth and overwrite it.
	} else if !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.WarnContext(ctx, "slot cache read failed",
			"slot_key", key,
			"error", err,
		)
	}
	c.metrics.IncrementCacheMisses()

	s, err := c.inner.GetSlot(ctx, key)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, s)
	return s, nil
}

func (c *CachedRegistry) ListActive(ctx context.Context, filter ScopeFilter, categories ...slot.Category) ([]*slot.Slot, error) {
	return c.inner.ListActive(ctx, filter, categories...)
}

func (c *CachedRegistry) PutSlot(ctx context.Context, s *slot.Slot) error {
	if err := c.inner.PutSlot(ctx, s); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, cacheKeyPrefix+string(s.Key)).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "slot cache invalidation failed",
			"slot_key", s.Key,
			"error", err,
		)
	}
	return nil
}

// fill caches the slot best-effort; a cache write failure never fails the
// read that produced the slot.
func (c *CachedRegistry) fill(ctx context.Context, s *slot.Slot) {
	rec, err := slot.ToRecord(s)
	if err != nil {
		return
	}
	raw, err := slotconfig.Encode(rec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+string(s.Key), raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "slot cache write failed",
			"slot_key", s.Key,
			"error", fmt.Errorf("set: %w", err),
		)
	}
}
