package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/coronary-score-server/internal/domain"
)

// ResultCache layers the memory tier in front of an optional shared tier.
type ResultCache struct {
	logger *logrus.Logger
	local  *MemoryCache
	shared Store
}

// NewResultCache builds the cache from configuration. A Redis URL that
// cannot be reached is logged and the cache runs memory-only.
func NewResultCache(logger *logrus.Logger, config domain.CacheConfig) (*ResultCache, error) {
	local, err := NewMemoryCache(config.MaxItems, config.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	rc := &ResultCache{logger: logger, local: local}
	if config.RedisURL != "" {
		shared, err := NewRedisCache(logger, config)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using memory cache only")
		} else {
			rc.shared = shared
		}
	}
	return rc, nil
}

// NewTieredCache wires explicit tiers; shared may be nil.
func NewTieredCache(logger *logrus.Logger, local *MemoryCache, shared Store) *ResultCache {
	return &ResultCache{logger: logger, local: local, shared: shared}
}

// Key derives the cache key of a patient and calculator selection. Two
// records with identical content share a key.
func Key(p *domain.PatientRecord, calc domain.Calculator) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode patient for cache key: %w", err)
	}
	sum := sha256.Sum256(append([]byte(calc+":"), payload...))
	return hex.EncodeToString(sum[:]), nil
}

// Get looks the key up in the memory tier, then the shared tier. Shared hits
// are copied into memory.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.ScoreBundle, bool) {
	if raw, ok, _ := c.local.Get(ctx, key); ok {
		if b, ok := c.decode(ctx, key, raw); ok {
			return b, true
		}
	}
	if c.shared == nil {
		return nil, false
	}

	raw, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Debug("Shared cache lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	b, ok := c.decode(ctx, key, raw)
	if ok {
		_ = c.local.Set(ctx, key, raw)
	}
	return b, ok
}

// Set writes the bundle to every tier. Shared tier failures are logged only.
func (c *ResultCache) Set(ctx context.Context, key string, bundle *domain.ScoreBundle) {
	raw, err := json.Marshal(bundle)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode score bundle for cache")
		return
	}
	_ = c.local.Set(ctx, key, raw)
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, raw); err != nil {
			c.logger.WithError(err).Debug("Shared cache write failed")
		}
	}
}

// Stats reports memory tier counters.
func (c *ResultCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"entries": c.local.Len(),
		"hits":    c.local.hits.Load(),
		"misses":  c.local.misses.Load(),
		"shared":  c.shared != nil,
	}
	if r, ok := c.shared.(*RedisCache); ok {
		stats["shared_breaker"] = r.State()
	}
	return stats
}

// Close releases both tiers.
func (c *ResultCache) Close() error {
	if c.shared != nil {
		return c.shared.Close()
	}
	return c.local.Close()
}

func (c *ResultCache) decode(ctx context.Context, key string, raw []byte) (*domain.ScoreBundle, bool) {
	var b domain.ScoreBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		// Remove corrupted cache entry
		_ = c.local.Delete(ctx, key)
		return nil, false
	}
	return &b, true
}
