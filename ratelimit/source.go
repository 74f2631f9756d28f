package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanchitsharma77/airweave-sub002/common"
)

// Scope selects whether a source limit applies per connection or org-wide.
type Scope string

const (
	ScopeOrg        Scope = "org"
	ScopeConnection Scope = "connection"
)

// SourceLimitConfig is the per-row limit configuration for one organization
// and source.
type SourceLimitConfig struct {
	Limit         int   `json:"limit"`
	WindowSeconds int   `json:"window_seconds"`
	Scope         Scope `json:"scope"`
}

// ConfigStore loads source limit rows from the metadata store. Implemented by
// the db package; a nil row means the source is unlimited for that org.
type ConfigStore interface {
	GetSourceRateLimit(ctx context.Context, organizationID, sourceShortName string) (*SourceLimitConfig, error)
}

// configCacheTTL bounds staleness of the Redis-cached limit rows.
const configCacheTTL = 5 * time.Minute

// sentinel cached value for "no limit configured"
const noLimitSentinel = "none"

// SourceLimiter gates outbound source-API calls per organization and source
// short name. Limit rows come from the metadata store and are cached in
// Redis. Like the client limiter it fails open on Redis outages; upstream
// 429s are the final safety net.
type SourceLimiter struct {
	redis  redis.UniversalClient
	window *SlidingWindow
	store  ConfigStore
	logger *common.ContextLogger
}

// NewSourceLimiter creates a source limiter.
func NewSourceLimiter(client redis.UniversalClient, store ConfigStore, logger *common.ContextLogger) *SourceLimiter {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "source_limiter"})
	}
	return &SourceLimiter{
		redis:  client,
		window: NewSlidingWindow(client),
		store:  store,
		logger: logger,
	}
}

// SourceKey returns the Redis window key for one organization, source, and
// scope instance.
func SourceKey(organizationID, sourceShortName string, scope Scope, connectionID string) string {
	scopeID := organizationID
	if scope == ScopeConnection {
		scopeID = connectionID
	}
	return fmt.Sprintf("source_rate_limit:%s:%s:%s:%s", organizationID, sourceShortName, scope, scopeID)
}

// ConfigCacheKey returns the Redis key caching the limit row.
func ConfigCacheKey(organizationID, sourceShortName string) string {
	return fmt.Sprintf("source_rate_limit_config:%s:%s", organizationID, sourceShortName)
}

// Check admits or rejects one outbound call. A rejection is returned as
// *common.SourceRateLimitError; the HTTP wrapper converts it into a synthetic
// 429 so adapters treat internal and upstream limits identically.
func (l *SourceLimiter) Check(ctx context.Context, organizationID, sourceShortName, connectionID string) error {
	cfg, err := l.loadConfig(ctx, organizationID, sourceShortName)
	if err != nil {
		l.logger.WithFields(map[string]interface{}{
			"organization_id": organizationID,
			"source":          sourceShortName,
		}).WithError(err).Warn("source rate limiter unavailable, allowing request")
		return nil
	}
	if cfg == nil {
		return nil
	}

	key := SourceKey(organizationID, sourceShortName, cfg.Scope, connectionID)
	window := time.Duration(cfg.WindowSeconds) * time.Second
	result, err := l.window.Allow(ctx, key, cfg.Limit, window)
	if err != nil {
		l.logger.WithField("key", key).WithError(err).
			Warn("source rate limiter unavailable, allowing request")
		return nil
	}
	if !result.Allowed {
		return &common.SourceRateLimitError{
			SourceShortName: sourceShortName,
			RetryAfter:      result.RetryAfter,
			Limit:           result.Limit,
		}
	}
	return nil
}

// InvalidateConfig drops the cached limit row after a CRUD change.
func (l *SourceLimiter) InvalidateConfig(ctx context.Context, organizationID, sourceShortName string) error {
	if err := l.redis.Del(ctx, ConfigCacheKey(organizationID, sourceShortName)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate source limit config cache: %w", err)
	}
	return nil
}

// loadConfig resolves the limit row through the Redis cache, falling back to
// the metadata store and repopulating the cache on a miss.
func (l *SourceLimiter) loadConfig(ctx context.Context, organizationID, sourceShortName string) (*SourceLimitConfig, error) {
	cacheKey := ConfigCacheKey(organizationID, sourceShortName)
	cached, err := l.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		if cached == noLimitSentinel {
			return nil, nil
		}
		var cfg SourceLimitConfig
		if err := json.Unmarshal([]byte(cached), &cfg); err == nil {
			return &cfg, nil
		}
		// Corrupt cache entry falls through to the store.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read limit config cache: %w", err)
	}

	cfg, err := l.store.GetSourceRateLimit(ctx, organizationID, sourceShortName)
	if err != nil {
		return nil, fmt.Errorf("failed to load source limit config: %w", err)
	}

	payload := noLimitSentinel
	if cfg != nil {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode limit config: %w", err)
		}
		payload = string(raw)
	}
	if err := l.redis.Set(ctx, cacheKey, payload, configCacheTTL).Err(); err != nil {
		l.logger.WithField("key", cacheKey).WithError(err).Warn("failed to cache source limit config")
	}
	return cfg, nil
}
