package ratelimit

import (
	"context"
	"fmt"
)

// ConfigWriter persists source limit rows. db.RateLimitStore implements it.
type ConfigWriter interface {
	UpsertSourceRateLimit(ctx context.Context, organizationID, sourceShortName string, cfg SourceLimitConfig) error
	DeleteSourceRateLimit(ctx context.Context, organizationID, sourceShortName string) error
}

// Admin couples limit-row writes with cache invalidation so a changed limit
// takes effect within one request rather than one cache TTL.
type Admin struct {
	writer  ConfigWriter
	limiter *SourceLimiter
}

// NewAdmin creates a source rate limit admin.
func NewAdmin(writer ConfigWriter, limiter *SourceLimiter) *Admin {
	return &Admin{writer: writer, limiter: limiter}
}

// Set creates or updates a limit row and drops its cache entry.
func (a *Admin) Set(ctx context.Context, organizationID, sourceShortName string, cfg SourceLimitConfig) error {
	if cfg.Limit <= 0 || cfg.WindowSeconds <= 0 {
		return fmt.Errorf("limit and window must be positive")
	}
	if cfg.Scope != ScopeOrg && cfg.Scope != ScopeConnection {
		return fmt.Errorf("unknown scope %q", cfg.Scope)
	}
	if err := a.writer.UpsertSourceRateLimit(ctx, organizationID, sourceShortName, cfg); err != nil {
		return err
	}
	return a.limiter.InvalidateConfig(ctx, organizationID, sourceShortName)
}

// Remove deletes a limit row and drops its cache entry.
func (a *Admin) Remove(ctx context.Context, organizationID, sourceShortName string) error {
	if err := a.writer.DeleteSourceRateLimit(ctx, organizationID, sourceShortName); err != nil {
		return err
	}
	return a.limiter.InvalidateConfig(ctx, organizationID, sourceShortName)
}
