package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigWriter struct {
	rows map[string]SourceLimitConfig
}

func (f *fakeConfigWriter) UpsertSourceRateLimit(_ context.Context, org, src string, cfg SourceLimitConfig) error {
	f.rows[org+"/"+src] = cfg
	return nil
}

func (f *fakeConfigWriter) DeleteSourceRateLimit(_ context.Context, org, src string) error {
	delete(f.rows, org+"/"+src)
	return nil
}

// TestAdminSetInvalidatesCache tests that limit changes take effect at once
func TestAdminSetInvalidatesCache(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	writer := &fakeConfigWriter{rows: map[string]SourceLimitConfig{}}
	store := &fakeConfigStore{cfg: &SourceLimitConfig{Limit: 5, WindowSeconds: 60, Scope: ScopeOrg}}
	limiter := NewSourceLimiter(client, store, nil)
	admin := NewAdmin(writer, limiter)

	// Warm the cache.
	require.NoError(t, limiter.Check(ctx, "org", "github", "conn"))
	require.Equal(t, 1, store.calls)

	require.NoError(t, admin.Set(ctx, "org", "github", SourceLimitConfig{Limit: 1, WindowSeconds: 60, Scope: ScopeOrg}))
	assert.Equal(t, 1, writer.rows["org/github"].Limit)

	// The next check re-reads the row instead of the stale cache.
	require.NoError(t, limiter.Check(ctx, "org", "github", "conn"))
	assert.Equal(t, 2, store.calls)
}

// TestAdminValidation tests rejected configurations
func TestAdminValidation(t *testing.T) {
	_, client := newTestRedis(t)
	writer := &fakeConfigWriter{rows: map[string]SourceLimitConfig{}}
	admin := NewAdmin(writer, NewSourceLimiter(client, &fakeConfigStore{}, nil))
	ctx := context.Background()

	assert.Error(t, admin.Set(ctx, "org", "github", SourceLimitConfig{Limit: 0, WindowSeconds: 60, Scope: ScopeOrg}))
	assert.Error(t, admin.Set(ctx, "org", "github", SourceLimitConfig{Limit: 1, WindowSeconds: 0, Scope: ScopeOrg}))
	assert.Error(t, admin.Set(ctx, "org", "github", SourceLimitConfig{Limit: 1, WindowSeconds: 60, Scope: "global"}))
	assert.Empty(t, writer.rows)
}

// TestAdminRemove tests deletion plus cache invalidation
func TestAdminRemove(t *testing.T) {
	_, client := newTestRedis(t)
	writer := &fakeConfigWriter{rows: map[string]SourceLimitConfig{
		"org/github": {Limit: 5, WindowSeconds: 60, Scope: ScopeOrg},
	}}
	admin := NewAdmin(writer, NewSourceLimiter(client, &fakeConfigStore{}, nil))

	require.NoError(t, admin.Remove(context.Background(), "org", "github"))
	assert.Empty(t, writer.rows)
}
