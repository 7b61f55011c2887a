package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 7)
	assert.False(t, ok)

	cache.Set(ctx, 7, NewPermissionSet("threads:read", "threads:write"))

	set, ok := cache.Get(ctx, 7)
	require.True(t, ok)
	assert.True(t, set.Has("threads:read"))
	assert.True(t, set.Has("threads:write"))
	assert.False(t, set.Has("admin:users"))
}

func TestCacheTTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 7, NewPermissionSet("threads:read"))
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, 7)
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 7, NewPermissionSet("threads:read"))
	cache.Set(ctx, 8, NewPermissionSet("threads:read"))

	cache.Invalidate(ctx, 7)

	_, ok := cache.Get(ctx, 7)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, 8)
	assert.True(t, ok)
}

func TestCacheInvalidateAll(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 7, NewPermissionSet("threads:read"))
	cache.Set(ctx, 8, NewPermissionSet("threads:read"))

	cache.InvalidateAll(ctx)

	_, ok := cache.Get(ctx, 7)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, 8)
	assert.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	_, ok := cache.Get(ctx, 7)
	assert.False(t, ok)
	cache.Set(ctx, 7, NewPermissionSet("x"))
	cache.Invalidate(ctx, 7)
	cache.InvalidateAll(ctx)
}

func TestCacheSurvivesRedisOutage(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	mr.Close()

	_, ok := cache.Get(ctx, 7)
	assert.False(t, ok)
	cache.Set(ctx, 7, NewPermissionSet("threads:read"))
	cache.Invalidate(ctx, 7)
}
