package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const cacheKeyPrefix = "rbac:perms:"

// Cache stores resolved permission sets in Redis with a TTL. It is
// optional; a nil *Cache is a valid no-op and every method tolerates it,
// so callers never need nil checks.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a permission cache backed by the given Redis client
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, userID)
}

// Get returns the cached set for a user, or false on miss or any
// Redis failure. Cache errors never fail a permission check.
func (c *Cache) Get(ctx context.Context, userID int64) (PermissionSet, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		return nil, false
	}
	return NewPermissionSet(perms...), true
}

// Set stores a resolved set for a user, ignoring Redis failures
func (c *Cache) Set(ctx context.Context, userID int64, set PermissionSet) {
	if c == nil {
		return
	}

	data, err := json.Marshal(set.Slice())
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(userID), data, c.ttl)
}

// Invalidate drops the cached set for one user
func (c *Cache) Invalidate(ctx context.Context, userID int64) {
	if c == nil {
		return
	}
	c.client.Del(ctx, cacheKey(userID))
}

// InvalidateAll drops every cached set. Role and role-permission
// mutations affect an unknown set of users, so they flush everything.
func (c *Cache) InvalidateAll(ctx context.Context) {
	if c == nil {
		return
	}

	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
