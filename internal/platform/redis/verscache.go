// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package redis

import (
	stdctx "context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hiromu-dev/torii/internal/platform/constants"
)

// versionTTL bounds staleness of cached version counters. A cache miss is
// never an error: callers fall back to the database.
const versionTTL = 10 * time.Minute

// VersionCache caches the current version counter of resources so that
// If-None-Match revalidations can be answered without a database read.
//
// A nil *VersionCache is valid and disables caching entirely.
type VersionCache struct {
	client *redis.Client
}

// NewVersionCache wraps a Redis client. Passing nil returns a disabled cache.
func NewVersionCache(client *redis.Client) *VersionCache {
	if client == nil {
		return nil
	}
	return &VersionCache{client: client}
}

// key builds the cache key for one resource of one tenant.
func key(tenantID int, kind, resourceID string) string {
	return fmt.Sprintf("%s%d:%s:%s", constants.RedisPrefixVersion, tenantID, kind, resourceID)
}

// Get returns the cached version and true on a hit. Misses and transport
// errors both report false.
func (c *VersionCache) Get(ctx stdctx.Context, tenantID int, kind, resourceID string) (int64, bool) {
	if c == nil {
		return 0, false
	}

	version, err := c.client.Get(ctx, key(tenantID, kind, resourceID)).Int64()
	if err != nil {
		return 0, false
	}
	return version, true
}

// Set records the current version after a successful read or write.
// Failures are ignored: the cache is strictly an optimization.
func (c *VersionCache) Set(ctx stdctx.Context, tenantID int, kind, resourceID string, version int64) {
	if c == nil {
		return
	}
	_ = c.client.Set(ctx, key(tenantID, kind, resourceID), version, versionTTL).Err()
}

// Invalidate drops the cached version after a delete.
func (c *VersionCache) Invalidate(ctx stdctx.Context, tenantID int, kind, resourceID string) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, key(tenantID, kind, resourceID)).Err()
}
