package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	tenantCacheTTL   = 5 * time.Minute
	negativeCacheTTL = 30 * time.Second
	maxCacheEntries  = 10000
)

var errCachedNotFound = errors.New("tenant not found (cached)")

type cachedTenant struct {
	tenantID string
	expires  time.Time
}

// hashKey returns the hex SHA-256 of an API key so raw keys are never held in memory.
func hashKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// CachedTenantLookup wraps a TenantLookup with a bounded in-memory cache.
// Failed lookups are cached briefly, and concurrent misses for the same key
// share one call to the inner lookup.
type CachedTenantLookup struct {
	inner TenantLookup
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedTenant
}

// NewCachedTenantLookup creates a caching wrapper around inner. Expired
// entries are evicted in the background until ctx is cancelled.
func NewCachedTenantLookup(ctx context.Context, inner TenantLookup) *CachedTenantLookup {
	c := &CachedTenantLookup{inner: inner, cache: make(map[string]cachedTenant)}
	go c.evictLoop(ctx)

	return c
}

func (c *CachedTenantLookup) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			c.evictExpired(now)
			c.mu.Unlock()
		}
	}
}

// evictExpired must be called with c.mu held.
func (c *CachedTenantLookup) evictExpired(now time.Time) {
	for k, v := range c.cache {
		if !now.Before(v.expires) {
			delete(c.cache, k)
		}
	}
}

// GetTenantByAPIKey returns a cached tenant ID or delegates to the inner lookup.
func (c *CachedTenantLookup) GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	hk := hashKey(apiKey)

	c.mu.RLock()
	entry, ok := c.cache[hk]
	c.mu.RUnlock()

	if ok && time.Now().Before(entry.expires) {
		if entry.tenantID == "" {
			return "", errCachedNotFound
		}
		return entry.tenantID, nil
	}

	v, err, _ := c.group.Do(hk, func() (any, error) {
		tenantID, err := c.inner.GetTenantByAPIKey(ctx, apiKey)
		if err != nil {
			c.store(hk, "", negativeCacheTTL)
			return "", err
		}

		c.store(hk, tenantID, tenantCacheTTL)
		return tenantID, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

func (c *CachedTenantLookup) store(hk, tenantID string, ttl time.Duration) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= maxCacheEntries {
		c.evictExpired(now)
		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}

	c.cache[hk] = cachedTenant{tenantID: tenantID, expires: now.Add(ttl)}
}
