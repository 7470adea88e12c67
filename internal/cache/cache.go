// Package cache holds short-lived lookups (order and party summaries) in
// process memory.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Service is the caching behaviour the lookups depend on.
type Service interface {
	// Get returns the value and true when present and not expired.
	Get(key string) (interface{}, bool)

	// Set stores value for duration. A zero duration uses the default TTL.
	Set(key string, value interface{}, duration time.Duration)
}

type memoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a new in-memory cache.
// defaultExpiration: default TTL for items
// cleanupInterval: how often to scan for expired items
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) Service {
	return &memoryCache{
		store: gocache.New(defaultExpiration, cleanupInterval),
	}
}

func (c *memoryCache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *memoryCache) Set(key string, value interface{}, duration time.Duration) {
	if duration == 0 {
		duration = gocache.DefaultExpiration
	}
	c.store.Set(key, value, duration)
}

// GetOrLoad returns the cached value for key, calling load on a miss. Nil
// results and errors are not cached.
func GetOrLoad[T any](ctx context.Context, c Service, key string, load func(context.Context) (*T, error)) (*T, error) {
	if c != nil {
		if v, ok := c.Get(key); ok {
			if t, ok := v.(*T); ok {
				return t, nil
			}
		}
	}
	v, err := load(ctx)
	if err != nil || v == nil {
		return v, err
	}
	if c != nil {
		c.Set(key, v, 0)
	}
	return v, nil
}
