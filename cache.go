package dataperm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// ============================================================================
// IN-MEMORY CACHE
// ============================================================================

type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the default CacheStore: a mutex-guarded map with per-entry
// TTL and lazy expiry on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	nowFn   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry), nowFn: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.nowFn().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryCacheEntry{value: value, expiresAt: c.nowFn().Add(ttl)}
	c.mu.Unlock()
}

func (c *MemoryCache) Remove(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// RemovePrefix deletes every entry under the given key prefix.
func (c *MemoryCache) RemovePrefix(_ context.Context, prefix string) {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of live entries; expired entries still pending lazy
// removal are counted.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ============================================================================
// RISTRETTO CACHE
// ============================================================================

// RistrettoCache adapts a ristretto cache to the CacheStore contract for
// high-throughput in-process deployments. Ristretto admits writes
// asynchronously, which is acceptable for a pure memoization cache; the
// engine's per-user key index handles invalidation precisely regardless of
// backend.
type RistrettoCache struct {
	cache *ristretto.Cache
}

func NewRistrettoCache(numCounters, maxCost, bufferItems int64) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{cache: c}, nil
}

func (c *RistrettoCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (c *RistrettoCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.cache.SetWithTTL(key, value, int64(len(value))+int64(len(key)), ttl)
}

func (c *RistrettoCache) Remove(_ context.Context, key string) {
	c.cache.Del(key)
}

// Close releases ristretto's internal goroutines.
func (c *RistrettoCache) Close() {
	c.cache.Close()
}
