// SPDX-License-Identifier: MIT

// Package cache provides a TTL cache for serialized provider responses.
// Values are opaque bytes; callers own the encoding, so the memory and
// Redis backends behave identically through round trips.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is thread-safe byte storage with per-key expiration.
type Cache interface {
	// Get retrieves a value. Returns false if absent or expired.
	Get(key string) ([]byte, bool)
	// Set stores a value with the specified TTL.
	Set(key string, value []byte, ttl time.Duration)
	// Delete removes a value.
	Delete(key string)
	// Clear removes all values.
	Clear()
	// Stats returns cache statistics.
	Stats() CacheStats
}

// CacheStats holds cache performance counters.
type CacheStats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type item struct {
	value   []byte
	expires time.Time
}

// memoryCache keeps items in a plain map. Counters are atomic so reads
// can bump hit/miss under the shared read lock.
type memoryCache struct {
	mu      sync.RWMutex
	items   map[string]item
	stop    chan struct{}
	once    sync.Once
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	evicted atomic.Int64
}

// NewMemoryCache creates an in-memory cache. cleanupInterval controls how
// often expired entries are swept out; zero disables the sweeper (entries
// still expire on read).
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		items: make(map[string]item),
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.sweep(cleanupInterval)
	}
	return c
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	it, found := c.items[key]
	c.mu.RUnlock()

	if !found || time.Now().After(it.expires) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return it.value, true
}

func (c *memoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = item{value: value, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
}

func (c *memoryCache) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.items)
	c.mu.RUnlock()

	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evicted.Load(),
		CurrentSize: size,
	}
}

// Stop ends the background sweeper. Safe to call more than once.
func (c *memoryCache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *memoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, it := range c.items {
				if now.After(it.expires) {
					delete(c.items, key)
					c.evicted.Add(1)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// noOpCache disables caching; every read is a miss.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache anything.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (c *noOpCache) Get(string) ([]byte, bool)         { return nil, false }
func (c *noOpCache) Set(string, []byte, time.Duration) {}
func (c *noOpCache) Delete(string)                     {}
func (c *noOpCache) Clear()                            {}
func (c *noOpCache) Stats() CacheStats                 { return CacheStats{} }
