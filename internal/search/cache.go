package search

import (
	"sync"
	"time"
)

// cacheEntry is one cached value with its insertion time and TTL.
type cacheEntry struct {
	key        string
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// ResultCache is the process-local consensus result cache keyed by
// normalized query. Capacity-bounded; the oldest insertion is evicted on
// overflow. The consensus engine is the sole writer, but the map is still
// mutex-guarded against concurrent engines in tests.
type ResultCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    []string // insertion order for eviction
	capacity int

	hits   uint64
	misses uint64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewResultCache creates a cache bounded to capacity entries.
func NewResultCache(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &ResultCache{
		entries:  make(map[string]*cacheEntry),
		capacity: capacity,
		stopCh:   make(chan struct{}),
	}
}

// Get returns the cached value for a normalized query, or nil when absent
// or stale. Stale entries are removed on lookup.
func (c *ResultCache) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	if entry.expired(time.Now()) {
		c.removeLocked(key)
		c.misses++
		return nil
	}
	c.hits++
	return entry.value
}

// Set stores a value under a normalized query for the given TTL, evicting
// the oldest insertion when the cache is full.
func (c *ResultCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeLocked(key)
	}
	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		c.removeLocked(c.order[0])
	}
	c.entries[key] = &cacheEntry{
		key:        key,
		value:      value,
		insertedAt: time.Now(),
		ttl:        ttl,
	}
	c.order = append(c.order, key)
}

// Clear removes every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = nil
}

// Len returns the current entry count.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheStats is a snapshot of cache effectiveness.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Stats returns hit/miss counters and the live entry count.
func (c *ResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// StartCleanup runs a background sweep of expired entries until Stop.
func (c *ResultCache) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts the cleanup goroutine. Safe to call more than once.
func (c *ResultCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *ResultCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.expired(now) {
			c.removeLocked(key)
		}
	}
}

// removeLocked deletes an entry and its position in the insertion order.
func (c *ResultCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
