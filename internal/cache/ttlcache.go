package cache

import (
	"sync"
	"time"
)

// TTLCache is a small bounded in-process cache with TTL eviction. It is
// constructor-injected wherever per-instance caching is needed (e.g.
// the chain registry's RPC clients) instead of module-level state.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]ttlEntry[V]
	maxSize int
	ttl     time.Duration
}

type ttlEntry[V any] struct {
	value    V
	expires  time.Time
	lastUsed time.Time
}

// NewTTLCache builds a cache holding at most maxSize entries, each
// valid for ttl after insertion.
func NewTTLCache[K comparable, V any](maxSize int, ttl time.Duration) *TTLCache[K, V] {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TTLCache[K, V]{
		entries: make(map[K]ttlEntry[V]),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached value if present and unexpired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	entry.lastUsed = time.Now()
	c.entries[key] = entry
	return entry.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked(now)
	}
	c.entries[key] = ttlEntry[V]{value: value, expires: now.Add(c.ttl), lastUsed: now}
}

// Len returns the number of live entries.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries first, then the least recently used.
func (c *TTLCache[K, V]) evictLocked(now time.Time) {
	var oldestKey K
	var oldestUse time.Time
	first := true
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
			continue
		}
		if first || entry.lastUsed.Before(oldestUse) {
			oldestKey = key
			oldestUse = entry.lastUsed
			first = false
		}
	}
	if len(c.entries) >= c.maxSize && !first {
		delete(c.entries, oldestKey)
	}
}
