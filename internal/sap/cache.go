package sap

import (
	"sync"
	"time"
)

// DefaultCacheTTL is used when a cache is created with a zero TTL.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a TTL map. Expired entries are dropped when read.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry[V]
	now     func() time.Time
}

// NewCache returns a cache whose entries live for ttl.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache[V]{ttl: ttl, entries: make(map[string]cacheEntry[V]), now: time.Now}
}

// Set stores v under key with the default TTL.
func (c *Cache[V]) Set(key string, v V) {
	c.SetTTL(key, v, c.ttl)
}

// SetTTL stores v under key for ttl.
func (c *Cache[V]) SetTTL(key string, v V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: v, expires: c.now().Add(ttl)}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len counts stored entries, including expired ones not yet read.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
