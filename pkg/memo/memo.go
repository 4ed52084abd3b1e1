// Package memo provides a small TTL + capacity bounded in-memory cache.
package memo

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	expireAt time.Time
	usedAt   time.Time
}

// Cache is a concurrency-safe map with per-entry TTL and a hard capacity.
// When full, the least recently used entry is evicted to make room.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxKeys int
	items   map[K]*entry[V]

	now func() time.Time
}

// New creates a cache. A maxKeys of 0 means unbounded.
func New[K comparable, V any](ttl time.Duration, maxKeys int) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		maxKeys: maxKeys,
		items:   make(map[K]*entry[V]),
		now:     time.Now,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	now := c.now()
	if now.After(e.expireAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	e.usedAt = now
	return e.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.items[key]; ok {
		e.value = value
		e.expireAt = now.Add(c.ttl)
		e.usedAt = now
		return
	}
	if c.maxKeys > 0 && len(c.items) >= c.maxKeys {
		c.evictOldest()
	}
	c.items[key] = &entry[V]{
		value:    value,
		expireAt: now.Add(c.ttl),
		usedAt:   now,
	}
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Has(key K) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*entry[V])
}

// caller must hold c.mu
func (c *Cache[K, V]) evictOldest() {
	var (
		oldestKey K
		oldest    time.Time
		found     bool
	)
	for k, e := range c.items {
		if !found || e.usedAt.Before(oldest) {
			oldestKey = k
			oldest = e.usedAt
			found = true
		}
	}
	if found {
		delete(c.items, oldestKey)
	}
}
