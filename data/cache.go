package data

import (
	"sync"
	"time"
)

type CacheItem[T any] struct {
	Value     *T
	ExpiresAt time.Time
}

// Cache is a TTL cache. Reading an item extends its lifetime.
type Cache[K comparable, V any] struct {
	items map[K]*CacheItem[V]
	ttl   time.Duration
	mutex sync.Mutex
	now   func() time.Time
}

// NewCache creates a new cache.
func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]*CacheItem[V]),
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the value for key, or nil when it is missing or expired.
// Getting an item extends its TTL
func (c *Cache[K, V]) Get(key K) *V {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item, found := c.items[key]
	if !found {
		return nil
	}
	now := c.now()
	if now.After(item.ExpiresAt) {
		delete(c.items, key)
		return nil
	}
	// update TTL
	item.ExpiresAt = now.Add(c.ttl)

	return item.Value
}

// Set stores value under key with a fresh TTL.
func (c *Cache[K, V]) Set(key K, value *V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheItem[V]{
		Value:     value,
		ExpiresAt: c.now().Add(c.ttl),
	}
}

func (c *Cache[K, V]) Delete(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
}

// Len counts unexpired items, dropping expired ones as it goes.
func (c *Cache[K, V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for k, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, k)
		}
	}
	return len(c.items)
}
