package artwork

import (
	"sync"
	"time"
)

// cacheEntry is a cached artwork payload with expiration.
type cacheEntry struct {
	data       []byte
	expiration time.Time
}

func (e *cacheEntry) expired() bool {
	return time.Now().After(e.expiration)
}

// Cache is a TTL-bounded in-memory store for fetched artwork bytes.
type Cache struct {
	items map[string]*cacheEntry
	mutex sync.RWMutex
	ttl   time.Duration
}

// NewCache creates an artwork cache with the given entry lifetime.
func NewCache(ttl time.Duration) *Cache {
	cache := &Cache{
		items: make(map[string]*cacheEntry),
		ttl:   ttl,
	}
	go cache.cleanupExpired()
	return cache
}

// Set stores artwork bytes under the given key.
func (c *Cache) Set(key string, data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &cacheEntry{
		data:       data,
		expiration: time.Now().Add(c.ttl),
	}
}

// Get retrieves artwork bytes if present and not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.expired() {
		return nil, false
	}
	return entry.data, true
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// cleanupExpired removes expired entries periodically.
func (c *Cache) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		for key, entry := range c.items {
			if entry.expired() {
				delete(c.items, key)
			}
		}
		c.mutex.Unlock()
	}
}
