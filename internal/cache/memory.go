package cache

import (
	"bytes"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps entries in process memory until they expire.
// Values are copied in and out so callers can reuse their buffers.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache sweeps expired entries every cleanupInterval
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// Set stores value; a non-positive ttl means the default expiry
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, bytes.Clone(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}

// Len counts entries, including expired ones the sweeper has not removed
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}
