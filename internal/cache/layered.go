package cache

import (
	"errors"
	"time"
)

// LayeredCache reads through a fast cache in front of a slower one
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory cache in front of a disk cache at diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayers(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(diskDir, diskTTL))
}

// NewLayers combines two arbitrary caches
func NewLayers(front, back Cache) *LayeredCache {
	return &LayeredCache{memory: front, disk: back}
}

// Get checks memory first, then disk, promoting disk hits
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both caches; ttl applies to the disk layer only
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	return errors.Join(
		c.memory.Set(key, value, 0),
		c.disk.Set(key, value, ttl),
	)
}

// Delete removes a value from both caches
func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

// Clear removes all values from both caches
func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}
