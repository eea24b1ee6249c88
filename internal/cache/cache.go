package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a namespaced cache key from a URL
func Key(kind, url string) string {
	hash := sha256.Sum256([]byte(url))
	return "citecheck:v1:" + kind + ":" + hex.EncodeToString(hash[:])
}

// Page is a fetched document as stored in the cache
type Page struct {
	URL         string    `json:"url"`
	FinalURL    string    `json:"final_url"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// PageCache stores fetched pages keyed by their request URL
type PageCache struct {
	store Cache
	ttl   time.Duration
}

// NewPageCache wraps a byte cache; ttl 0 uses the store's default
func NewPageCache(store Cache, ttl time.Duration) *PageCache {
	return &PageCache{store: store, ttl: ttl}
}

// Get returns the cached page for url. Undecodable entries are dropped.
func (c *PageCache) Get(url string) (*Page, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}

	key := Key("page", url)
	data, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}

	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		_ = c.store.Delete(key)
		return nil, false
	}
	return &page, true
}

// Put stores page under its request URL
func (c *PageCache) Put(page *Page) error {
	if c == nil || c.store == nil {
		return nil
	}

	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return c.store.Set(Key("page", page.URL), data, c.ttl)
}
