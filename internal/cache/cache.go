// Package cache provides a thread-safe in-memory TTL cache for external API
// responses. Entries past their TTL are stale but still retrievable, so
// callers can serve old data while a refresh is in flight; entries past twice
// the TTL are very stale and should not be served at all.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache stores JSON-serialized values keyed by string.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	data      []byte
	createdAt time.Time
	ttl       time.Duration
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{data: data, createdAt: time.Now(), ttl: ttl}
	return nil
}

// Get unmarshals a fresh entry into result. Returns false on miss or when
// the entry is stale.
func (c *Cache) Get(key string, result interface{}) (bool, error) {
	return c.get(key, result, 1)
}

// GetStale is like Get but also serves stale entries, up to twice the TTL.
func (c *Cache) GetStale(key string, result interface{}) (bool, error) {
	return c.get(key, result, 2)
}

func (c *Cache) get(key string, result interface{}, ttlFactor time.Duration) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > e.ttl*ttlFactor {
		return false, nil
	}
	if err := json.Unmarshal(e.data, result); err != nil {
		return false, fmt.Errorf("unmarshal cache value: %w", err)
	}
	return true, nil
}

// Age returns how old the entry under key is, and whether it exists.
func (c *Cache) Age(key string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return time.Since(e.createdAt), true
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the number of entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
