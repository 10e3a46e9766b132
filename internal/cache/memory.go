package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-memory TTL cache.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory creates a memory cache with the given default TTL and cleanup
// interval.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{cache: gocache.New(defaultTTL, cleanupInterval)}
}

// Get retrieves a value.
func (c *Memory) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Set stores a value with the default TTL.
func (c *Memory) Set(key string, value any) {
	c.cache.SetDefault(key, value)
}

// Delete removes a value.
func (c *Memory) Delete(key string) {
	c.cache.Delete(key)
}

// Clear removes all values.
func (c *Memory) Clear() {
	c.cache.Flush()
}

// Disabled is a no-op cache used when caching is turned off.
type Disabled struct{}

func (Disabled) Get(string) (any, bool) { return nil, false }
func (Disabled) Set(string, any)        {}
func (Disabled) Delete(string)          {}
func (Disabled) Clear()                 {}
