package verify

import (
	"sync"
)

// mxAnswer is the outcome of one MX lookup
type mxAnswer struct {
	records int
	err     error
}

// MXCache caches MX answers per domain for the lifetime of one Verifier
type MXCache struct {
	mu    sync.RWMutex
	cache map[string]mxAnswer
}

// NewMXCache creates a new MX cache
func NewMXCache() *MXCache {
	return &MXCache{
		cache: make(map[string]mxAnswer),
	}
}

// Get retrieves a cached answer for a domain
func (c *MXCache) Get(domain string) (mxAnswer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	answer, ok := c.cache[domain]
	return answer, ok
}

// Set stores an answer for a domain
func (c *MXCache) Set(domain string, answer mxAnswer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[domain] = answer
}

// size returns the number of cached entries
func (c *MXCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
