// Package cache keeps successful fetch outcomes for the length of a run, so
// a URL listed twice is only fetched once.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/chapterwatch/engine"
)

// entry holds a cached outcome with its creation timestamp.
type entry struct {
	outcome   *engine.FetchOutcome
	createdAt time.Time
}

// Cache is a small in-memory outcome cache. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries outcomes for maxAge.
// A non-positive maxAge disables caching.
func New(maxEntries int, maxAge time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Key hashes an already normalized URL.
func Key(normalizedURL string) string {
	h := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(h[:])
}

// Get returns a cached outcome younger than the cache's max age.
func (c *Cache) Get(key string) (*engine.FetchOutcome, bool) {
	if c == nil || c.maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.maxAge {
		return nil, false
	}
	return e.outcome, true
}

// Set stores a successful outcome. Failed outcomes are never cached, so a
// later duplicate gets a fresh chance. At capacity the oldest entry is
// evicted.
func (c *Cache) Set(key string, out *engine.FetchOutcome) {
	if c == nil || c.maxAge <= 0 || out == nil || !out.OK() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{outcome: out, createdAt: c.now()}
}

// Len returns the number of cached outcomes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
