package rulepack

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCacheWindow is how long a loaded pack is served before a refresh
const DefaultCacheWindow = 60 * time.Minute

// Cache serves an immutable Pack snapshot and refreshes it by copy-and-swap.
// Readers always get a complete pack; in-flight evaluations keep the snapshot
// they started with
type Cache struct {
	window time.Duration
	load   func() (*Pack, error)

	mu       sync.Mutex // guards refresh, not reads
	loadedAt time.Time
	cur      atomic.Pointer[Pack]
}

// NewCache builds a cache over the given loader; window <= 0 uses the default
func NewCache(load func() (*Pack, error), window time.Duration) *Cache {
	if load == nil {
		load = Load
	}
	if window <= 0 {
		window = DefaultCacheWindow
	}
	return &Cache{window: window, load: load}
}

// Get returns the current snapshot, loading or refreshing when the window
// has elapsed. A failed refresh keeps serving the previous snapshot
func (c *Cache) Get() (*Pack, error) {
	if p := c.cur.Load(); p != nil && time.Since(c.stamp()) < c.window {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited
	if p := c.cur.Load(); p != nil && time.Since(c.loadedAt) < c.window {
		return p, nil
	}

	p, err := c.load()
	if err != nil {
		if prev := c.cur.Load(); prev != nil {
			return prev, nil // stale beats broken
		}
		return nil, err
	}
	c.cur.Store(p)
	c.loadedAt = time.Now()
	return p, nil
}

// Invalidate forces the next Get to reload
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) stamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt
}
