package presence

import (
	"sync"
	"time"
)

type cacheKey struct {
	scope  string
	peerID string
}

type cacheEntry struct {
	status  Status
	fetched time.Time
}

// Cache holds recently observed peer statuses, keyed by (scope, peer)
// since the same peer may show different availability per scope. Entries
// are served while fresh (within TTL) and evicted once they pass twice
// the TTL, so a peer that disappears does not linger as stale state.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry

	now func() time.Time
}

// NewCache creates a Cache with the given freshness TTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached status for the peer in scope and whether it is
// still fresh. A stale or missing entry returns (Unknown, false).
func (c *Cache) Get(scope, peerID string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey{scope: scope, peerID: peerID}
	e, ok := c.entries[k]
	if !ok {
		return Unknown, false
	}
	age := c.now().Sub(e.fetched)
	if age > 2*c.ttl {
		delete(c.entries, k)
		return Unknown, false
	}
	if age > c.ttl {
		return Unknown, false
	}
	return e.status, true
}

// Put stores a freshly observed status. Unknown is never stored: caching
// "we don't know" would only suppress the next real lookup.
func (c *Cache) Put(scope, peerID string, s Status) {
	if s == Unknown {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{scope: scope, peerID: peerID}] = cacheEntry{status: s, fetched: c.now()}
}

// Evict drops the entry for the peer in scope, forcing the next Get to
// miss.
func (c *Cache) Evict(scope, peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey{scope: scope, peerID: peerID})
}

// Sweep removes entries older than twice the TTL and returns how many
// were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-2 * c.ttl)
	removed := 0
	for id, e := range c.entries {
		if e.fetched.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries, stale included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
