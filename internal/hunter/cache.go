package hunter

import (
	"sync"
	"time"
)

// MemoryCache is a process-local TTL cache for collection results. Entries
// expire lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	res     *Result
	storedAt time.Time
}

// NewMemoryCache builds a cache whose entries live for ttl. A non-positive
// ttl disables expiry.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached result for domain if present and fresh.
func (c *MemoryCache) Get(domain string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[domain]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, domain)
		return nil, false
	}
	return entry.res, true
}

// Set stores the result for domain, resetting its TTL.
func (c *MemoryCache) Set(domain string, res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = cacheEntry{res: res, storedAt: c.now()}
}

var _ Cache = (*MemoryCache)(nil)
