package intent

import (
	"sort"
	"sync"
	"time"

	"github.com/taskwire/taskwire/internal/clock"
)

// Idempotency cache defaults.
const (
	DefaultIdempotencyTTL  = time.Hour
	DefaultCacheMaxEntries = 1000
	DefaultCacheEvictBatch = 100
)

// cacheEntry pairs a stored envelope with its last write time.
type cacheEntry struct {
	resp      *Response
	lastWrite time.Time
}

// Cache memoizes successful modifying responses by idempotency key so agent
// retries replay the original envelope instead of re-running the mutation.
// In-memory only; entries expire by TTL and the size cap evicts the oldest
// writes in batches.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	evictBatch int
	clk        clock.Clock
}

// NewCache creates a cache. Non-positive arguments fall back to the
// defaults; an evictBatch above maxEntries is clamped.
func NewCache(ttl time.Duration, maxEntries, evictBatch int, clk clock.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if evictBatch <= 0 {
		evictBatch = DefaultCacheEvictBatch
	}
	if evictBatch > maxEntries {
		evictBatch = maxEntries
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		evictBatch: evictBatch,
		clk:        clk,
	}
}

// Check returns the envelope stored under key. Expired entries are deleted
// lazily; Check has no other side effects.
func (c *Cache) Check(key string) (*Response, bool) {
	if key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clk.Now().Sub(entry.lastWrite) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.resp, true
}

// Store saves resp under key: expired entries are purged first, then if the
// cache is at capacity the oldest writes are evicted in one batch, then the
// entry is inserted.
func (c *Cache) Store(key string, resp *Response) {
	if key == "" || resp == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	for k, entry := range c.entries {
		if now.Sub(entry.lastWrite) > c.ttl {
			delete(c.entries, k)
		}
	}

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[key] = cacheEntry{resp: resp, lastWrite: now}
}

// Clear empties the cache and returns how many entries were dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	return n
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes the evictBatch entries with the oldest last writes.
// Caller holds the mutex.
func (c *Cache) evictOldest() {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].lastWrite.Before(c.entries[keys[j]].lastWrite)
	})

	n := c.evictBatch
	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		delete(c.entries, k)
	}
}
