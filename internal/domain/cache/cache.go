// Package cache provides the bounded, TTL-based encoding cache that maps a
// frame-region fingerprint to a previously computed feature vector.
//
// Eviction is by oldest insertion order, not access order: a map plus an
// intrusive doubly linked list keeps both lookup and eviction O(1) without
// full LRU bookkeeping. Expired entries are invisible to Get before the
// eviction ever runs and are lazily removed on lookup.
package cache

import (
	"sync"
	"time"

	"github.com/facegate/facegate/pkg/metrics"
)

// EncodingCache stores computed feature vectors keyed by a caller-supplied
// fingerprint. The cache makes no assumption about the fingerprint's
// derivation beyond equality semantics. Operations never fail; a miss
// simply forces recomputation upstream.
type EncodingCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	head     *entry // most recently inserted
	tail     *entry // oldest insertion, next eviction victim
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// entry is a cache slot threaded through the insertion-order list.
type entry struct {
	fingerprint string
	vector      []float64
	quality     float64
	expiresAt   time.Time
	prev, next  *entry
}

// New creates an encoding cache with configuration options.
func New(opts ...Option) *EncodingCache {
	c := &EncodingCache{
		entries:  make(map[string]*entry),
		capacity: defaultCapacity,
		ttl:      defaultTTL,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the cached vector and quality for fingerprint, if present and
// not expired. An expired entry is treated as absent and removed.
func (c *EncodingCache) Get(fingerprint string) ([]float64, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		metrics.RecordCacheMiss()
		return nil, 0, false
	}
	if !c.now().Before(e.expiresAt) {
		c.unlink(e)
		delete(c.entries, fingerprint)
		metrics.RecordCacheMiss()
		metrics.UpdateCacheSize(len(c.entries))
		return nil, 0, false
	}

	metrics.RecordCacheHit()
	return e.vector, e.quality, true
}

// Put stores a vector under fingerprint. If the fingerprint is already
// present, its slot is refreshed in place. If the cache is at capacity, the
// oldest-inserted entry is evicted first.
func (c *EncodingCache) Put(fingerprint string, vector []float64, quality float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[fingerprint]; ok {
		e.vector = vector
		e.quality = quality
		e.expiresAt = c.now().Add(c.ttl)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	e := &entry{
		fingerprint: fingerprint,
		vector:      vector,
		quality:     quality,
		expiresAt:   c.now().Add(c.ttl),
	}
	c.push(e)
	c.entries[fingerprint] = e
	metrics.UpdateCacheSize(len(c.entries))
}

// Clear drops all cached entries.
func (c *EncodingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.head = nil
	c.tail = nil
	metrics.UpdateCacheSize(0)
}

// Len returns the current number of entries, expired or not.
func (c *EncodingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetTTL changes the TTL applied to subsequent insertions. Existing entries
// keep their original expiry.
func (c *EncodingCache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// SetCapacity changes the entry bound. If the cache currently holds more
// entries than the new bound, the oldest insertions are evicted until it
// fits.
func (c *EncodingCache) SetCapacity(capacity int) {
	if capacity < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = capacity
	for len(c.entries) > c.capacity {
		c.evictOldest()
	}
	metrics.UpdateCacheSize(len(c.entries))
}

// push inserts e at the head of the insertion-order list.
// Must be called with c.mu held.
func (c *EncodingCache) push(e *entry) {
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

// unlink removes e from the insertion-order list.
// Must be called with c.mu held.
func (c *EncodingCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

// evictOldest removes the tail of the insertion-order list.
// Must be called with c.mu held.
func (c *EncodingCache) evictOldest() {
	victim := c.tail
	if victim == nil {
		return
	}
	c.unlink(victim)
	delete(c.entries, victim.fingerprint)
}
