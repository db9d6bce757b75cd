package cache

import "time"

// Default cache configuration constants.
const (
	defaultCapacity = 10_000
	defaultTTL      = 30 * time.Second
)

// Option applies a configuration option to the EncodingCache.
type Option func(*EncodingCache)

// WithCapacity bounds the number of cached encodings.
func WithCapacity(capacity int) Option {
	return func(c *EncodingCache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithTTL sets the lifetime of cached encodings.
func WithTTL(ttl time.Duration) Option {
	return func(c *EncodingCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source. Used by tests to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(c *EncodingCache) {
		if now != nil {
			c.now = now
		}
	}
}
