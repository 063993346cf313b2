// Package cache provides an in-memory response cache keyed on a resource
// identifier plus an unordered parameter set, with TTL-based expiration
package cache

import "time"

// Reader defines the interface for reading cache entries
type Reader[V any] interface {
	// Get returns the payload stored for resource and params.
	// Returns false if no entry exists or the entry has expired
	Get(resource string, params map[string]string) (V, bool)
}

// Writer defines the interface for writing cache entries
type Writer[V any] interface {
	// Set stores payload with the cache's default TTL, replacing any prior entry
	Set(resource string, params map[string]string, payload V)

	// SetWithTTL stores payload with an explicit TTL, replacing any prior entry
	SetWithTTL(resource string, params map[string]string, payload V, ttl time.Duration)
}

// ReadWriter combines both cache operations
type ReadWriter[V any] interface {
	Reader[V]
	Writer[V]
}

// KeyGenerator generates cache keys from request parameters
type KeyGenerator interface {
	// KeyFor generates a stable cache key from resource and parameters
	KeyFor(resource string, params map[string]string) string
}

// Cache is the main interface that combines all cache operations
type Cache[V any] interface {
	ReadWriter[V]
	KeyGenerator

	Delete(resource string, params map[string]string)
	PurgeExpired() int
	Clear()
	Len() int
}
