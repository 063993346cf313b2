package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is used by Set when no TTL option is given
const DefaultTTL = time.Hour

type entry[V any] struct {
	payload  V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Memory implements Cache with a mutex-guarded map. Expired entries are
// dropped lazily on Get, or in bulk by PurgeExpired
type Memory[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

type Option func(*options)

type options struct {
	defaultTTL time.Duration
	now        func() time.Time
}

// WithDefaultTTL sets the TTL used by Set. Non-positive values are ignored
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewMemory creates an empty in-memory cache
func NewMemory[V any](opts ...Option) *Memory[V] {
	o := options{defaultTTL: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: o.defaultTTL,
		now:        o.now,
	}
}

// Get implements Reader interface
func (m *Memory[V]) Get(resource string, params map[string]string) (V, bool) {
	key := KeyFor(resource, params)

	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return zero, false
	}
	return e.payload, true
}

// Set implements Writer interface
func (m *Memory[V]) Set(resource string, params map[string]string, payload V) {
	m.SetWithTTL(resource, params, payload, m.defaultTTL)
}

// SetWithTTL implements Writer interface
func (m *Memory[V]) SetWithTTL(resource string, params map[string]string, payload V, ttl time.Duration) {
	key := KeyFor(resource, params)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry[V]{payload: payload, storedAt: m.now(), ttl: ttl}
}

// KeyFor implements KeyGenerator interface
func (m *Memory[V]) KeyFor(resource string, params map[string]string) string {
	return KeyFor(resource, params)
}

// Delete removes the entry for resource and params, if any
func (m *Memory[V]) Delete(resource string, params map[string]string) {
	key := KeyFor(resource, params)

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// PurgeExpired removes every expired entry and returns how many were removed
func (m *Memory[V]) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Clear empties the cache
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.entries)
}

// Len returns the number of stored entries, including expired ones not yet
// evicted
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// RunJanitor calls PurgeExpired every interval until ctx is done. onPurge,
// when non-nil, receives the number of entries removed by each pass
func (m *Memory[V]) RunJanitor(ctx context.Context, interval time.Duration, onPurge func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := m.PurgeExpired()
			if onPurge != nil {
				onPurge(n)
			}
		}
	}
}

// Ensure Memory implements the Cache interface
var _ Cache[[]byte] = (*Memory[[]byte])(nil)
