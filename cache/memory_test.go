package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for TTL tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKeyForOrderIndependent(t *testing.T) {
	a := KeyFor("r", map[string]string{"a": "1", "b": "2", "c": "3"})
	b := KeyFor("r", map[string]string{"c": "3", "a": "1", "b": "2"})
	assert.Equal(t, a, b)
}

func TestKeyForNoCollisions(t *testing.T) {
	keys := []string{
		KeyFor("r", map[string]string{"a": "1&b=2"}),
		KeyFor("r", map[string]string{"a": "1", "b": "2"}),
		KeyFor("r?a=1", nil),
		KeyFor("r", map[string]string{"a": "1"}),
		KeyFor("r", nil),
		KeyFor("r", map[string]string{"": ""}),
		KeyFor("s", map[string]string{"a": "1"}),
	}

	seen := make(map[string]int)
	for i, k := range keys {
		if j, dup := seen[k]; dup {
			t.Fatalf("key %d collides with key %d: %s", i, j, k)
		}
		seen[k] = i
	}
}

func TestGetSetOrderIndependent(t *testing.T) {
	c := NewMemory[string]()
	c.Set("r", map[string]string{"a": "1", "b": "2"}, "X")

	got, ok := c.Get("r", map[string]string{"b": "2", "a": "1"})
	require.True(t, ok)
	assert.Equal(t, "X", got)
}

func TestGetMiss(t *testing.T) {
	c := NewMemory[[]int]()

	got, ok := c.Get("missing", nil)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewMemory[string](WithClock(clock.Now))

	c.SetWithTTL("r", map[string]string{}, "X", time.Second)

	got, ok := c.Get("r", nil)
	require.True(t, ok)
	assert.Equal(t, "X", got)

	clock.Advance(time.Second)
	_, ok = c.Get("r", nil)
	assert.True(t, ok, "entry is still fresh at exactly its TTL")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("r", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewMemory[string](WithClock(clock.Now), WithDefaultTTL(time.Minute))

	c.Set("r", nil, "X")

	clock.Advance(59 * time.Second)
	_, ok := c.Get("r", nil)
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("r", nil)
	assert.False(t, ok)
}

func TestDefaultTTLIsOneHour(t *testing.T) {
	clock := newFakeClock()
	c := NewMemory[string](WithClock(clock.Now), WithDefaultTTL(0))

	c.Set("r", nil, "X")
	clock.Advance(59 * time.Minute)
	_, ok := c.Get("r", nil)
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get("r", nil)
	assert.False(t, ok)
}

func TestOverwrite(t *testing.T) {
	c := NewMemory[string]()
	params := map[string]string{"check": "test@example.com"}

	c.Set("r", params, "first")
	c.Set("r", params, "second")

	got, ok := c.Get("r", params)
	require.True(t, ok)
	assert.Equal(t, "second", got)
	assert.Equal(t, 1, c.Len())
}

func TestOverwriteResetsTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewMemory[string](WithClock(clock.Now))

	c.SetWithTTL("r", nil, "old", time.Second)
	clock.Advance(900 * time.Millisecond)
	c.SetWithTTL("r", nil, "new", time.Second)
	clock.Advance(900 * time.Millisecond)

	got, ok := c.Get("r", nil)
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestDeleteAndClear(t *testing.T) {
	c := NewMemory[int]()
	c.Set("a", nil, 1)
	c.Set("b", nil, 2)
	c.Set("c", nil, 3)

	c.Delete("a", nil)
	_, ok := c.Get("a", nil)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b", nil)
	assert.False(t, ok)
}

func TestPurgeExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewMemory[int](WithClock(clock.Now))

	c.SetWithTTL("short", nil, 1, time.Second)
	c.SetWithTTL("medium", nil, 2, time.Minute)
	c.SetWithTTL("long", nil, 3, time.Hour)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, c.PurgeExpired())
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("long", nil)
	require.True(t, ok)
	assert.Equal(t, 3, got)

	assert.Equal(t, 0, c.PurgeExpired())
}

func TestRunJanitor(t *testing.T) {
	clock := newFakeClock()
	c := NewMemory[int](WithClock(clock.Now))
	c.SetWithTTL("r", nil, 1, time.Nanosecond)
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	purged := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, 5*time.Millisecond, func(n int) { purged <- n })
		close(done)
	}()

	select {
	case n := <-purged:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never ran")
	}
	assert.Equal(t, 0, c.Len())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop on cancel")
	}
}

func TestConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	c := NewMemory[int](WithClock(clock.Now))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				params := map[string]string{"k": fmt.Sprint(i % 20)}
				c.SetWithTTL("r", params, w*1000+i, time.Duration(i%3)*time.Millisecond)
				c.Get("r", params)
				if i%50 == 0 {
					clock.Advance(time.Millisecond)
					c.PurgeExpired()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 20)
}
