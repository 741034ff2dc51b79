package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCacheAddAndGet(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string, string](ctx, 5, time.Second, nil)

	wasEvicted := c.Add("key1", "value1", time.Minute)
	assert.False(t, wasEvicted, "should not evict when cache is not full")

	val, found := c.Get("key1")
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	_, found = c.Get("nonexistent")
	assert.False(t, found)
}

func TestLRUCacheUpdateKey(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string, int](ctx, 2, time.Second, nil)

	c.Add("key1", 100, time.Minute)
	c.Add("key2", 200, time.Minute)

	wasEvicted := c.Add("key1", 999, time.Minute)
	assert.False(t, wasEvicted, "should not evict on update")
	val, found := c.Get("key1")
	assert.True(t, found)
	assert.Equal(t, 999, val)

	_, found = c.Get("key2")
	assert.True(t, found, "other key should not be affected by an update")
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int, string](ctx, 2, time.Second, nil)

	c.Add(1, "one", time.Minute)
	c.Add(2, "two", time.Minute)

	// Touching 1 makes 2 the least recently used.
	_, found := c.Get(1)
	assert.True(t, found)

	wasEvicted := c.Add(3, "three", time.Minute)
	assert.True(t, wasEvicted, "should evict when adding to a full cache")
	_, found = c.Get(2)
	assert.False(t, found, "item 2 should have been evicted as the least recently used")
	_, found = c.Get(1)
	assert.True(t, found, "item 1 was touched and should survive")
	val, found := c.Get(3)
	assert.True(t, found)
	assert.Equal(t, "three", val)
}

func TestLRUCacheExpirationViaGet(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string, string](ctx, 5, time.Hour, nil)

	c.Add("k", "v", time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, found := c.Get("k")
	assert.False(t, found, "entry should have expired")
}

func TestLRUCacheExpirationViaReaper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewLRUCache[string, string](ctx, 5, time.Millisecond, nil)

	c.Add("k", "v", time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, c.Keys(), "reaper should have swept the expired entry")
}

func TestLRUCacheEvictionCallback(t *testing.T) {
	ctx := context.Background()
	var evictedKey int
	var evictedValue string
	c := NewLRUCache[int, string](ctx, 1, time.Second, func(k int, v string) {
		evictedKey, evictedValue = k, v
	})

	c.Add(1, "one", time.Minute)
	c.Add(2, "two", time.Minute)

	assert.Equal(t, 1, evictedKey)
	assert.Equal(t, "one", evictedValue)
}

func TestLRUCachePurge(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string, string](ctx, 5, time.Second, nil)
	c.Add("a", "1", time.Minute)
	c.Add("b", "2", time.Minute)

	c.Purge()
	assert.Empty(t, c.Keys())
	_, found := c.Get("a")
	assert.False(t, found)
}
