package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutThenGet(t *testing.T) {
	c := New(context.Background(), Config{ShardCount: 2, CapacityPerShard: 10, TTL: time.Minute})

	c.Put("a", "1")
	v, found := c.Get("a")
	require.True(t, found)
	assert.Equal(t, "1", v)

	_, found = c.Get("missing")
	assert.False(t, found)
}

func TestCacheOverwriteRefreshesValue(t *testing.T) {
	c := New(context.Background(), Config{ShardCount: 2, CapacityPerShard: 10, TTL: time.Minute})

	c.Put("a", "1")
	c.Put("a", "2")

	v, found := c.Get("a")
	require.True(t, found)
	assert.Equal(t, "2", v)
}

func TestCacheEntryExpiresAfterTTL(t *testing.T) {
	c := New(context.Background(), Config{ShardCount: 1, CapacityPerShard: 10, TTL: time.Millisecond})

	c.Put("a", "1")
	time.Sleep(20 * time.Millisecond)

	_, found := c.Get("a")
	assert.False(t, found, "expired entries are treated as a miss, never as stale data")
}

func TestCachePurgeRemovesEverything(t *testing.T) {
	c := New(context.Background(), Config{ShardCount: 2, CapacityPerShard: 10, TTL: time.Minute})
	c.Put("a", "1")
	c.Put("b", "2")

	c.Purge()
	_, found := c.Get("a")
	assert.False(t, found)
}

func TestCacheDisabledNeverStoresAnything(t *testing.T) {
	c := New(context.Background(), Config{ShardCount: 2, CapacityPerShard: 10, TTL: time.Minute, Disabled: true})

	c.Put("a", "1")
	_, found := c.Get("a")
	assert.False(t, found, "a disabled cache must never serve a value, always deferring to persistence")
}
