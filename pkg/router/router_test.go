package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoalkv/shoal/pkg/cache"
	"github.com/shoalkv/shoal/pkg/persistence"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	store, err := persistence.Open(persistence.Config{
		Dir:                 t.TempDir(),
		BloomFilterSize:     2048,
		BloomHashCount:      4,
		MaxKeysPerSSTable:   100,
		CompactionThreshold: 3,
		WorkerPoolSize:      2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := cache.New(context.Background(), cache.Config{ShardCount: 2, CapacityPerShard: 100, TTL: time.Minute})
	return New(c, store)
}

func TestPutJoinsValuesAndIsReadableThroughBothTiers(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	require.NoError(t, r.Put(ctx, []Entry{
		{Key: "a", Values: []string{"x", "y"}},
	}))

	results, err := r.Get(ctx, []string{"a"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Found)
	assert.Equal(t, "x,y", results[0].Value)

	// Persistence must have the entry directly, independent of the cache.
	v, found, err := r.store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "x,y", v)
}

func TestGetPreservesInputOrderAndReportsMisses(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	require.NoError(t, r.Put(ctx, []Entry{
		{Key: "a", Values: []string{"1"}},
		{Key: "c", Values: []string{"3"}},
	}))

	results, err := r.Get(ctx, []string{"c", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "c", results[0].Key)
	assert.True(t, results[0].Found)
	assert.Equal(t, "3", results[0].Value)
	assert.Equal(t, "missing", results[1].Key)
	assert.False(t, results[1].Found)
	assert.Equal(t, "a", results[2].Key)
	assert.True(t, results[2].Found)
	assert.Equal(t, "1", results[2].Value)
}

func TestGetFallsBackToPersistenceOnCacheMissAndWarmsCache(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	// Write straight to persistence, bypassing the cache, to force a cache-miss-then-fallback path.
	require.NoError(t, r.store.Put(ctx, "k", "v"))

	_, found := r.cache.Get("k")
	require.False(t, found, "precondition: cache must not already hold the key")

	results, err := r.Get(ctx, []string{"k"})
	require.NoError(t, err)
	require.True(t, results[0].Found)
	assert.Equal(t, "v", results[0].Value)

	v, found := r.cache.Get("k")
	assert.True(t, found, "a persistence-served read should warm the cache")
	assert.Equal(t, "v", v)
}

func TestPutFailsWhenPersistenceTierIsUnavailable(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.store.Close()) // Simulate the persistence tier being unavailable.

	err := r.Put(ctx, []Entry{{Key: "a", Values: []string{"1"}}})
	assert.Error(t, err, "a failing tier must surface as an error, not be silently swallowed")
}
