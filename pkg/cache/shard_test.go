package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedCacheDistributesAndFindsKeys(t *testing.T) {
	ctx := context.Background()
	gen := func() Layer[string, string] {
		return NewLRUCache[string, string](ctx, 100, time.Minute, nil)
	}
	sc := NewShardedCache[string](gen, 4)

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i)
		sc.Add(key, key+"-value", time.Minute)
	}
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i)
		v, found := sc.Get(key)
		require.True(t, found, "key %s should be found", key)
		assert.Equal(t, key+"-value", v)
	}
	assert.Len(t, sc.Keys(), 50)
}

func TestShardedCachePurgeClearsEveryShard(t *testing.T) {
	ctx := context.Background()
	gen := func() Layer[string, string] {
		return NewLRUCache[string, string](ctx, 100, time.Minute, nil)
	}
	sc := NewShardedCache[string](gen, 4)
	sc.Add("a", "1", time.Minute)
	sc.Add("b", "2", time.Minute)

	sc.Purge()
	assert.Empty(t, sc.Keys())
}

func TestShardedCacheZeroShardCountClampsToOne(t *testing.T) {
	gen := func() Layer[string, string] {
		return NewLRUCache[string, string](context.Background(), 10, time.Minute, nil)
	}
	sc := NewShardedCache[string](gen, 0)
	assert.Len(t, sc.shards, 1)
}
