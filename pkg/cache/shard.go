// This module implements cache sharding, which distributes keys uniformly across cache shards. Since each
// thread-safe cache implementation has a mutex to avoid races between reads and writes, sharding helps by
// distributing the locks: a goroutine only ever locks the shard its key belongs to, leaving every other shard
// free for concurrent access.

package cache

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shoalkv/shoal/pkg/metrics"
)

// ShardedCache distributes string keys across multiple underlying Layer instances (shards) to reduce lock
// contention under concurrent Router traffic.
type ShardedCache[V any] struct {
	shards []Layer[string, V]
}

// NewShardedCache builds a ShardedCache with shardCount independent shards, each produced by cacheGenerator.
func NewShardedCache[V any](cacheGenerator func() Layer[string, V], shardCount int) *ShardedCache[V] {
	if shardCount <= 0 {
		metrics.Raise("cache", "negative_shard_count", "invalid shard count given to sharded cache",
			"shardCount", shardCount)
		shardCount = 1
	}
	sc := &ShardedCache[V]{shards: make([]Layer[string, V], shardCount)}
	for i := range shardCount {
		sc.shards[i] = cacheGenerator()
	}
	return sc
}

// getShard determines which shard a given key belongs to by hashing it with xxhash and taking it modulo the
// shard count.
func (c *ShardedCache[V]) getShard(key string) Layer[string, V] {
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

// Get finds the appropriate shard for the key and retrieves the value from it.
func (c *ShardedCache[V]) Get(key string) (V, bool /*found*/) {
	return c.getShard(key).Get(key)
}

// Add finds the appropriate shard for the key and adds the key-value pair to it.
func (c *ShardedCache[V]) Add(key string, value V, ttl time.Duration) /*evictionOccurred*/ bool {
	return c.getShard(key).Add(key, value, ttl)
}

// Keys aggregates the keys from all shards into a single slice. Resource-intensive: iterates every shard.
func (c *ShardedCache[V]) Keys() []string {
	keys := make([]string, 0)
	for _, shard := range c.shards {
		keys = append(keys, shard.Keys()...)
	}
	return keys
}

// Purge clears all items from the cache by calling Purge on every shard.
func (c *ShardedCache[V]) Purge() {
	for _, shard := range c.shards {
		shard.Purge()
	}
}
