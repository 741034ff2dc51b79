package cache

import (
	"context"
	"time"

	"github.com/shoalkv/shoal/pkg/metrics"
)

// Config controls how a Cache sizes and expires its entries.
type Config struct {
	ShardCount       int           // Number of independent LRUCache shards.
	CapacityPerShard int           // Max entries held by each shard.
	TTL              time.Duration // Time an entry stays valid after being written or refreshed.
	// Disabled turns every shard into a NoOp layer: GET always falls through to the Persistence Manager and
	// nothing is ever cached. Used to run the store with caching off entirely, e.g. to measure the
	// Persistence Manager's own latency or to rule out a stale-cache theory while debugging.
	Disabled bool
}

func (c Config) withDefaults() Config {
	if c.ShardCount <= 0 {
		c.ShardCount = 16
	}
	if c.CapacityPerShard <= 0 {
		c.CapacityPerShard = 1024
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	return c
}

// Cache is the Router's in-memory lookup layer: a write-through, TTL-expiring, sharded view over whatever the
// Persistence Manager already holds durably. A Cache miss is never treated as authoritative; the Router always
// falls back to the Persistence Manager on miss. Because every successful Router write calls Put before it acks
// the client, a Get immediately after an acknowledged write is never a stale NOT_FOUND: either the shard still
// holds the fresh entry, or it has been evicted/expired, in which case the Router's persistence fallback
// resolves it instead. The Cache is purely an accelerator. The Router writes it alongside the Persistence
// Manager and does not roll it back when the persistence write fails.
type Cache struct {
	shards *ShardedCache[string]
	ttl    time.Duration
}

// New builds a Cache per cfg. ctx governs the lifetime of each shard's background TTL reaper; cancel it (or
// pass a cancellable context and cancel on shutdown) to stop the reaper goroutines.
func New(ctx context.Context, cfg Config) *Cache {
	cfg = cfg.withDefaults()
	gen := func() Layer[string, string] {
		return NewLRUCache[string, string](ctx, cfg.CapacityPerShard, cfg.TTL, nil)
	}
	if cfg.Disabled {
		gen = func() Layer[string, string] { return NewNoOp[string, string]() }
	}
	return &Cache{
		shards: NewShardedCache[string](gen, cfg.ShardCount),
		ttl:    cfg.TTL,
	}
}

// Get returns the cached value for key, recording a hit or miss in the operational metrics.
func (c *Cache) Get(key string) (string, bool) {
	v, found := c.shards.Get(key)
	if found {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}
	return v, found
}

// Put writes or refreshes key's cached value with a fresh TTL.
func (c *Cache) Put(key, value string) {
	c.shards.Add(key, value, c.ttl)
}

// Purge clears every shard. Used by tests and administrative tooling, never by the steady-state read/write path.
func (c *Cache) Purge() {
	c.shards.Purge()
}
