// This module implements an expirable least-recently-used cache: a fixed-capacity shard that evicts its
// coldest entry on overflow and additionally retires entries once their TTL has elapsed.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/shoalkv/shoal/pkg/metrics"
)

// lruItem is what a list.Element.Value holds for one cache entry.
type lruItem[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRUCache is a thread-safe, fixed-capacity, in-memory cache with least-recently-used eviction and TTL
// expiration. It backs a single shard of a ShardedCache. Most-recently-used entries sit at the front of the
// list; Get and a refreshing Add both move their entry there, and overflow always evicts from the back.
type LRUCache[K comparable, V any] struct {
	capacity int
	order    *list.List             // front = most recently used, back = least recently used.
	index    map[K]*list.Element    // key -> its node in order, for O(1) lookup.
	mux      sync.Mutex
	// evictionCallback runs whenever Add, Purge, or the reaper retires an entry. It must not call back into
	// the cache or it will deadlock on mux.
	evictionCallback func(K, V)
}

var _ Layer[string, string] = (*LRUCache[string, string])(nil)

// NewLRUCache builds an LRUCache with the given capacity and eviction callback, and starts a background
// goroutine that periodically sweeps expired entries. The sweep stops once ctx is done; callers that don't
// need cancellation can pass context.Background.
func NewLRUCache[K comparable, V any](ctx context.Context, capacity int, tickInterval time.Duration,
	evictionCallback func(K, V)) *LRUCache[K, V] {
	if capacity <= 0 {
		metrics.Raise("cache", "negative_cache_capacity", "invalid capacity given to lru cache",
			"capacity", capacity)
		capacity = 1
	}
	c := &LRUCache[K, V]{
		capacity:         capacity,
		order:            list.New(),
		index:            make(map[K]*list.Element, capacity),
		evictionCallback: evictionCallback,
	}
	go c.reaper(ctx, tickInterval)
	return c
}

// Get returns the value for key if present and not expired, moving it to the front of the recency order.
func (c *LRUCache[K, V]) Get(key K) (V, bool /*found*/) {
	c.mux.Lock()
	defer c.mux.Unlock()

	node, exists := c.index[key]
	if !exists {
		return *new(V), false
	}
	item := node.Value.(*lruItem[K, V])
	if time.Now().After(item.expiresAt) {
		return *new(V), false
	}
	c.order.MoveToFront(node)
	return item.value, true
}

// Add inserts or refreshes a key-value pair with a fresh TTL, moving it to the front of the recency order. If
// the cache is at capacity and the key is new, the least-recently-used entry is evicted first. It returns true
// if an eviction occurred.
func (c *LRUCache[K, V]) Add(key K, value V, ttl time.Duration) /*evictionOccurred*/ bool {
	c.mux.Lock()
	defer c.mux.Unlock()

	if node, exists := c.index[key]; exists {
		item := node.Value.(*lruItem[K, V])
		item.value = value
		item.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(node)
		return false
	}

	evicted := false
	if c.order.Len() >= c.capacity {
		c.evictOldestLocked()
		evicted = true
	}

	node := c.order.PushFront(&lruItem[K, V]{key: key, value: value, expiresAt: time.Now().Add(ttl)})
	c.index[key] = node
	return evicted
}

// evictOldestLocked removes the least-recently-used entry. Callers must hold mux.
func (c *LRUCache[K, V]) evictOldestLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	item := back.Value.(*lruItem[K, V])
	delete(c.index, item.key)
	c.order.Remove(back)
	if c.evictionCallback != nil {
		c.evictionCallback(item.key, item.value)
	}
}

// Keys returns every key currently held, expired or not, in unspecified order.
func (c *LRUCache[K, V]) Keys() []K {
	c.mux.Lock()
	defer c.mux.Unlock()

	keys := make([]K, 0, len(c.index))
	for key := range c.index {
		keys = append(keys, key)
	}
	return keys
}

// Purge evicts every entry, running the eviction callback for each.
func (c *LRUCache[K, V]) Purge() {
	c.mux.Lock()
	defer c.mux.Unlock()

	for e := c.order.Front(); e != nil; e = e.Next() {
		item := e.Value.(*lruItem[K, V])
		if c.evictionCallback != nil {
			c.evictionCallback(item.key, item.value)
		}
	}
	c.order.Init()
	c.index = make(map[K]*list.Element, c.capacity)
}

// reaper periodically scans for and retires expired entries, so a cold key that's never looked up again still
// gets reclaimed instead of sitting until an unrelated Add evicts it.
func (c *LRUCache[K, V]) reaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *LRUCache[K, V]) sweepExpired() {
	c.mux.Lock()
	defer c.mux.Unlock()

	now := time.Now()
	var next *list.Element
	for e := c.order.Front(); e != nil; e = next {
		next = e.Next()
		item := e.Value.(*lruItem[K, V])
		if now.After(item.expiresAt) {
			delete(c.index, item.key)
			c.order.Remove(e)
			if c.evictionCallback != nil {
				c.evictionCallback(item.key, item.value)
			}
		}
	}
}
