// Package router implements the stateless request dispatcher that sits in front of the Cache and Persistence
// Manager. It fans a PUT out to both tiers and acknowledges the caller only once both have accepted it, and
// serves a GET from the Cache first, falling back to Persistence on a miss.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shoalkv/shoal/pkg/cache"
	"github.com/shoalkv/shoal/pkg/persistence"
)

// Router fans PUTs out to a Cache and a Persistence Manager and serves GETs from the Cache with a Persistence
// fallback. It holds no state of its own beyond handles to its two collaborators.
type Router struct {
	cache *cache.Cache
	store *persistence.Manager
}

// New builds a Router over an already-constructed Cache and Persistence Manager.
func New(c *cache.Cache, store *persistence.Manager) *Router {
	return &Router{cache: c, store: store}
}

// Entry is a single key/value pair accepted by Put, with value given as the pieces the caller wants joined.
type Entry struct {
	Key    string
	Values []string
}

// Put joins each entry's Values with "," and writes the resulting key->value mapping to both the Cache and the
// Persistence Manager, in parallel, acknowledging only once both have accepted every entry (the "ack-after-
// both" rule: see DESIGN.md). If either tier fails any entry, Put returns an error describing the failing tier
// without rolling back the other; the next successful Put or a compaction pass re-aligns them.
func (r *Router) Put(ctx context.Context, entries []Entry) error {
	requestID := uuid.New().String()
	slog.Info("router: put", "requestId", requestID, "entries", len(entries))

	type outcome struct {
		tier string
		err  error
	}
	results := make(chan outcome, 2)

	go func() {
		for _, e := range entries {
			r.cache.Put(e.Key, strings.Join(e.Values, ","))
		}
		results <- outcome{tier: "cache"}
	}()
	go func() {
		for _, e := range entries {
			if err := r.store.Put(ctx, e.Key, strings.Join(e.Values, ",")); err != nil {
				results <- outcome{tier: "persistence", err: err}
				return
			}
		}
		results <- outcome{tier: "persistence"}
	}()

	var errs []error
	for range 2 {
		res := <-results
		if res.err != nil {
			slog.Error("router: put failed in a tier", "requestId", requestID, "tier", res.tier, "error", res.err)
			errs = append(errs, fmt.Errorf("%s: %w", res.tier, res.err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("router: put failed: %w", errors.Join(errs...))
	}
	return nil
}

// Get resolves each key independently -- Cache first, Persistence on a miss -- and returns the results in the
// same order as keys. A key absent from both tiers reports found=false with no error.
func (r *Router) Get(ctx context.Context, keys []string) ([]Result, error) {
	requestID := uuid.New().String()
	slog.Info("router: get", "requestId", requestID, "keys", len(keys))

	out := make([]Result, len(keys))
	for i, key := range keys {
		if v, found := r.cache.Get(key); found {
			out[i] = Result{Key: key, Value: v, Found: true}
			continue
		}
		v, found, err := r.store.Get(ctx, key)
		if err != nil {
			slog.Error("router: get failed in persistence", "requestId", requestID, "key", key, "error", err)
			return nil, fmt.Errorf("router: get %q: %w", key, err)
		}
		if found {
			r.cache.Put(key, v) // Warm the cache so the next read of this key is served locally.
		}
		out[i] = Result{Key: key, Value: v, Found: found}
	}
	return out, nil
}

// Result is one key's resolved value from Get.
type Result struct {
	Key   string
	Value string
	Found bool
}
