// Command shoald runs a shoal key-value server: an HTTP ingress at /api/put and /api/get, and a supplemental
// RESP ingress, both driving the same Router/Cache/Persistence Manager trio.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/shoalkv/shoal/pkg/cache"
	"github.com/shoalkv/shoal/pkg/config"
	"github.com/shoalkv/shoal/pkg/httpapi"
	"github.com/shoalkv/shoal/pkg/persistence"
	"github.com/shoalkv/shoal/pkg/respfront"
	"github.com/shoalkv/shoal/pkg/router"
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("shoald: failed to load configuration", "error", err)
		os.Exit(1)
	}
	config.InitLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	go func() {
		sig := <-signals
		slog.Info("shoald: received termination signal, shutting down", "signal", sig)
		cancel()
	}()

	store, err := persistence.Open(persistence.Config{
		Dir:                 cfg.SSTableDirectory,
		BloomFilterSize:     cfg.BloomFilterSize,
		BloomHashCount:      cfg.BloomHashCount,
		MaxKeysPerSSTable:   cfg.MaxKeysPerSSTable,
		CompactionThreshold: cfg.CompactionThreshold,
		WorkerPoolSize:      cfg.WorkerPoolSize,
	})
	if err != nil {
		slog.Error("shoald: failed to open persistence manager", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("shoald: failed to close persistence manager", "error", err)
		}
	}()

	c := cache.New(ctx, cache.Config{
		ShardCount:       cfg.CacheShardCount,
		CapacityPerShard: cfg.CacheCapacityPerShard,
		TTL:              time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Disabled:         cfg.CacheDisabled,
	})

	r := router.New(c, store)

	httpServer := httpapi.New(r)
	respServer, err := respfront.New(cfg.RESPAddress, r)
	if err != nil {
		slog.Error("shoald: failed to build RESP server", "error", err)
		os.Exit(1)
	}

	httpErr := make(chan error, 1)
	go func() {
		slog.Info("shoald: starting HTTP ingress", "address", cfg.HTTPAddress)
		httpErr <- httpServer.Listen(cfg.HTTPAddress)
	}()

	respErr := make(chan error, 1)
	go func() {
		slog.Info("shoald: starting RESP ingress", "address", cfg.RESPAddress)
		respErr <- respServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		if err := httpServer.Shutdown(); err != nil {
			slog.Error("shoald: error shutting down HTTP ingress", "error", err)
		}
		if err := respServer.Close(); err != nil {
			slog.Error("shoald: error shutting down RESP ingress", "error", err)
		}
	case err := <-httpErr:
		if err != nil {
			slog.Error("shoald: HTTP ingress stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	case err := <-respErr:
		if err != nil {
			slog.Error("shoald: RESP ingress stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}
}
