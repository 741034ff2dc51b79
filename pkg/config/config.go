// Package config loads the flat JSON configuration document described in the external interfaces: a config
// file supplies defaults, and command-line flags of the same name override them for local runs.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

// Config is the full set of tunables for one shoald process.
type Config struct {
	SSTableDirectory      string `json:"sstableDirectory"`
	BloomFilterSize       uint   `json:"bloomFilterSize"`
	BloomHashCount        uint   `json:"bloomHashCount"`
	MaxKeysPerSSTable     int    `json:"maxKeysPerSSTable"`
	CompactionThreshold   int    `json:"compactionThreshold"`
	WorkerPoolSize        int    `json:"workerPoolSize"`
	CacheShardCount       int    `json:"cacheShardCount"`
	CacheCapacityPerShard int    `json:"cacheCapacityPerShard"`
	CacheTTLSeconds       int    `json:"cacheTTLSeconds"`
	CacheDisabled         bool   `json:"cacheDisabled"`
	HTTPAddress           string `json:"httpAddress"`
	RESPAddress           string `json:"respAddress"`
	LogHandlerType        string `json:"logHandlerType"` // "json" or "text"
	LogLevel              string `json:"logLevel"`       // "debug", "info", "warn", "error"
}

// defaults mirrors the Config.withDefaults pattern used by the persistence and cache packages, applied before
// a config file or flags are consulted.
func defaults() Config {
	return Config{
		SSTableDirectory:      "./data",
		BloomFilterSize:       1 << 16,
		BloomHashCount:        4,
		MaxKeysPerSSTable:     1000,
		CompactionThreshold:   3,
		WorkerPoolSize:        4,
		CacheShardCount:       16,
		CacheCapacityPerShard: 1024,
		CacheTTLSeconds:       300,
		HTTPAddress:           "0.0.0.0:8080",
		RESPAddress:           "0.0.0.0:6380",
		LogHandlerType:        "json",
		LogLevel:              "info",
	}
}

var configFile = flag.String("config_file", "", "Path to a JSON configuration file; flags below override it.")

var (
	flagSSTableDirectory    = flag.String("sstableDirectory", "", "Directory holding SSTable data and index files.")
	flagBloomFilterSize     = flag.Uint("bloomFilterSize", 0, "Bits (M) in each table's membership filter.")
	flagBloomHashCount      = flag.Uint("bloomHashCount", 0, "Hash probes (K) per membership filter key.")
	flagMaxKeysPerSSTable   = flag.Int("maxKeysPerSSTable", 0, "Active table seals once it holds this many keys.")
	flagCompactionThreshold = flag.Int("compactionThreshold", 0, "Compaction runs once live tables exceed this.")
	flagWorkerPoolSize      = flag.Int("workerPoolSize", 0, "Bounded number of concurrent blocking file operations.")
	flagCacheShardCount     = flag.Int("cacheShardCount", 0, "Number of Cache shards.")
	flagCacheCapacity       = flag.Int("cacheCapacityPerShard", 0, "Max entries held by each Cache shard.")
	flagCacheTTLSeconds     = flag.Int("cacheTTLSeconds", 0, "Seconds a Cache entry stays valid.")
	flagCacheDisabled       = flag.Bool("cacheDisabled", false, "Disable the Cache tier entirely; every GET falls through to persistence.")
	flagHTTPAddress         = flag.String("httpAddress", "", "Address the HTTP ingress listens on.")
	flagRESPAddress         = flag.String("respAddress", "", "Address the RESP ingress listens on.")
	flagLogHandlerType      = flag.String("logHandlerType", "", "Log handler: json or text.")
	flagLogLevel            = flag.String("logLevel", "", "Log level: debug, info, warn, error.")
)

// Load builds a Config starting from defaults, overlaying a JSON file if --config_file names one, and finally
// overlaying any flags the caller set explicitly. It must be called after flag.Parse().
func Load() (Config, error) {
	cfg := defaults()

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", *configFile, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", *configFile, err)
		}
	}

	applyStringFlag(&cfg.SSTableDirectory, flagSSTableDirectory)
	applyUintFlag(&cfg.BloomFilterSize, flagBloomFilterSize)
	applyUintFlag(&cfg.BloomHashCount, flagBloomHashCount)
	applyIntFlag(&cfg.MaxKeysPerSSTable, flagMaxKeysPerSSTable)
	applyIntFlag(&cfg.CompactionThreshold, flagCompactionThreshold)
	applyIntFlag(&cfg.WorkerPoolSize, flagWorkerPoolSize)
	applyIntFlag(&cfg.CacheShardCount, flagCacheShardCount)
	applyIntFlag(&cfg.CacheCapacityPerShard, flagCacheCapacity)
	applyIntFlag(&cfg.CacheTTLSeconds, flagCacheTTLSeconds)
	if *flagCacheDisabled {
		cfg.CacheDisabled = true
	}
	applyStringFlag(&cfg.HTTPAddress, flagHTTPAddress)
	applyStringFlag(&cfg.RESPAddress, flagRESPAddress)
	applyStringFlag(&cfg.LogHandlerType, flagLogHandlerType)
	applyStringFlag(&cfg.LogLevel, flagLogLevel)

	return cfg, nil
}

func applyStringFlag(dst *string, flagVal *string) {
	if *flagVal != "" {
		*dst = *flagVal
	}
}

func applyIntFlag(dst *int, flagVal *int) {
	if *flagVal != 0 {
		*dst = *flagVal
	}
}

func applyUintFlag(dst *uint, flagVal *uint) {
	if *flagVal != 0 {
		*dst = *flagVal
	}
}
