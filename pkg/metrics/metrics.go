package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operational counters and gauges for the persistence tier. These are additive observability; nothing in the
// core depends on their values.
var (
	KeysWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoal_persistence_keys_written_total",
		Help: "Total number of key/value pairs appended across all SSTables.",
	})

	TablesSealed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoal_persistence_tables_sealed_total",
		Help: "Total number of SSTables that transitioned from Active to Sealed.",
	})

	CompactionsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoal_persistence_compactions_total",
		Help: "Total number of compaction passes run by the persistence manager.",
	})

	LiveTables = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shoal_persistence_live_tables",
		Help: "Current number of SSTables (active + sealed) held by the persistence manager.",
	})

	FilterProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoal_filter_probes_total",
		Help: "Total number of membership filter probes performed during Get.",
	})

	FilterSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoal_filter_skips_total",
		Help: "Total number of SSTable reads skipped because the membership filter ruled the key out.",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoal_cache_hits_total",
		Help: "Total number of Router GETs served directly from the in-memory cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoal_cache_misses_total",
		Help: "Total number of Router GETs that fell through to the persistence tier.",
	})
)
