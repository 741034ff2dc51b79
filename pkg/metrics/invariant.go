// Package metrics gives the core a way to handle unexpected internal conditions without crashing the process,
// and a small set of Prometheus instruments for operational visibility.
//
// Think of Raise as what you'd panic() on elsewhere (equivalent to assert): a condition that must hold unless
// there's a bug in the code. Instead of taking the whole process down, we log an error, bump a counter that can
// trigger an alert, and let the caller decide how to fail the current operation gracefully.
//
// Do not use Raise for conditions that depend on external factors (a disk write failing is an IoError, not an
// invariant violation). Reserve it for "this should never happen given our own guarantees" situations, such as
// observing two Active tables at once or a compaction that can't find its merge sources.
package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shoal_invariants_total",
	Help: "Total number of internal invariant violations observed, by component and kind.",
}, []string{"component", "kind"})

// TestMode, when set by a test binary, turns invariant violations into panics so they fail fast in CI.
var TestMode bool

// Raise records an invariant violation: it logs an error with the given message/args, increments the
// invariants_total counter, and panics if TestMode is enabled.
func Raise(component, kind, msg string, args ...any) {
	invariantsTotal.WithLabelValues(component, kind).Inc()
	slog.With("component", component, "invariant", kind).Error(msg, args...)
	if TestMode {
		panic("invariant violated: " + component + "/" + kind)
	}
}

// InvariantCount returns the current value of the invariants_total counter for component/kind. It exists mainly
// to let tests assert that a violation was (or wasn't) recorded.
func InvariantCount(component, kind string) int {
	m := &promclient.Metric{}
	if err := invariantsTotal.WithLabelValues(component, kind).Write(m); err != nil {
		slog.Error("failed to read invariant counter", "error", err)
		return 0
	}
	return int(m.Counter.GetValue())
}
