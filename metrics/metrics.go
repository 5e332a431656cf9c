// Package metrics holds the prometheus collectors the gateway updates as it
// runs. It intentionally stops at instrumentation: exposing /metrics over
// HTTP is the job of the (out-of-scope) front end, not this package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TickDuration records how long each topology builder tick took.
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "topology",
		Name:      "tick_duration_seconds",
		Help:      "Duration of a full network topology snapshot build.",
		Buckets:   prometheus.DefBuckets,
	})

	// TicksSkipped counts ticks dropped because a prior fetch was still running.
	TicksSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "topology",
		Name:      "ticks_skipped_total",
		Help:      "Number of updater ticks skipped because a fetch was in progress.",
	})

	// ResolverLatency tracks per-resolver-kind call latency.
	ResolverLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "resolver",
		Name:      "call_duration_seconds",
		Help:      "Per-call latency of a topology resolver, by kind and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resolver", "outcome"})

	// ResolverCacheHits counts TTL-cache hits/misses per resolver kind.
	ResolverCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "resolver",
		Name:      "cache_results_total",
		Help:      "Resolver cache lookups, partitioned by kind and hit/miss.",
	}, []string{"resolver", "result"})

	// SelectionOutcomes counts selection decisions by terminal outcome.
	SelectionOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "selection",
		Name:      "outcomes_total",
		Help:      "Selection engine outcomes, by result kind.",
	}, []string{"outcome"})

	// ReceiptsIssued counts minted receipts by format.
	ReceiptsIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "receipts",
		Name:      "issued_total",
		Help:      "Receipts minted, by format (legacy or tap).",
	}, []string{"format"})
)

func init() {
	prometheus.MustRegister(
		TickDuration,
		TicksSkipped,
		ResolverLatency,
		ResolverCacheHits,
		SelectionOutcomes,
		ReceiptsIssued,
	)
}
