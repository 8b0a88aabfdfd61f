// Package metrics exposes resolver and cache instrumentation as
// Prometheus collectors, grounded on the teacher's
// api/grpc/middleware.RPCRequests/RPCDurations pattern (package-level
// CounterVec/HistogramVec, MustRegister'd once in init) adapted from
// gRPC request metrics to resolver query/retry/cache metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dnsscience/stubresolver/internal/rcache"
)

var (
	// QueriesTotal counts resolution attempts by final outcome
	// ("answer", "nxdomain", "no_answer", "no_nameservers", "timeout", "error").
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stubresolver_queries_total", Help: "Total resolution attempts by outcome"},
		[]string{"outcome"},
	)

	// QueryDuration observes end-to-end Resolve latency.
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "stubresolver_query_duration_seconds", Help: "Resolve() latency", Buckets: prometheus.DefBuckets},
	)

	// RetriesTotal counts per-server retry attempts, labeled by the reason
	// the resolver advanced to the next attempt (truncated, servfail,
	// timeout, refused).
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stubresolver_retries_total", Help: "Retries against nameservers by reason"},
		[]string{"reason"},
	)

	// TransportErrorsTotal counts I/O-level failures per transport kind.
	TransportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stubresolver_transport_errors_total", Help: "Transport-level errors by kind"},
		[]string{"kind"},
	)

	// CacheHits/CacheMisses/CacheEvictions mirror rcache.Stats as counters
	// so Prometheus sees monotonic totals rather than the cache's
	// point-in-time snapshot.
	CacheHits      = prometheus.NewCounter(prometheus.CounterOpts{Name: "stubresolver_cache_hits_total", Help: "Cache hits"})
	CacheMisses    = prometheus.NewCounter(prometheus.CounterOpts{Name: "stubresolver_cache_misses_total", Help: "Cache misses"})
	CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{Name: "stubresolver_cache_evictions_total", Help: "Cache evictions"})
	CacheSize      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "stubresolver_cache_size", Help: "Current cache entry count"})
)

func init() {
	prometheus.MustRegister(
		QueriesTotal, QueryDuration, RetriesTotal, TransportErrorsTotal,
		CacheHits, CacheMisses, CacheEvictions, CacheSize,
	)
}

// ObserveResolve records one Resolve() call's outcome and wall-clock
// duration.
func ObserveResolve(outcome string, elapsed time.Duration) {
	QueriesTotal.WithLabelValues(outcome).Inc()
	QueryDuration.Observe(elapsed.Seconds())
}

// ObserveRetry records one per-server retry, labeled by why the resolver
// moved on (truncated/servfail/timeout/refused).
func ObserveRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// ObserveTransportError records one transport-level failure for kind
// ("udp", "tcp", "dot", "doh").
func ObserveTransportError(kind string) {
	TransportErrorsTotal.WithLabelValues(kind).Inc()
}

// cacheCounterState lets SyncCacheStats turn rcache.Stats's cumulative
// counters into Prometheus-correct deltas (Stats() returns running
// totals, not deltas, each call).
type cacheCounterState struct {
	lastHits, lastMisses, lastEvictions uint64
}

var cacheState cacheCounterState

// SyncCacheStats reads cache's current Stats snapshot and adds whatever
// has accumulated since the last call to the cumulative counters, then
// sets the size gauge to the snapshot's current value. Call this
// periodically (e.g. from a stats-printer goroutine) rather than on
// every cache access, to keep the hot path allocation-free.
func SyncCacheStats(cache rcache.Cache) {
	stats := cache.Stats()
	if d := delta(stats.Hits, cacheState.lastHits); d > 0 {
		CacheHits.Add(float64(d))
	}
	if d := delta(stats.Misses, cacheState.lastMisses); d > 0 {
		CacheMisses.Add(float64(d))
	}
	if d := delta(stats.Evictions, cacheState.lastEvictions); d > 0 {
		CacheEvictions.Add(float64(d))
	}
	cacheState.lastHits = stats.Hits
	cacheState.lastMisses = stats.Misses
	cacheState.lastEvictions = stats.Evictions
	CacheSize.Set(float64(stats.Size))
}

func delta(cur, last uint64) uint64 {
	if cur < last {
		return 0 // counter reset (e.g. cache Flush); skip rather than underflow
	}
	return cur - last
}
