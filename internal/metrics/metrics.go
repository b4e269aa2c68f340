package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "defi_overview",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "defi_overview",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "defi_overview",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Upstream source metrics ────────────────────────────────────────────

var (
	SourceFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "defi_overview",
		Subsystem: "source",
		Name:      "fetch_total",
		Help:      "Total number of guarded upstream fetches by outcome.",
	}, []string{"source", "status"})

	SourceFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "defi_overview",
		Subsystem: "source",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of guarded upstream fetches in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	UpstreamCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "defi_overview",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Upstream response cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)

// ── Aggregation metrics ────────────────────────────────────────────────

var (
	AggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "defi_overview",
		Subsystem: "aggregation",
		Name:      "duration_seconds",
		Help:      "End-to-end aggregation latency in seconds.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"kind"})

	AggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "defi_overview",
		Subsystem: "aggregation",
		Name:      "total",
		Help:      "Total aggregations by kind and outcome.",
	}, []string{"kind", "status"})
)

// ── Metadata snapshot metrics ──────────────────────────────────────────

var (
	MetadataEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "defi_overview",
		Subsystem: "metadata",
		Name:      "entries",
		Help:      "Number of entries in the current metadata snapshot per table.",
	}, []string{"table"})

	MetadataLastRefresh = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "defi_overview",
		Subsystem: "metadata",
		Name:      "last_refresh_timestamp",
		Help:      "Unix timestamp of the last successful metadata refresh.",
	})
)
