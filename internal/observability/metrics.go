// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	FetchesTotal   *prometheus.CounterVec // by source_api, status
	PayloadsStored prometheus.Counter
	FetchDuration  *prometheus.HistogramVec // by source_api
	ThrottleSkips  *prometheus.CounterVec   // by source_api
	CacheHits      prometheus.Counter

	// Cleaning metrics
	CleaningRunsTotal *prometheus.CounterVec // by source_api, status
	RowsCleaned       *prometheus.CounterVec // by table
	CleaningDuration  *prometheus.HistogramVec
	BackfillRuns      *prometheus.CounterVec // by source_api

	// Trend engine metrics
	TrendRunsTotal   *prometheus.CounterVec // by profile, status
	TrendRunDuration *prometheus.HistogramVec
	TrendLinesFound  *prometheus.GaugeVec // by asset, profile

	// Health metrics
	LastSuccessfulIngest prometheus.Gauge
	LastSuccessfulClean  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "heimdall"
	}

	return &Metrics{
		FetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetches_total",
			Help:      "Total fetch attempts by source and outcome",
		}, []string{"source_api", "status"}),
		PayloadsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "payloads_stored_total",
			Help:      "Total raw payloads stored in the bronze cache",
		}),
		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetch_duration_seconds",
			Help:      "Fetch latency by source",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source_api"}),
		ThrottleSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "throttle_skips_total",
			Help:      "Fetches skipped by the frequency throttle",
		}, []string{"source_api"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "cache_hits_total",
			Help:      "Fetches answered by an existing request fingerprint",
		}),

		CleaningRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleaning",
			Name:      "runs_total",
			Help:      "Cleaning passes by source and outcome",
		}, []string{"source_api", "status"}),
		RowsCleaned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleaning",
			Name:      "rows_total",
			Help:      "Rows written to silver tables",
		}, []string{"table"}),
		CleaningDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cleaning",
			Name:      "duration_seconds",
			Help:      "Cleaning pass duration by source",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source_api"}),
		BackfillRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleaning",
			Name:      "backfill_runs_total",
			Help:      "Cleaning passes that widened to a full-source backfill",
		}, []string{"source_api"}),

		TrendRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trend",
			Name:      "runs_total",
			Help:      "Trend engine runs by profile and outcome",
		}, []string{"profile", "status"}),
		TrendRunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trend",
			Name:      "run_duration_seconds",
			Help:      "Trend engine run duration by profile",
			Buckets:   prometheus.DefBuckets,
		}, []string{"profile"}),
		TrendLinesFound: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trend",
			Name:      "lines_found",
			Help:      "Trend lines found in the latest run",
		}, []string{"asset", "profile"}),

		LastSuccessfulIngest: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingest_timestamp",
			Help:      "Unix timestamp of the last fully successful ingest batch",
		}),
		LastSuccessfulClean: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_clean_timestamp",
			Help:      "Unix timestamp of the last fully successful cleaning run",
		}),
	}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
