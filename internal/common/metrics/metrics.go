// Package metrics holds the Prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bikeshare"

var (
	// FetchAttempts counts per-network HTTP attempts by outcome (ok, rate_limited, error).
	FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detail_fetch_attempts_total",
		Help:      "Per-network detail fetch attempts by outcome",
	}, []string{"outcome"})

	// FetchExhausted counts networks that degraded to zero stations.
	FetchExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detail_fetch_exhausted_total",
		Help:      "Detail fetches that gave up after the retry budget",
	})

	// CacheLookups counts detail cache lookups by result (memory, disk, miss, corrupt).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detail_cache_lookups_total",
		Help:      "Detail cache lookups by tier that answered",
	}, []string{"result"})

	CacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detail_cache_disk_write_failures_total",
		Help:      "Best-effort disk tier writes that failed",
	})

	EnrichDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "enrichment_pass_duration_seconds",
		Help:      "Enrichment pass duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	})

	EnrichRows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "enrichment_rows",
		Help:      "Rows produced by the latest enrichment pass",
	})

	SnapshotFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_snapshot_fallbacks_total",
		Help:      "Enrichment passes that served the persisted snapshot",
	})
)
