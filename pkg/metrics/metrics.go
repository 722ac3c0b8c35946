package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "btcdash"

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "fetch_total",
			Help:      "Completed API fetches by stream and status.",
		},
		[]string{"stream", "status"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "fetch_duration_seconds",
			Help:      "API fetch latency by stream.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stream"},
	)

	snapshotHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "snapshot_height",
			Help:      "Height of the most recently applied block snapshot.",
		},
	)

	staleDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "stale_results_dropped_total",
			Help:      "Fetch results discarded because a newer one already applied.",
		},
		[]string{"stream"},
	)
)

// Stream label values shared by the API client and the watcher.
const (
	StreamLatestMetrics = "latest_metrics"
	StreamBlockList     = "block_list"
	StreamBlockDetail   = "block_detail"
	StreamPriceHistory  = "price_history"
)

// ObserveFetch records one completed API fetch.
func ObserveFetch(stream string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	fetchTotal.WithLabelValues(stream, status).Inc()
	fetchDuration.WithLabelValues(stream).Observe(time.Since(started).Seconds())
}

// SetSnapshotHeight records the chain height of the applied snapshot.
func SetSnapshotHeight(height int64) {
	snapshotHeight.Set(float64(height))
}

// ObserveStaleDrop counts a result dropped by the sequence guard.
func ObserveStaleDrop(stream string) {
	staleDropped.WithLabelValues(stream).Inc()
}
