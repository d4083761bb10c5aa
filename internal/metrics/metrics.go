// Package metrics exposes the Prometheus counters and histograms
// recorded by the run orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cdc_run_duration_seconds",
			Help:    "Duration of a full CDC orchestrator invocation.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"status"},
	)

	TableDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cdc_table_duration_seconds",
			Help:    "Duration of processing a single table within a run.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"table", "method", "status"},
	)

	TableResultTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_table_result_total",
			Help: "Total per-table CDC run outcomes.",
		},
		[]string{"table", "method", "status"},
	)

	RowsChangedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_rows_changed_total",
			Help: "Total rows emitted by change bucket.",
		},
		[]string{"table", "bucket"},
	)

	SnapshotWriteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_snapshot_write_total",
			Help: "Total snapshot write outcomes.",
		},
		[]string{"table", "format", "status"},
	)
)
