package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// flushTotal counts flush attempts by result: committed, failed or empty.
	flushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framehub_sync_flush_total",
		Help: "Total flush attempts by result",
	}, []string{"result"})

	// commitDuration tracks how long the document store takes to commit a batch.
	commitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framehub_sync_commit_duration_seconds",
		Help:    "Batch commit duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	// committedEntries counts change-log entries confirmed by the store.
	committedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framehub_sync_committed_entries_total",
		Help: "Total change-log entries committed",
	})

	// pendingEntries is the change-log length seen at the last schedule or flush.
	pendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framehub_sync_pending_entries",
		Help: "Change-log entries awaiting commit",
	})
)
