package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotsSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_synced_total",
		Help: "Total number of ERP snapshots applied",
	})

	SnapshotsDeferredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_deferred_total",
		Help: "Total number of snapshots parked because the session had unsaved work",
	})

	SnapshotSyncFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_sync_failed_total",
		Help: "Total number of failed snapshot syncs",
	}, []string{"reason"})

	SnapshotSyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_sync_latency_seconds",
		Help:    "Latency of ERP snapshot fetches",
		Buckets: prometheus.DefBuckets,
	})

	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_analyses_total",
		Help: "Total number of transfer analyses requested",
	}, []string{"mode"})

	AnalysesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_analyses_failed_total",
		Help: "Total number of failed transfer analyses",
	}, []string{"mode", "reason"})

	AnalysisLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transfer_analysis_latency_seconds",
		Help:    "Latency of recommendation service calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	TransfersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfer_orders_created_total",
		Help: "Total number of pending transfer orders created",
	})

	TransfersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfer_orders_confirmed_total",
		Help: "Total number of transfer orders confirmed as received",
	})

	TransfersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfer_orders_deleted_total",
		Help: "Total number of pending transfer orders deleted",
	})

	StagedTransfersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staged_transfers_active",
		Help: "Number of currently staged, uncommitted transfers",
	})

	SessionKeyResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_key_resets_total",
		Help: "Total number of session storage keys reset after parse failure",
	}, []string{"key"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
