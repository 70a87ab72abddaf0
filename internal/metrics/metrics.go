// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion

	ReportsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_reports_accepted_total",
			Help: "Position reports written to the store",
		},
	)

	ReportsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_reports_rejected_total",
			Help: "Position reports rejected at the ingestion boundary",
		},
		[]string{"reason"}, // "malformed", "missing_fields", "rate_limited"
	)

	// Store

	TrackedAircraft = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_tracked_aircraft",
			Help: "Records physically held by the position store, stale ones included",
		},
	)

	SweepEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_sweep_evictions_total",
			Help: "Stale records removed by the background sweep",
		},
	)

	NotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_notify_failures_total",
			Help: "Subscriber callbacks that returned an error or panicked",
		},
	)

	// Broadcast

	ActiveStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "radar_active_streams",
			Help: "Open broadcast connections",
		},
		[]string{"transport"}, // "sse", "websocket"
	)

	SnapshotsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_snapshots_sent_total",
			Help: "Snapshots written to broadcast connections",
		},
		[]string{"transport"},
	)

	SnapshotsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_snapshots_dropped_total",
			Help: "Snapshots superseded before a slow connection could write them",
		},
		[]string{"transport"},
	)

	// Viewers

	ActiveViewers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_active_viewers",
			Help: "Viewers with a heartbeat inside the presence TTL",
		},
	)
)
