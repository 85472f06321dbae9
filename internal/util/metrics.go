package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boardsync_snapshot_loads_total",
		Help: "Total number of snapshot loads by trigger and result",
	}, []string{"trigger", "result"})

	EventsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boardsync_events_applied_total",
		Help: "Total number of push events applied to the store",
	}, []string{"type"})

	EventsIgnoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boardsync_events_ignored_total",
		Help: "Total number of push events ignored",
	}, []string{"type", "reason"})

	MalformedPayloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boardsync_malformed_payloads_total",
		Help: "Total number of undecodable channel frames dropped",
	}, []string{"transport"})

	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boardsync_channel_reconnects_total",
		Help: "Total number of channel reconnections",
	})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boardsync_actions_total",
		Help: "Total number of order/table actions by result",
	}, []string{"action", "result"})

	ActiveOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boardsync_active_orders",
		Help: "Orders currently in a non-terminal status",
	})

	SnapshotLoadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boardsync_snapshot_load_latency_seconds",
		Help:    "Latency of snapshot loads",
		Buckets: prometheus.DefBuckets,
	})

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
