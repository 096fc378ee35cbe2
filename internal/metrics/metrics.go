package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canvas_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Protocol metrics
	SessionsJoined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canvas_sessions_joined_total",
			Help: "Total sessions that completed a join",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_sessions_active",
			Help: "Currently connected sessions",
		},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canvas_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	OpsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_ops_appended_total",
			Help: "Total operations appended to room logs",
		},
		[]string{"kind"}, // "stroke" or "erase"
	)

	OpsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_ops_rejected_total",
			Help: "Total operations rejected before append",
		},
		[]string{"reason"},
	)

	ActiveFlips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_active_flips_total",
			Help: "Total undo/redo requests",
		},
		[]string{"kind", "result"}, // kind: "undo"|"redo", result: "applied"|"not_found"
	)

	SnapshotBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_snapshot_broadcasts_total",
			Help: "Total full-history snapshot broadcasts",
		},
		[]string{"cause"}, // "undo", "redo" or "clear"
	)

	CursorRelays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canvas_cursor_relays_total",
			Help: "Total cursor positions relayed",
		},
	)

	// Delivery metrics
	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canvas_frames_dropped_total",
			Help: "Outbound frames dropped because a session's queue was full",
		},
	)
)
