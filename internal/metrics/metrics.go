package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalyst_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_chat_turns_total",
			Help: "Chat turns by outcome (completed, failed, stale)",
		},
		[]string{"outcome"},
	)

	StreamDeltas = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalyst_stream_deltas_total",
			Help: "Reply fragments applied to conversation state",
		},
	)

	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_analyses_total",
			Help: "Feasibility analyses by outcome (completed, failed, stale)",
		},
		[]string{"outcome"},
	)

	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_store_writes_total",
			Help: "Session store writes by outcome (ok, error)",
		},
		[]string{"outcome"},
	)

	Sessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalyst_sessions",
			Help: "Number of stored sessions",
		},
	)
)
