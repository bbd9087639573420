// Package metrics registers the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts envelopes by type and terminal status
	// (accepted, invalid, forbidden).
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ether_gateway_events_total",
			Help: "Total number of events processed by type and status",
		},
		[]string{"event_type", "status"},
	)

	// RateLimitHits counts denied admissions by source.
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ether_gateway_rate_limit_hits_total",
			Help: "Total number of rate limit denials",
		},
		[]string{"source"},
	)

	// ReplayHits counts duplicate submissions suppressed by source.
	ReplayHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ether_gateway_replay_hits_total",
			Help: "Total number of duplicate submissions rejected",
		},
		[]string{"source"},
	)

	// HandlerFailures counts egress handler errors by event type.
	HandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ether_gateway_handler_failures_total",
			Help: "Total number of egress handler failures",
		},
		[]string{"event_type"},
	)

	// RequestBytesTotal counts accepted request body bytes.
	RequestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ether_gateway_request_bytes_total",
			Help: "Total bytes of ingest request bodies received",
		},
	)
)
