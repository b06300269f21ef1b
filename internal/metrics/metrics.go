// Package metrics exposes internal operability counters. The wire protocol
// has no client-facing error channel, so failures surface here and in logs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palabre_events_in_total",
		Help: "Inbound envelopes by type.",
	}, []string{"type"})

	MalformedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palabre_events_malformed_total",
		Help: "Envelopes that failed to decode.",
	})

	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palabre_store_errors_total",
		Help: "Persistence operations abandoned because of a store error.",
	})

	DroppedSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palabre_dropped_sends_total",
		Help: "Outbound events dropped because a connection's queue was full.",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palabre_active_connections",
		Help: "Currently connected clients.",
	})

	RetentionSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palabre_retention_sweeps_total",
		Help: "Completed retention sweeps.",
	})

	RetentionRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palabre_retention_removed_total",
		Help: "Message rows removed by retention sweeps.",
	})
)
