// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_received_total",
			Help: "Webhook deliveries received, by provider event type.",
		},
		[]string{"event"},
	)

	WebhookEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_dropped_total",
			Help: "Webhook deliveries acknowledged without processing.",
		},
		[]string{"reason"},
	)

	EntitiesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entities_persisted_total",
			Help: "Canonical entities accepted by the entity sink.",
		},
		[]string{"source"},
	)

	SyncRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Full reconciliation sweeps started.",
		},
	)

	SyncIntegrationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_integration_failures_total",
			Help: "Integrations whose sweep ended with an error.",
		},
	)
)
