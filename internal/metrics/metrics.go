package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	SamplesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_metric_samples_total",
			Help: "Total number of agent metric samples ingested",
		},
	)

	ThreatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_threats_total",
			Help: "Total number of threats recorded",
		},
		[]string{"severity"},
	)

	EvidenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_evidence_total",
			Help: "Total number of evidence records created",
		},
		[]string{"severity"},
	)

	EventsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_events_acknowledged_total",
			Help: "Total number of event acknowledgments",
		},
	)

	// Write-through metrics
	StoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_store_failures_total",
			Help: "Total number of durable-store write failures, by record kind",
		},
		[]string{"kind"},
	)

	// Registry metrics
	AgentsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_agents_connected",
			Help: "Number of agents currently in active status",
		},
	)
)
