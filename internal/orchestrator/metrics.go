package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the Orchestrator's private Prometheus registry, exposed on
// /metrics (SPEC_FULL §C.2). A private registry (rather than the global
// default) keeps the fleet-status gauges the only thing it reports.
var Registry = prometheus.NewRegistry()

var (
	// ServiceUp is 1 for a Running service, 0 otherwise.
	ServiceUp = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "momentumcore",
			Name:      "service_up",
			Help:      "Whether the service is running (1) or not (0)",
		},
		[]string{"service"},
	)

	// ServiceRestartCount is the cumulative crash-restart count since the
	// Orchestrator started supervising.
	ServiceRestartCount = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "momentumcore",
			Name:      "service_restart_count",
			Help:      "Cumulative restart count since the orchestrator started",
		},
		[]string{"service"},
	)

	// BrokerCallsUsedTotal tracks the Orchestrator's own broker-call usage
	// against its 5/min budget share (spec §5).
	BrokerCallsUsedTotal = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "momentumcore",
			Name:      "broker_calls_used_total",
			Help:      "Broker calls made by the orchestrator's own health check",
		},
	)

	// WatchlistSize is the size of the most recent daily watchlist.
	WatchlistSize = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "momentumcore",
			Name:      "watchlist_size",
			Help:      "Number of symbols in the current daily watchlist",
		},
	)

	// OpenPositions is the current count of open Positions.
	OpenPositions = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "momentumcore",
			Name:      "open_positions",
			Help:      "Number of currently open positions",
		},
	)
)
