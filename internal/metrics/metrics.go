package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Throughput metrics
var (
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycleledger_operations_total",
			Help: "Total number of committed ledger operations by kind",
		},
		[]string{"kind"},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycleledger_operation_errors_total",
			Help: "Total number of rejected ledger operations by kind and error",
		},
		[]string{"kind", "error"},
	)

	TicketsMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycleledger_tickets_minted_total",
			Help: "Tickets minted, in whole tickets, by source (payment or reserved)",
		},
		[]string{"source"},
	)

	RecorderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cycleledger_recorder_failures_total",
		Help: "Events that could not be recorded after the operation committed",
	})

	SnapshotFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cycleledger_snapshot_failures_total",
		Help: "Project snapshots that could not be persisted",
	})
)

// Performance metrics
var (
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cycleledger_operation_duration_seconds",
			Help:    "Time taken to execute a ledger operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	RateRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cycleledger_rate_refresh_duration_seconds",
		Help:    "Time taken to refresh exchange rates",
		Buckets: prometheus.DefBuckets,
	})
)

// State metrics
var (
	Projects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cycleledger_projects",
		Help: "Number of registered projects",
	})

	ProtocolFee = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cycleledger_protocol_fee_basis_points",
		Help: "Current protocol fee in basis points",
	})
)
