package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotsApplied counts snapshots that replaced the cached list
	SnapshotsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livematch_snapshots_applied_total",
			Help: "Total number of collection snapshots applied to the local cache",
		},
		[]string{"collection"},
	)

	// DocumentsSkipped counts documents dropped because they failed to decode
	DocumentsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livematch_documents_skipped_total",
			Help: "Total number of documents skipped because they could not be decoded",
		},
		[]string{"collection"},
	)

	// TransportErrors counts subscription failures reaching the document store
	TransportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livematch_transport_errors_total",
			Help: "Total number of document store transport errors seen by subscriptions",
		},
		[]string{"collection"},
	)

	// TournamentCreates counts create calls by result
	TournamentCreates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livematch_tournament_creates_total",
			Help: "Total number of tournament create requests by result",
		},
		[]string{"result"},
	)

	// Observers tracks registered state observers
	Observers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livematch_observers",
			Help: "Number of registered tournament state observers",
		},
	)

	// WebsocketClients tracks connected websocket clients per room
	WebsocketClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livematch_websocket_clients",
			Help: "Number of connected websocket clients per room",
		},
		[]string{"room"},
	)

	// DocstoreOperationDuration measures document store operation duration
	DocstoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livematch_docstore_operation_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)
)
