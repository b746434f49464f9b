package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notefold_mutations_total",
		Help: "Organizer mutations by operation and outcome.",
	}, []string{"op", "status"})

	SnapshotWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notefold_snapshot_writes_total",
		Help: "Snapshot writes by backing area and outcome.",
	}, []string{"area", "status"})

	SnapshotBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notefold_snapshot_bytes",
		Help: "Size of the most recently serialized snapshot.",
	})

	StorageFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notefold_storage_fallbacks_total",
		Help: "Permanent sync-to-local downgrades after a quota failure.",
	})

	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notefold_reconciliations_total",
		Help: "External snapshot notifications by disposition.",
	}, []string{"result"})

	ListenerPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notefold_listener_panics_total",
		Help: "Change listeners that panicked during emission.",
	})
)
