package notebook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "noticeable"

// Metrics are the Prometheus collectors of one notebook.
type Metrics struct {
	// documents counts SetDocument calls.
	documents prometheus.Counter

	// cellsAdded and cellsRemoved count cells by diff outcome.
	cellsAdded   prometheus.Counter
	cellsRemoved prometheus.Counter

	// liveCells is the number of cells with a state.
	liveCells prometheus.Gauge

	// analysisDuration measures analysis and synthesis of one cell.
	// Labels: outcome (ok, error, markdown)
	analysisDuration *prometheus.HistogramVec

	// transitions counts published variable states.
	// Labels: state (pending, fulfilled, rejected)
	transitions *prometheus.CounterVec

	// staleCalls counts sink calls discarded by the version guard.
	// Labels: sink (display, report_outputs)
	staleCalls *prometheus.CounterVec

	// lateNotifications counts notifications for removed cells.
	lateNotifications prometheus.Counter
}

// NewMetrics creates the notebook collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		documents: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "notebook",
			Name:      "documents_total",
			Help:      "Total SetDocument calls",
		}),
		cellsAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "notebook",
			Name:      "cells_added_total",
			Help:      "Total cells added by document changes",
		}),
		cellsRemoved: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "notebook",
			Name:      "cells_removed_total",
			Help:      "Total cells removed by document changes",
		}),
		liveCells: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "notebook",
			Name:      "cells",
			Help:      "Cells in the current document",
		}),
		analysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Time to analyze and synthesize one cell",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"outcome"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cell",
			Name:      "transitions_total",
			Help:      "Total published cell states by state",
		}, []string{"state"}),
		staleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cell",
			Name:      "stale_sink_calls_total",
			Help:      "Sink calls discarded because a newer computation started",
		}, []string{"sink"}),
		lateNotifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cell",
			Name:      "late_notifications_total",
			Help:      "Notifications received for cells already removed",
		}),
	}
}
