package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stayops_console"

// Collector holds the Prometheus instruments for the alert subsystem.
type Collector struct {
	Registry *prometheus.Registry

	EventsReceived   *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	MergeOutcomes    *prometheus.CounterVec
	ToastsDispatched *prometheus.CounterVec
	Reconnects       prometheus.Counter
	Connected        prometheus.Gauge
	ActiveAlerts     prometheus.Gauge
	PollRuns         *prometheus.CounterVec
}

// NewCollector creates and registers the console metrics on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		Registry: registry,
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Real-time events received, by event name",
		}, []string{"event"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Malformed real-time events dropped at the boundary",
		}),
		MergeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_merges_total",
			Help:      "Alert store merge outcomes",
		}, []string{"outcome"}),
		ToastsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toasts_dispatched_total",
			Help:      "Toasts dispatched, by style",
		}, []string{"style"}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Failed real-time connect attempts",
		}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "Whether the real-time channel is connected",
		}),
		ActiveAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Open alerts currently held in the store",
		}),
		PollRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_runs_total",
			Help:      "Scheduled refresh runs, by job and result",
		}, []string{"job", "result"}),
	}
}
