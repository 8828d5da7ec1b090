package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the engine's self-instrumentation. Distinct from the
// per-command PerformanceMetric pipeline: these describe the engine itself.
type Metrics struct {
	EventsProcessed      *prometheus.CounterVec
	StallsDetected       prometheus.Counter
	AlertsTriggered      prometheus.Counter
	NotificationsEmitted prometheus.Counter
	HistoryEvictions     prometheus.Counter

	LiveCommands     prometheus.Gauge
	MetricBufferFill prometheus.Gauge
}

// NewMetrics registers the engine collectors. A nil registerer gets a
// private registry, so tests and embedders without Prometheus pay nothing.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		EventsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rovertrack_events_processed_total",
			Help: "Total number of inbound tracking events applied.",
		}, []string{"type"}), // lifecycle, step

		StallsDetected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rovertrack_stalls_detected_total",
			Help: "Total number of stall episodes detected.",
		}),

		AlertsTriggered: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rovertrack_alerts_triggered_total",
			Help: "Total number of alert rule triggers.",
		}),

		NotificationsEmitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rovertrack_notifications_emitted_total",
			Help: "Total number of notifications that passed severity filtering.",
		}),

		HistoryEvictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rovertrack_history_evictions_total",
			Help: "Total number of history entries evicted by the per-command cap.",
		}),

		LiveCommands: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rovertrack_live_commands",
			Help: "Number of commands currently in the live tracking map.",
		}),

		MetricBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rovertrack_metric_buffer_fill",
			Help: "Current number of performance metrics in the analytics buffer.",
		}),
	}
}
