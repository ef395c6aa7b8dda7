package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Reminder metrics
	RemindersScheduled *prometheus.CounterVec
	RemindersCancelled *prometheus.CounterVec
	RemindersSkipped   *prometheus.CounterVec
	RemindersFired     *prometheus.CounterVec
	ActiveTimers       prometheus.Gauge
	Notifications      *prometheus.CounterVec

	// Vitals metrics
	VitalTicks         prometheus.Counter
	VitalAlerts        *prometheus.CounterVec
	VitalHistorySize   prometheus.Gauge
	AlertSinkDropped   prometheus.Counter
	TickDuration       prometheus.Histogram
	RepositoryRequests *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RemindersScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_scheduled_total",
			Help:      "Total number of reminder timers registered",
		}, []string{"kind"}),
		RemindersCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_cancelled_total",
			Help:      "Total number of reminder cancel sweeps",
		}, []string{"entity"}),
		RemindersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_skipped_total",
			Help:      "Total number of reminders not scheduled or not shown",
		}, []string{"reason"}),
		RemindersFired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_fired_total",
			Help:      "Total number of reminder timers that fired",
		}, []string{"kind", "outcome"}),
		ActiveTimers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_timers",
			Help:      "Current number of registered timers",
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Total number of notifications handed to the notifier",
		}, []string{"status"}),

		VitalTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "vital_ticks_total",
			Help:      "Total number of generated vital samples",
		}),
		VitalAlerts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "vital_alerts_total",
			Help:      "Total number of threshold crossings",
		}, []string{"vital"}),
		VitalHistorySize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "vital_history_size",
			Help:      "Current number of samples in the history buffer",
		}),
		AlertSinkDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alert_sink_dropped_total",
			Help:      "Alerts dropped because the sink queue was full",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "vital_tick_duration_seconds",
			Help:      "Time spent producing and evaluating one sample",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		RepositoryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "repository_requests_total",
			Help:      "Total number of entity repository calls",
		}, []string{"operation", "status"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// New registers metrics with the default registerer.
func New(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace, "")
}

// NewForTest registers metrics with a throwaway registry.
func NewForTest() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "test", "")
}
