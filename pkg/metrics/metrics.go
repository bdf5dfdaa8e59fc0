package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	EventsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskpulse_events_applied_total",
			Help: "Total number of lifecycle events applied to aggregator state",
		},
	)

	CommandsHandledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskpulse_commands_handled_total",
			Help: "Total number of subscription commands handled",
		},
	)

	EventDrainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskpulse_event_drain_duration_seconds",
			Help:    "Time taken to drain the currently queued events in one loop iteration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Publisher metrics
	PublishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskpulse_publishes_total",
			Help: "Total number of publish ticks that delivered a TaskUpdate",
		},
	)

	PublishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskpulse_publish_duration_seconds",
			Help:    "Time taken to build and deliver one publish tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushTriggersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskpulse_flush_triggers_total",
			Help: "Total number of edge-triggered flush signals observed",
		},
	)

	WatchersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskpulse_watchers_active",
			Help: "Number of currently subscribed global task watchers",
		},
	)

	DetailWatchersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskpulse_detail_watchers_active",
			Help: "Number of currently subscribed per-task detail watchers",
		},
	)

	// Retention metrics
	TasksLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskpulse_tasks_live",
			Help: "Number of tasks currently retained in aggregator state",
		},
	)

	TasksEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskpulse_tasks_evicted_total",
			Help: "Total number of closed tasks dropped by retention GC",
		},
	)

	// Transport metrics
	GRPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpulse_grpc_requests_total",
			Help: "Total number of gRPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	GRPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskpulse_grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(EventsAppliedTotal)
	prometheus.MustRegister(CommandsHandledTotal)
	prometheus.MustRegister(EventDrainDuration)
	prometheus.MustRegister(PublishesTotal)
	prometheus.MustRegister(PublishDuration)
	prometheus.MustRegister(FlushTriggersTotal)
	prometheus.MustRegister(WatchersActive)
	prometheus.MustRegister(DetailWatchersActive)
	prometheus.MustRegister(TasksLive)
	prometheus.MustRegister(TasksEvictedTotal)
	prometheus.MustRegister(GRPCRequestsTotal)
	prometheus.MustRegister(GRPCRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
