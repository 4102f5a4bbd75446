package process

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values recorded by Metrics.ProcessFinished.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeError   = "error"
	OutcomeAborted = "aborted"
)

// Metrics observes process lifecycle events. A nil Metrics disables
// collection.
type Metrics interface {
	ProcessStarted(command string)
	ProcessFinished(command, outcome string, duration time.Duration)
}

// PrometheusMetrics implements Metrics with Prometheus collectors.
type PrometheusMetrics struct {
	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the process collectors and registers them
// with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smbshare",
			Subsystem: "process",
			Name:      "started_total",
			Help:      "External commands launched.",
		}, []string{"command"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smbshare",
			Subsystem: "process",
			Name:      "finished_total",
			Help:      "External commands finished, by outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smbshare",
			Subsystem: "process",
			Name:      "duration_seconds",
			Help:      "Wall-clock run time of external commands.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"command"}),
	}
	reg.MustRegister(m.started, m.finished, m.duration)
	return m
}

func (m *PrometheusMetrics) ProcessStarted(command string) {
	m.started.WithLabelValues(command).Inc()
}

func (m *PrometheusMetrics) ProcessFinished(command, outcome string, duration time.Duration) {
	m.finished.WithLabelValues(command, outcome).Inc()
	m.duration.WithLabelValues(command).Observe(duration.Seconds())
}

// Compile-time interface check.
var _ Metrics = (*PrometheusMetrics)(nil)
