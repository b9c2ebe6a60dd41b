// Package metrics exposes tracker and fetcher counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/chapterwatch/models"
)

// Namespace prefixes every metric.
const Namespace = "chapterwatch"

// Metrics holds the collectors and the registry they live in.
type Metrics struct {
	Registry *prometheus.Registry

	SeriesTotal         *prometheus.CounterVec
	FetchAttemptsTotal  *prometheus.CounterVec
	FetchDuration       *prometheus.HistogramVec
	RunDurationSeconds  prometheus.Histogram
	RunsCurrentlyActive prometheus.Gauge
}

// New creates the metrics on a private registry, so tests and multiple
// trackers never collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SeriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "series_total",
				Help:      "Series processed, by decision status",
			},
			[]string{"status"},
		),
		FetchAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetch_attempts_total",
				Help:      "Engine attempts, by engine and outcome",
			},
			[]string{"engine", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of a single engine attempt in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s to 64s
			},
			[]string{"engine"},
		),
		RunDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a full tracking run in seconds",
				Buckets:   prometheus.ExponentialBuckets(5, 2, 10), // 5s to ~43min
			},
		),
		RunsCurrentlyActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "runs_active",
				Help:      "Number of runs in progress",
			},
		),
	}
}

// ObserveAttempt matches engine.Observer.
func (m *Metrics) ObserveAttempt(engineName, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchAttemptsTotal.WithLabelValues(engineName, outcome).Inc()
	m.FetchDuration.WithLabelValues(engineName).Observe(d.Seconds())
}

// ObserveSeries counts one processed series.
func (m *Metrics) ObserveSeries(status models.Status) {
	if m == nil {
		return
	}
	m.SeriesTotal.WithLabelValues(string(status)).Inc()
}

// RunStarted marks a run as active and returns the function that ends it.
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.RunsCurrentlyActive.Inc()
	return func() {
		m.RunsCurrentlyActive.Dec()
		m.RunDurationSeconds.Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
