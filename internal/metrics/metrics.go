// Package metrics exposes Prometheus collectors for the render pipeline and
// the HTTP layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nbrender/internal/domain"
)

type Recorder struct {
	registry        *prometheus.Registry
	stageDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	htmlSize        prometheus.Histogram
	activeRequests  prometheus.Gauge
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
}

// NewRecorder registers all collectors on a fresh registry, so several
// recorders can coexist in one process.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nbrender_stage_duration_seconds",
				Help:    "Time spent in each render pipeline stage",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"stage", "outcome"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbrender_stage_failures_total",
				Help: "Total number of pipeline failures by stage",
			},
			[]string{"stage"},
		),
		htmlSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nbrender_html_size_bytes",
				Help:    "Size of rendered HTML documents in bytes",
				Buckets: []float64{1e3, 1e4, 1e5, 1e6, 1e7, 5e7},
			},
		),
		activeRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nbrender_active_requests",
				Help: "Number of requests currently being processed",
			},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nbrender_request_duration_seconds",
				Help:    "Time taken to process HTTP requests",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 25},
			},
			[]string{"path"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbrender_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"path", "status_code"},
		),
	}
}

func (m *Recorder) ObserveStage(stage domain.Stage, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.stageFailures.WithLabelValues(string(stage)).Inc()
	}
	m.stageDuration.WithLabelValues(string(stage), outcome).Observe(d.Seconds())
}

func (m *Recorder) ObserveHTMLSize(n int) {
	m.htmlSize.Observe(float64(n))
}

func (m *Recorder) IncreaseActiveRequests() {
	m.activeRequests.Inc()
}

func (m *Recorder) DecreaseActiveRequests() {
	m.activeRequests.Dec()
}

func (m *Recorder) ObserveRequest(path, statusCode string, d time.Duration) {
	m.requestDuration.WithLabelValues(path).Observe(d.Seconds())
	m.requestsTotal.WithLabelValues(path, statusCode).Inc()
}

// Registry returns the registry holding the recorder's collectors.
func (m *Recorder) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
