// Package metrics exposes report generation counters in the prometheus
// text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	reports  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acta",
			Name:      "reports_generated_total",
			Help:      "Reports written, by protocol.",
		}, []string{"protocol"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acta",
			Name:      "report_failures_total",
			Help:      "Failed report generations, by protocol and pipeline stage.",
		}, []string{"protocol", "stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "acta",
			Name:      "report_duration_seconds",
			Help:      "Time spent generating a report.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"protocol"}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.reports, m.failures, m.duration,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Succeeded(protocol string, took time.Duration) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(protocol).Inc()
	m.duration.WithLabelValues(protocol).Observe(took.Seconds())
}

func (m *Metrics) Failed(protocol, stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(protocol, stage).Inc()
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
