// Package observability provides the Prometheus-backed metrics collector for
// the extraction service. The collector satisfies core.MetricsCollector and
// owns its own registry so tests can create collectors freely without
// duplicate-registration panics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request and upstream metrics to Prometheus.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
	upstreamCallsTotal     *prometheus.CounterVec
	upstreamLatencySeconds *prometheus.HistogramVec
	buildInfo              *prometheus.GaugeVec
}

// NewCollector creates a Collector with its own registry, including the
// standard Go runtime and process collectors. The version label is exposed
// on the bioclim_build_info gauge.
func NewCollector(version string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		requestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status"},
		),
		upstreamCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_calls_total",
				Help: "Calls to the remote sampling platform by outcome.",
			},
			[]string{"upstream", "outcome"},
		),
		upstreamLatencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_latency_seconds",
				Help:    "Latency of upstream calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"upstream", "outcome"},
		),
		buildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bioclim_build_info",
				Help: "Build information for the binary.",
			},
			[]string{"version"},
		),
	}

	if version == "" {
		version = "dev"
	}
	c.buildInfo.WithLabelValues(version).Set(1)

	return c
}

// RecordRequest implements core.MetricsCollector.
func (c *Collector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
	c.requestDurationSeconds.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordUpstreamCall implements core.MetricsCollector. Outcome is a low
// cardinality string such as "ok", "error", or "auth_error".
func (c *Collector) RecordUpstreamCall(upstream, outcome string, duration time.Duration) {
	c.upstreamCallsTotal.WithLabelValues(upstream, outcome).Inc()
	c.upstreamLatencySeconds.WithLabelValues(upstream, outcome).Observe(duration.Seconds())
}

// Handler returns the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests that gather metrics
// directly.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
