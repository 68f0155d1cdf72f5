package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/njchilds90/symcanon"
)

// Metrics holds the server's Prometheus collectors. Each instance owns its
// registry so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ToolCalls       *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
	RateLimited     prometheus.Counter
}

// NewMetrics registers the HTTP, tool and canonicalizer collectors. The
// canonicalizer gauges read whichever Canonicalizer is the default at scrape
// time.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symcanon_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symcanon_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symcanon_tool_calls_total",
				Help: "Tool calls by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symcanon_tool_duration_seconds",
				Help:    "Tool execution latency",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"tool"},
		),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "symcanon_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}

	stat := func(name, help string, read func(symcanon.Stats) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return read(symcanon.Default().Stats())
		})
	}
	stat("symcanon_canonicalizer_passes", "Rewrite passes run by the default canonicalizer",
		func(s symcanon.Stats) float64 { return float64(s.Passes) })
	stat("symcanon_canonicalizer_cache_hits", "Normal-form cache hits",
		func(s symcanon.Stats) float64 { return float64(s.CacheHits) })
	stat("symcanon_canonicalizer_cache_misses", "Normal-form cache misses",
		func(s symcanon.Stats) float64 { return float64(s.CacheMisses) })
	stat("symcanon_canonicalizer_cache_entries", "Normal-form cache size",
		func(s symcanon.Stats) float64 { return float64(s.CacheEntries) })

	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordToolCall records one tool execution; outcome is "ok" or "error".
func (m *Metrics) RecordToolCall(tool, outcome string, d time.Duration) {
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
