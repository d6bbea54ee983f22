// Package metric provides Prometheus metrics for webhost-server.
package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webhost"

// Rate limiter decisions.
const (
	DecisionAdmitted = "admitted"
	DecisionQueued   = "queued"
	DecisionGranted  = "granted"
	DecisionRejected = "rejected"
	DecisionTimeout  = "timeout"
	DecisionCanceled = "canceled"
)

// Registry holds all application metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Admission metrics
	RateLimitDecisions  *prometheus.CounterVec
	RateLimitPartitions prometheus.Gauge
	RateLimitQueueWait  prometheus.Histogram
	HostRejections      prometheus.Counter
	CORSPreflights      prometheus.Counter

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Listener metrics
	ListenersBound *prometheus.GaugeVec
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		RateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions by outcome.",
		}, []string{"decision"}),

		RateLimitPartitions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_partitions",
			Help:      "Number of rate limiter partitions held in memory.",
		}),

		RateLimitQueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_queue_wait_seconds",
			Help:      "Time queued requests waited for a permit.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		HostRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_filter_rejections_total",
			Help:      "Requests rejected because the Host header is not allowed.",
		}),

		CORSPreflights: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cors_preflight_requests_total",
			Help:      "CORS preflight requests handled.",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by scheme, method and status code.",
		}, []string{"scheme", "method", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme", "method"}),

		ListenersBound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listeners_bound",
			Help:      "Bound listeners by scheme.",
		}, []string{"scheme"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RateLimitDecisions,
		r.RateLimitPartitions,
		r.RateLimitQueueWait,
		r.HostRejections,
		r.CORSPreflights,
		r.RequestsTotal,
		r.RequestDuration,
		r.ListenersBound,
	)

	return r
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying gatherer, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordRateLimit counts one rate limiter decision.
func (r *Registry) RecordRateLimit(decision string) {
	r.RateLimitDecisions.WithLabelValues(decision).Inc()
}

// ObserveQueueWait records how long a queued request waited, in seconds.
func (r *Registry) ObserveQueueWait(seconds float64) {
	r.RateLimitQueueWait.Observe(seconds)
}

// SetPartitions sets the number of live rate limiter partitions.
func (r *Registry) SetPartitions(n int) {
	r.RateLimitPartitions.Set(float64(n))
}

// IncHostRejected counts a host filter rejection.
func (r *Registry) IncHostRejected() {
	r.HostRejections.Inc()
}

// IncCORSPreflight counts a CORS preflight request.
func (r *Registry) IncCORSPreflight() {
	r.CORSPreflights.Inc()
}

// RecordRequest counts a completed request.
func (r *Registry) RecordRequest(scheme, method, status string) {
	r.RequestsTotal.WithLabelValues(scheme, method, status).Inc()
}

// ObserveRequestDuration records request latency in seconds.
func (r *Registry) ObserveRequestDuration(scheme, method string, seconds float64) {
	r.RequestDuration.WithLabelValues(scheme, method).Observe(seconds)
}

// SetListenersBound records the number of bound listeners for a scheme.
func (r *Registry) SetListenersBound(scheme string, n int) {
	r.ListenersBound.WithLabelValues(scheme).Set(float64(n))
}
