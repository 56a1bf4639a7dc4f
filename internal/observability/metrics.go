package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modaboutique/backoffice/internal/erp"
	jobmetrics "github.com/modaboutique/backoffice/internal/jobs"
)

// Metrics collects the Prometheus metrics of the gateway.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	erpCalls         *prometheus.CounterVec
	erpDuration      *prometheus.HistogramVec
	fallbackAttempts *prometheus.CounterVec
	jobs             *jobmetrics.Metrics
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	erpCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_erp_calls_total",
		Help: "ERP object calls by model, method and outcome.",
	}, []string{"model", "method", "outcome"})
	erpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_erp_call_duration_seconds",
		Help:    "ERP object call latency per model.",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"model"})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_fallback_attempts_total",
		Help: "Fallback strategy attempts by chain, strategy and outcome.",
	}, []string{"chain", "strategy", "outcome"})
	registry.MustRegister(requests, duration, erpCalls, erpDuration, fallbacks)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		erpCalls:         erpCalls,
		erpDuration:      erpDuration,
		fallbackAttempts: fallbacks,
		jobs:             jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveCall implements erp.Observer.
func (m *Metrics) ObserveCall(model, method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.erpCalls.WithLabelValues(model, method, callOutcome(err)).Inc()
	m.erpDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// RecordAttempt implements fallback.Recorder.
func (m *Metrics) RecordAttempt(chain, strategy, outcome string) {
	if m == nil {
		return
	}
	m.fallbackAttempts.WithLabelValues(chain, strategy, outcome).Inc()
}

// Jobs exposes the background job collectors.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func callOutcome(err error) string {
	var remote *erp.RemoteError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, erp.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, erp.ErrUnavailable):
		return "unavailable"
	case errors.As(err, &remote):
		return "remote_error"
	}
	return "error"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
