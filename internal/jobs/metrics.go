package jobmetrics

import (
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Job outcomes as exported in the status label.
const (
	StatusSuccess = "success"
	StatusRetry   = "retry"
	StatusDropped = "dropped"
)

// Metrics holds the worker-side collectors.
type Metrics struct {
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	strategies *prometheus.CounterVec
	clamped    prometheus.Counter
}

// NewMetrics registers the collectors on registerer, or on a private
// registry when registerer is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_jobs_total",
			Help: "Job executions by task type and outcome.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backoffice_job_duration_seconds",
			Help:    "Job execution time in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_stock_reconcile_strategy_total",
			Help: "Completed stock reconciliations by the strategy that succeeded.",
		}, []string{"strategy"}),
		clamped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_stock_clamped_total",
			Help: "Direct quant adjustments clamped at zero.",
		}),
	}
	registerer.MustRegister(m.runs, m.duration, m.strategies, m.clamped)
	return m
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job. A nil Metrics yields a no-op tracker.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged. Errors
// wrapping asynq.SkipRetry count as dropped.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	t.metrics.runs.WithLabelValues(t.job, Outcome(err)).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// Outcome maps a handler error to its status label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, asynq.SkipRetry):
		return StatusDropped
	default:
		return StatusRetry
	}
}

// AddStrategy counts a reconciliation finished by strategy.
func (m *Metrics) AddStrategy(strategy string) {
	if m == nil || strategy == "" {
		return
	}
	m.strategies.WithLabelValues(strategy).Inc()
}

// AddClamped counts quant writes that would have driven stock negative.
func (m *Metrics) AddClamped(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.clamped.Add(float64(count))
}
