// Package metrics exposes Prometheus collectors for the scheduler, executor
// and session registry. All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector.
const Namespace = "pilobster"

type Metrics struct {
	ticksTotal        *prometheus.CounterVec
	tickDuration      prometheus.Histogram
	schedulerState    prometheus.Gauge
	firesTotal        *prometheus.CounterVec
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	deliveriesTotal   *prometheus.CounterVec
	sessionsAttached  *prometheus.GaugeVec
	jobsReaped        prometheus.Counter
	chatTotal         *prometheus.CounterVec
}

// New creates and registers the collectors on reg (DefaultRegisterer when nil).
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_ticks_total",
				Help:      "Ticks handled by the scheduler loop",
			},
			[]string{"kind"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduler_tick_duration_seconds",
				Help:      "Time spent evaluating and submitting one tick",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		schedulerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_state",
				Help:      "Scheduler loop state: 0=idle, 1=evaluating, 2=awaiting executors",
			},
		),
		firesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_fires_total",
				Help:      "Job fire decisions by outcome",
			},
			[]string{"outcome"},
		),
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_executions_total",
				Help:      "Finished job executions by status",
			},
			[]string{"status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_execution_duration_seconds",
				Help:      "Duration of job executions",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Broadcast deliveries by transport and status",
			},
			[]string{"kind", "status"},
		),
		sessionsAttached: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_attached",
				Help:      "Currently attached sessions by transport",
			},
			[]string{"kind"},
		),
		jobsReaped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_reaped_total",
				Help:      "Disabled jobs removed after the retention window",
			},
		),
		chatTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_requests_total",
				Help:      "Interactive chat requests by transport and status",
			},
			[]string{"kind", "status"},
		),
	}

	reg.MustRegister(
		m.ticksTotal,
		m.tickDuration,
		m.schedulerState,
		m.firesTotal,
		m.executionsTotal,
		m.executionDuration,
		m.deliveriesTotal,
		m.sessionsAttached,
		m.jobsReaped,
		m.chatTotal,
	)

	return m
}

// RecordTick counts a tick; kind is "live", "catch-up" or "stale".
func (m *Metrics) RecordTick(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(kind).Inc()
	if duration > 0 {
		m.tickDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) SetSchedulerState(state int) {
	if m == nil {
		return
	}
	m.schedulerState.Set(float64(state))
}

// RecordFire counts a fire decision: submitted, skipped, duplicate, rejected.
func (m *Metrics) RecordFire(outcome string) {
	if m == nil {
		return
	}
	m.firesTotal.WithLabelValues(outcome).Inc()
}

// RecordExecution counts a finished execution: success, timeout, unavailable, error.
func (m *Metrics) RecordExecution(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(status).Inc()
	m.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDelivery counts one recipient outcome: delivered, retried, failed, stale.
func (m *Metrics) RecordDelivery(kind, status string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) SetSessions(kind string, n int) {
	if m == nil {
		return
	}
	m.sessionsAttached.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) RecordReaped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.jobsReaped.Add(float64(n))
}

func (m *Metrics) RecordChat(kind, status string) {
	if m == nil {
		return
	}
	m.chatTotal.WithLabelValues(kind, status).Inc()
}
