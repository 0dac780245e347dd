// Package metrics holds the Prometheus collectors shared by the queue, schedule and
// rate limit packages. Every method is safe to call on a nil *Metrics, so components
// can run without instrumentation.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all collectors.
	Namespace = "mentha"

	subsystemQueue     = "queue"
	subsystemSchedule  = "schedule"
	subsystemRateLimit = "ratelimit"
	subsystemStore     = "store"
)

// Metrics holds all collectors.
type Metrics struct {
	JobsEnqueued  *prometheus.CounterVec
	EnqueueErrors *prometheus.CounterVec
	JobsPromoted  *prometheus.CounterVec

	ScheduleOps     *prometheus.CounterVec
	SchedulesActive prometheus.Gauge

	RateLimitDecisions *prometheus.CounterVec

	StoreUp prometheus.Gauge
}

// New creates and registers all collectors on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initQueueMetrics(factory)
	m.initScheduleMetrics(factory)

	m.RateLimitDecisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemRateLimit,
			Name:      "decisions_total",
			Help:      "Rate limit decisions by class and outcome",
		},
		[]string{"class", "allowed"},
	)

	m.StoreUp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemStore,
			Name:      "up",
			Help:      "1 when the backing store answered the last ping",
		},
	)

	return m
}

func (m *Metrics) initQueueMetrics(factory promauto.Factory) {
	m.JobsEnqueued = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemQueue,
			Name:      "jobs_enqueued_total",
			Help:      "Jobs accepted by a queue",
		},
		[]string{"queue", "type"},
	)

	m.EnqueueErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemQueue,
			Name:      "enqueue_errors_total",
			Help:      "Enqueue attempts rejected by the store",
		},
		[]string{"queue"},
	)

	m.JobsPromoted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemQueue,
			Name:      "jobs_promoted_total",
			Help:      "Delayed and repeating jobs made ready for workers",
		},
		[]string{"queue"},
	)
}

func (m *Metrics) initScheduleMetrics(factory promauto.Factory) {
	m.ScheduleOps = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemSchedule,
			Name:      "operations_total",
			Help:      "Schedule operations by kind and result",
		},
		[]string{"op", "result"},
	)

	m.SchedulesActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemSchedule,
			Name:      "active",
			Help:      "Repeating jobs currently installed",
		},
	)
}

// JobEnqueued counts an accepted job.
func (m *Metrics) JobEnqueued(queue, jobType string) {
	if m == nil {
		return
	}
	m.JobsEnqueued.WithLabelValues(queue, jobType).Inc()
}

// EnqueueFailed counts a store failure on enqueue.
func (m *Metrics) EnqueueFailed(queue string) {
	if m == nil {
		return
	}
	m.EnqueueErrors.WithLabelValues(queue).Inc()
}

// Promoted adds n promoted jobs for queue.
func (m *Metrics) Promoted(queue string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JobsPromoted.WithLabelValues(queue).Add(float64(n))
}

// ScheduleOp counts a schedule operation. result is "ok", "noop", "partial" or "error".
func (m *Metrics) ScheduleOp(op, result string) {
	if m == nil {
		return
	}
	m.ScheduleOps.WithLabelValues(op, result).Inc()
}

// SetSchedulesActive records the number of installed repeating jobs.
func (m *Metrics) SetSchedulesActive(n int) {
	if m == nil {
		return
	}
	m.SchedulesActive.Set(float64(n))
}

// RateLimitDecision counts an allow/deny outcome.
func (m *Metrics) RateLimitDecision(class string, allowed bool) {
	if m == nil {
		return
	}
	m.RateLimitDecisions.WithLabelValues(class, strconv.FormatBool(allowed)).Inc()
}

// SetStoreUp records the last ping outcome.
func (m *Metrics) SetStoreUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.StoreUp.Set(1)
		return
	}
	m.StoreUp.Set(0)
}
