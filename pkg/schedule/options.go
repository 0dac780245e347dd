package schedule

import (
	"log/slog"
	"time"

	"github.com/beenruuu/mentha/pkg/metrics"
)

type options struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	jitter      func(time.Duration) time.Duration
	maxJitter   time.Duration
	resyncRate  float64
	concurrency int
}

func defaultOptions() *options {
	return &options{
		jitter:      Jitter,
		maxJitter:   DefaultMaxJitter,
		resyncRate:  50,
		concurrency: 8,
	}
}

// Option configures the Manager.
type Option func(*options)

// WithLogger sets the logger. If not set, a noop logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMaxJitter sets the upper bound of the random offset. Default: 59 minutes.
// Zero disables jitter.
func WithMaxJitter(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.maxJitter = d
		}
	}
}

// WithJitterFunc replaces the jitter source. Intended for tests.
func WithJitterFunc(fn func(time.Duration) time.Duration) Option {
	return func(o *options) {
		if fn != nil {
			o.jitter = fn
		}
	}
}

// WithResyncRate caps how many keywords per second ResyncAll schedules. Default: 50.
// Zero or negative removes the cap.
func WithResyncRate(perSecond float64) Option {
	return func(o *options) {
		o.resyncRate = perSecond
	}
}

// WithResyncConcurrency sets how many keywords ResyncAll schedules at once. Default: 8.
func WithResyncConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}
