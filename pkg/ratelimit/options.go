package ratelimit

import (
	"log/slog"
	"time"

	"github.com/beenruuu/mentha/pkg/metrics"
)

const quotaPrefix = "quota:custom"

type options struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
	classes       map[ClassName]Class
	quotaPrefix   string
	quotaCacheTTL time.Duration
}

func defaultOptions() *options {
	return &options{
		now:         time.Now,
		quotaPrefix: quotaPrefix,
		classes: map[ClassName]Class{
			ClassAPI:  API,
			ClassScan: Scan,
		},
	}
}

// Option configures the Limiter.
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

// WithClass registers a class or replaces the class with the same name.
// Invalid classes are reported by New.
//
// Example:
//
//	api := ratelimit.API
//	api.Limit = 120
//	limiter, err := ratelimit.New(client, ratelimit.WithClass(api))
func WithClass(c Class) Option {
	return func(o *options) {
		o.classes[c.Name] = c
	}
}

// WithQuotaPrefix sets the key prefix of custom quotas. Default: "quota:custom".
func WithQuotaPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.quotaPrefix = prefix
		}
	}
}

// WithQuotaCacheTTL keeps resolved quotas in process memory for d. Quota changes made
// by another process become visible after at most d. Default: 0 (always read Redis).
func WithQuotaCacheTTL(d time.Duration) Option {
	return func(o *options) {
		o.quotaCacheTTL = max(d, 0)
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
