package health

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout = 3 * time.Second

	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc reports a dependency as healthy by returning nil.
// redis.Healthcheck and db.Healthcheck return this shape.
type CheckFunc func(ctx context.Context) error

// Checks maps a dependency name to its check.
type Checks map[string]CheckFunc

// Response is the aggregated outcome of a check run.
// Failing lists the names of failed checks in order.
type Response struct {
	Checks  map[string]Check `json:"checks,omitempty"`
	Status  string           `json:"status"`
	Failing []string         `json:"failing,omitempty"`
}

// Check is the outcome of one check.
type Check struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

type config struct {
	logger   *slog.Logger
	observer func(name string, err error)
	critical map[string]bool
	timeout  time.Duration
}

// Option configures a check run.
type Option func(*config)

// WithTimeout bounds the whole run. Default: 3s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger logs failing checks at warning level.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver calls fn with the outcome of every check, e.g. to feed a gauge.
func WithObserver(fn func(name string, err error)) Option {
	return func(c *config) {
		c.observer = fn
	}
}

// WithCritical marks the checks whose failure makes the run unhealthy. A failure
// of any other check only degrades it. Without this option every check is critical.
func WithCritical(names ...string) Option {
	return func(c *config) {
		if c.critical == nil {
			c.critical = make(map[string]bool, len(names))
		}
		for _, name := range names {
			c.critical[name] = true
		}
	}
}

func (c *config) isCritical(name string) bool {
	return c.critical == nil || c.critical[name]
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		timeout: defaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Run executes every check in parallel and aggregates the outcome. A check fails
// when it returns an error or does not finish within the timeout. The run is
// unhealthy when a critical check fails and degraded when only others do.
func Run(ctx context.Context, checks Checks, opts ...Option) *Response {
	cfg := newConfig(opts...)
	return run(ctx, checks, cfg)
}

func run(ctx context.Context, checks Checks, cfg *config) *Response {
	if len(checks) == 0 {
		return &Response{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[string]Check, len(checks))
		status  = StatusHealthy
		failing []string
	)

	for name, check := range checks {
		g.Go(func() error {
			start := time.Now()
			err := check(ctx)
			result := Check{Status: StatusHealthy, Latency: time.Since(start).Round(time.Microsecond).String()}

			if err != nil {
				result.Status = StatusUnhealthy
				result.Error = err.Error()
				cfg.logger.WarnContext(ctx, "health check failed",
					slog.String("check", name),
					slog.Any("error", err),
				)
			}
			if cfg.observer != nil {
				cfg.observer(name, err)
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = result
			if err == nil {
				return nil
			}
			failing = append(failing, name)
			switch {
			case cfg.isCritical(name):
				status = StatusUnhealthy
			case status == StatusHealthy:
				status = StatusDegraded
			}
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(failing)

	return &Response{Status: status, Checks: results, Failing: failing}
}
