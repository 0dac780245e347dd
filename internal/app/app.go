// Package app wires the service together: store connections, queues, the rate
// limiter and the schedule manager, plus the ops HTTP server and its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/beenruuu/mentha/internal/config"
	"github.com/beenruuu/mentha/pkg/db"
	"github.com/beenruuu/mentha/pkg/health"
	"github.com/beenruuu/mentha/pkg/logger"
	"github.com/beenruuu/mentha/pkg/metrics"
	"github.com/beenruuu/mentha/pkg/queue"
	"github.com/beenruuu/mentha/pkg/ratelimit"
	"github.com/beenruuu/mentha/pkg/redis"
	"github.com/beenruuu/mentha/pkg/schedule"
)

// Default server timeouts.
const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second

	sentryFlushTimeout = 2 * time.Second
)

// ErrStartup is returned by New when a required dependency cannot be set up.
var ErrStartup = errors.New("app: startup failed")

// App owns every long-lived component of the service.
// Build it with New and release it with Close (Run closes it on exit).
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	conn     *redis.Conn
	pool     *pgxpool.Pool
	prom     *prometheus.Registry
	metrics  *metrics.Metrics
	registry *queue.Registry
	limiter  *ratelimit.Limiter
	manager  *schedule.Manager
	source   schedule.Source
	checks   health.Checks
	router   http.Handler

	shutdownHooks []func(context.Context) error
	closeOnce     sync.Once
	closeErr      error
}

// Option configures the App.
type Option func(*App)

// WithLogger replaces the logger built from configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRedisClient uses an already connected client instead of dialing REDIS_URL.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(a *App) {
		if client != nil {
			a.conn = redis.FromClient(client)
		}
	}
}

// WithSource replaces the keyword source chosen from configuration.
func WithSource(src schedule.Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// WithPrometheus registers metrics on reg instead of a fresh registry.
func WithPrometheus(reg *prometheus.Registry) Option {
	return func(a *App) {
		a.prom = reg
	}
}

// New connects to the stores and builds every component. Nothing is started;
// call Run to serve, or use the accessors for one-shot commands.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = logger.NewWithSentry(cfg.Sentry, logger.ParseLevel(cfg.LogLevel), logger.DefaultExtractors()...)
		a.shutdownHooks = append(a.shutdownHooks, logger.FlushSentry(sentryFlushTimeout))
	}
	a.logger = a.logger.With(slog.String("env", cfg.Env))

	if a.prom == nil {
		a.prom = prometheus.NewRegistry()
		a.prom.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	a.metrics = metrics.New(a.prom)

	client, err := a.connect(ctx)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	if err := a.build(client); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	a.router = a.routes()
	return a, nil
}

func (a *App) connect(ctx context.Context) (goredis.UniversalClient, error) {
	if a.conn == nil {
		r := a.cfg.Redis
		a.conn = redis.NewConn(r.URL,
			redis.WithPoolSize(r.PoolSize),
			redis.WithMinIdleConns(r.MinIdleConns),
			redis.WithRetry(r.RetryAttempts, r.RetryStep, r.RetryCap),
			redis.WithReadTimeout(r.ReadTimeout),
			redis.WithWriteTimeout(r.WriteTimeout),
			redis.WithLogger(a.logger),
		)
	}
	// An unreachable store is not fatal: the client redials per command and
	// readiness reports the store down until it answers.
	client, err := a.conn.Connect(ctx)
	if client == nil {
		return nil, errors.Join(ErrStartup, err)
	}
	a.metrics.SetStoreUp(err == nil)
	a.checks = health.Checks{storeCheck: a.conn.Healthcheck()}

	if a.cfg.Database.Enabled() {
		pool, err := db.Connect(ctx, a.cfg.Database)
		if err != nil {
			_ = a.conn.Close()
			return nil, errors.Join(ErrStartup, err)
		}
		a.pool = pool
		a.checks["database"] = db.Healthcheck(pool)
	}

	// Closed in reverse order of creation: queues, redis, database, sentry.
	hooks := []func(context.Context) error{redis.Shutdown(a.conn)}
	if a.pool != nil {
		hooks = append(hooks, db.Shutdown(a.pool))
	}
	a.shutdownHooks = append(hooks, a.shutdownHooks...)
	return client, nil
}

func (a *App) build(client goredis.UniversalClient) error {
	a.registry = queue.NewRegistry(client,
		queue.WithPrefix(a.cfg.Queue.Prefix),
		queue.WithLogger(a.logger),
		queue.WithMetrics(a.metrics),
	)
	a.shutdownHooks = append([]func(context.Context) error{a.registry.Shutdown()}, a.shutdownHooks...)

	api, scan := ratelimit.API, ratelimit.Scan
	api.Limit, api.Window = a.cfg.Limits.APIMax, a.cfg.Limits.APIWindow
	scan.Limit, scan.Window = a.cfg.Limits.ScanMax, a.cfg.Limits.ScanWindow

	limiter, err := ratelimit.New(client,
		ratelimit.WithLogger(a.logger),
		ratelimit.WithMetrics(a.metrics),
		ratelimit.WithClass(api),
		ratelimit.WithClass(scan),
		ratelimit.WithQuotaCacheTTL(a.cfg.Limits.QuotaCacheTTL),
	)
	if err != nil {
		return errors.Join(ErrStartup, err)
	}
	a.limiter = limiter

	q, err := a.registry.Queue(queue.Scheduled)
	if err != nil {
		return errors.Join(ErrStartup, err)
	}
	s := a.cfg.Scheduler
	a.manager = schedule.NewManager(q,
		schedule.WithLogger(a.logger),
		schedule.WithMetrics(a.metrics),
		schedule.WithMaxJitter(s.MaxJitter()),
		schedule.WithResyncRate(s.ResyncRate),
		schedule.WithResyncConcurrency(s.ResyncConcurrency),
	)

	if a.source == nil {
		a.source = a.defaultSource()
	}
	return nil
}

func (a *App) defaultSource() schedule.Source {
	switch {
	case a.pool != nil:
		return schedule.NewPostgresSource(a.pool)
	case a.cfg.Scheduler.KeywordsFile != "":
		return schedule.NewFileSource(a.cfg.Scheduler.KeywordsFile)
	default:
		a.logger.Warn("no keyword source configured, resync installs nothing")
		return schedule.StaticSource(nil)
	}
}

// Logger returns the service logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Registry returns the queue registry.
func (a *App) Registry() *queue.Registry { return a.registry }

// Limiter returns the rate limiter and quota service.
func (a *App) Limiter() *ratelimit.Limiter { return a.limiter }

// Manager returns the recurring schedule manager.
func (a *App) Manager() *schedule.Manager { return a.manager }

// Handler returns the ops HTTP handler.
func (a *App) Handler() http.Handler { return a.router }

// Resync reinstalls the schedule of every active keyword from the configured source.
func (a *App) Resync(ctx context.Context) (*schedule.Report, error) {
	report, err := a.manager.ResyncAll(ctx, a.source)
	if err != nil {
		return report, fmt.Errorf("app: resync: %w", err)
	}
	return report, nil
}

// Close runs the shutdown hooks once, in order, and joins their errors.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		for _, hook := range a.shutdownHooks {
			if err := hook(ctx); err != nil {
				errs = append(errs, err)
				a.logger.Error("shutdown hook failed", slog.Any("error", err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
