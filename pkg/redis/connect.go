package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Option configures a Redis connection.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	poolSize      int
	minIdleConns  int
	maxIdleTime   time.Duration
	maxActiveTime time.Duration
	retryAttempts int
	retryStep     time.Duration
	retryCap      time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration
	dialTimeout   time.Duration
}

func defaultOptions() *options {
	return &options{
		poolSize:      10,
		minIdleConns:  2,
		maxIdleTime:   10 * time.Minute,
		maxActiveTime: 30 * time.Minute,
		retryAttempts: 10,
		retryStep:     100 * time.Millisecond,
		retryCap:      3 * time.Second,
		readTimeout:   3 * time.Second,
		writeTimeout:  3 * time.Second,
		dialTimeout:   5 * time.Second,
	}
}

// WithPoolSize sets the maximum number of connections in the pool.
// Default: 10
func WithPoolSize(n int) Option {
	return func(o *options) {
		o.poolSize = n
	}
}

// WithMinIdleConns sets the minimum number of idle connections kept open.
// Default: 2
func WithMinIdleConns(n int) Option {
	return func(o *options) {
		o.minIdleConns = n
	}
}

// WithMaxIdleTime sets the maximum time a connection can be idle before being closed.
// Default: 10 minutes
func WithMaxIdleTime(d time.Duration) Option {
	return func(o *options) {
		o.maxIdleTime = d
	}
}

// WithMaxActiveTime sets the maximum lifetime of a connection.
// Default: 30 minutes
func WithMaxActiveTime(d time.Duration) Option {
	return func(o *options) {
		o.maxActiveTime = d
	}
}

// WithRetry configures connection retry behavior.
// The wait before attempt n+1 is min(n*step, cap).
// Default: 10 attempts, 100ms step, 3s cap.
func WithRetry(attempts int, step, cap time.Duration) Option {
	return func(o *options) {
		o.retryAttempts = attempts
		o.retryStep = step
		o.retryCap = cap
	}
}

// WithReadTimeout sets the timeout for read operations.
// Default: 3 seconds
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// WithWriteTimeout sets the timeout for write operations.
// Default: 3 seconds
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithDialTimeout sets the timeout for establishing new connections.
// Default: 5 seconds
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithLogger sets the logger used for connection state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Open creates a Redis client with sensible defaults.
// Supports both redis:// and rediss:// (TLS) URL schemes.
//
// Example:
//
//	client, err := redis.Open(ctx, "redis://localhost:6379/0",
//	    redis.WithPoolSize(20),
//	    redis.WithRetry(5, 200*time.Millisecond, 3*time.Second),
//	)
func Open(ctx context.Context, url string, opts ...Option) (redis.UniversalClient, error) {
	redisOpts, o, err := parse(url, opts...)
	if err != nil {
		return nil, err
	}
	return connect(ctx, redisOpts, o)
}

// MustOpen creates a Redis client or exits on failure.
// Use for simple tools where startup failure is fatal.
func MustOpen(ctx context.Context, url string, opts ...Option) redis.UniversalClient {
	client, err := Open(ctx, url, opts...)
	if err != nil {
		slog.Error("failed to open redis connection", "error", err)
		os.Exit(1)
	}
	return client
}

func parse(url string, opts ...Option) (*redis.Options, *options, error) {
	if url == "" {
		return nil, nil, ErrEmptyConnectionURL
	}

	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, nil, ErrFailedToParseURL
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, errors.Join(ErrFailedToParseURL, err)
	}

	redisOpts.PoolSize = o.poolSize
	redisOpts.MinIdleConns = o.minIdleConns
	redisOpts.ConnMaxIdleTime = o.maxIdleTime
	redisOpts.ConnMaxLifetime = o.maxActiveTime
	redisOpts.ReadTimeout = o.readTimeout
	redisOpts.WriteTimeout = o.writeTimeout
	redisOpts.DialTimeout = o.dialTimeout
	redisOpts.ContextTimeoutEnabled = true

	// Per-command reconnects use the same capped policy as the startup loop.
	redisOpts.MaxRetries = o.retryAttempts
	redisOpts.MinRetryBackoff = o.retryStep
	redisOpts.MaxRetryBackoff = o.retryCap

	return redisOpts, o, nil
}

// connect establishes a connection with a bounded, capped backoff.
func connect(ctx context.Context, opts *redis.Options, o *options) (redis.UniversalClient, error) {
	attempts := max(o.retryAttempts, 1)
	log := o.logger.With(slog.String("addr", opts.Addr))

	var lastErr error
	for i := range attempts {
		client := redis.NewClient(opts)

		err := client.Ping(ctx).Err()
		if err == nil {
			log.InfoContext(ctx, "redis connected", slog.Int("attempt", i+1))
			return client, nil
		}
		_ = client.Close()
		lastErr = err

		if i == attempts-1 {
			break
		}

		delay := backoff(i+1, o.retryStep, o.retryCap)
		log.WarnContext(ctx, "redis connection failed, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.Any("error", err),
		)

		if waitErr := wait(ctx, delay); waitErr != nil {
			return nil, errors.Join(ErrConnectionFailed, waitErr)
		}
	}

	log.ErrorContext(ctx, "redis connection gave up",
		slog.Int("attempts", attempts),
		slog.Any("error", lastErr),
	)
	return nil, errors.Join(ErrConnectionFailed, lastErr)
}

// backoff returns min(attempt*step, cap).
func backoff(attempt int, step, cap time.Duration) time.Duration {
	d := time.Duration(attempt) * step
	if cap > 0 && d > cap {
		return cap
	}
	return d
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
