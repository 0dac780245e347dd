package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Conn owns the single shared Redis client used by the queues and the rate limiter.
// The client is created on the first call to Client and reused afterwards.
type Conn struct {
	url  string
	opts []Option

	mu     sync.Mutex
	client redis.UniversalClient
	closed bool
	log    *slog.Logger
}

// NewConn prepares a lazily connected handle. No network call is made until Client.
func NewConn(url string, opts ...Option) *Conn {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	c := &Conn{url: url, opts: opts, log: o.logger}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// FromClient wraps an already connected client.
func FromClient(client redis.UniversalClient) *Conn {
	return &Conn{client: client, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Client returns the shared client, connecting on first use.
// A failed attempt leaves the handle unconnected so the next call retries.
func (c *Conn) Client(ctx context.Context) (redis.UniversalClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.client != nil {
		return c.client, nil
	}

	client, err := Open(ctx, c.url, c.opts...)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Connect is Client for long-running services. When the startup retry budget is
// exhausted it still installs an unpinged client, which dials again on every command,
// and returns it together with the connect error. Callers run degraded until the
// store answers. Only a closed Conn or an invalid URL yields a nil client.
func (c *Conn) Connect(ctx context.Context) (redis.UniversalClient, error) {
	client, err := c.Client(ctx)
	if err == nil || !errors.Is(err, ErrConnectionFailed) || ctx.Err() != nil {
		return client, err
	}

	redisOpts, _, perr := parse(c.url, c.opts...)
	if perr != nil {
		return nil, perr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.client == nil {
		c.client = redis.NewClient(redisOpts)
		c.log.WarnContext(ctx, "redis unreachable, continuing without a verified connection",
			slog.Any("error", err),
		)
	}
	return c.client, err
}

// Ping reports whether the store answers. False means degraded, not fatal.
func (c *Conn) Ping(ctx context.Context) bool {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return false
	}
	if err := client.Ping(ctx).Err(); err != nil {
		c.log.WarnContext(ctx, "redis ping failed", slog.Any("error", err))
		return false
	}
	return true
}

// Healthcheck adapts Ping to the health check signature.
func (c *Conn) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		c.mu.Lock()
		client := c.client
		c.mu.Unlock()
		return Healthcheck(client)(ctx)
	}
}

// Close releases the client. Calling Close twice is safe.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.log.Info("redis connection closed")
	return err
}
