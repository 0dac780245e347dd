package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beenruuu/mentha/pkg/metrics"
)

const defaultPrefix = "mentha"

// registryConfig holds registry configuration shared by every queue it creates.
type registryConfig struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	priorities map[Name]int
	prefix     string
	defaults   Options
}

// RegistryOption configures the registry.
type RegistryOption func(*registryConfig)

// WithPrefix sets the key prefix of every queue. Default: "mentha".
func WithPrefix(prefix string) RegistryOption {
	return func(c *registryConfig) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLogger sets the logger. If not set, a noop logger is used.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(c *registryConfig) {
		c.metrics = m
	}
}

// WithDefaults adjusts the default job options of every queue.
//
// Example:
//
//	queue.NewRegistry(client, queue.WithDefaults(queue.MaxAttempts(5)))
func WithDefaults(opts ...EnqueueOption) RegistryOption {
	return func(c *registryConfig) {
		for _, opt := range opts {
			opt(&c.defaults)
		}
	}
}

// WithQueuePriority sets the default priority of jobs in one queue.
// Callers can still override it per job with Priority.
func WithQueuePriority(name Name, priority int) RegistryOption {
	return func(c *registryConfig) {
		c.priorities[name] = priority
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(c *registryConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// Registry creates each named queue once and hands out the cached handle.
// Build one per process at startup and pass it to every consumer.
type Registry struct {
	client redis.UniversalClient
	cfg    *registryConfig

	mu     sync.Mutex
	queues map[Name]*Queue
	closed bool
}

// NewRegistry creates a registry over the shared Redis client.
// Scan jobs default to normal priority, notifications to low priority.
func NewRegistry(client redis.UniversalClient, opts ...RegistryOption) *Registry {
	cfg := &registryConfig{
		prefix:   defaultPrefix,
		defaults: DefaultOptions(),
		now:      time.Now,
		priorities: map[Name]int{
			Scrapers:      PriorityNormal,
			Notifications: PriorityLow,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Registry{
		client: client,
		cfg:    cfg,
		queues: make(map[Name]*Queue),
	}
}

// Queue returns the queue for name, creating it on first use.
func (r *Registry) Queue(name Name) (*Queue, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrQueueClosed
	}
	if q, ok := r.queues[name]; ok {
		return q, nil
	}

	q := newQueue(r.client, name, r.cfg)
	r.queues[name] = q
	r.cfg.logger.Debug("queue created", slog.String("queue", string(name)))
	return q, nil
}

// Enqueue adds a job of jobType to the named queue and returns its handle.
// A store failure is returned as is; nothing is buffered for a later retry.
func (r *Registry) Enqueue(ctx context.Context, name Name, jobType string, payload any, opts ...EnqueueOption) (*Job, error) {
	q, err := r.Queue(name)
	if err != nil {
		return nil, err
	}
	return q.Add(ctx, jobType, payload, opts...)
}

// PromoteDue runs Queue.PromoteDue on every queue and returns the total promoted.
func (r *Registry) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, name := range Names() {
		q, err := r.Queue(name)
		if err != nil {
			return total, err
		}
		n, err := q.PromoteDue(ctx, now)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// Close closes every cached queue. Queue returns ErrQueueClosed afterwards.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	queues := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for _, q := range queues {
			if err := q.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		r.cfg.logger.Info("queue registry closed", slog.Int("queues", len(queues)))
		return err
	case <-ctx.Done():
		return fmt.Errorf("queue: close: %w", ctx.Err())
	}
}

// Shutdown returns a shutdown hook for the registry.
func (r *Registry) Shutdown() func(context.Context) error {
	return r.Close
}
