package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/beenruuu/mentha/pkg/cache"
	"github.com/beenruuu/mentha/pkg/logger"
	"github.com/beenruuu/mentha/pkg/metrics"
)

// Decision is the read-only answer of CheckLimit.
type Decision struct {
	ResetAt   time.Time `json:"reset_at"`
	Remaining int       `json:"remaining"`
	Allowed   bool      `json:"allowed"`
}

// Result is the answer of IncrementAndCheck.
type Result struct {
	ResetAt       time.Time `json:"reset_at"`
	Current       int       `json:"current"`
	Limit         int       `json:"limit"`
	Remaining     int       `json:"remaining"`
	Allowed       bool      `json:"allowed"`
	WindowStarted bool      `json:"window_started"`
}

// Usage is the state of one user counter.
type Usage struct {
	ResetAt   time.Time `json:"reset_at"`
	Class     ClassName `json:"class"`
	Current   int       `json:"current"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
}

// Limiter enforces fixed-window limits per user and class. Counters and custom
// quotas live in Redis, so every process sharing the store sees the same state.
type Limiter struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	classes map[ClassName]Class

	quotas     *cache.Redis[int]
	localQuota *cache.Local[int]
	loads      singleflight.Group
}

// New creates a limiter over the shared Redis client.
func New(client redis.UniversalClient, opts ...Option) (*Limiter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	for name, c := range o.classes {
		if !c.valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidClass, name)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	l := &Limiter{
		client:  client,
		logger:  o.logger,
		metrics: o.metrics,
		now:     o.now,
		classes: o.classes,
		quotas:  cache.NewRedis[int](client, nil, cache.WithPrefix(o.quotaPrefix)),
	}
	if o.quotaCacheTTL > 0 {
		l.localQuota = cache.NewLocal[int](cache.WithDefaultTTL(o.quotaCacheTTL), cache.WithClock(o.now))
	}
	return l, nil
}

// Class returns the configured class named name.
func (l *Limiter) Class(name ClassName) (Class, error) {
	c, ok := l.classes[name]
	if !ok {
		return Class{}, fmt.Errorf("%w: %q", ErrUnknownClass, name)
	}
	return c, nil
}

// CheckLimit reports whether one more request would be allowed, without counting it.
// The answer may be stale by the time the caller acts on it.
func (l *Limiter) CheckLimit(ctx context.Context, userID string, class ClassName) (Decision, error) {
	u, err := l.GetUsage(ctx, userID, class)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   u.Current < u.Limit,
		Remaining: u.Remaining,
		ResetAt:   u.ResetAt,
	}, nil
}

// IncrementAndCheck counts one request and reports whether it is within the limit.
// The increment and the window start are a single atomic step, so concurrent callers
// never lose an update and exactly one of them starts the window. Requests over the
// limit are still counted.
func (l *Limiter) IncrementAndCheck(ctx context.Context, userID string, class ClassName) (Result, error) {
	c, err := l.lookup(userID, class)
	if err != nil {
		return Result{}, err
	}
	ctx = logger.WithUserID(ctx, userID)

	limit, err := l.limitFor(ctx, userID, c)
	if err != nil {
		return Result{}, err
	}

	vals, err := incrScript.Run(ctx, l.client, []string{LimitKey(c.Prefix, userID)}, c.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: increment %s: %w", c.Name, err)
	}
	count, pttl, started := int(vals[0]), vals[1], vals[2] == 1

	res := Result{
		Allowed:       count <= limit,
		Current:       count,
		Limit:         limit,
		Remaining:     max(limit-count, 0),
		ResetAt:       l.resetAt(pttl, c.Window),
		WindowStarted: started,
	}

	l.metrics.RateLimitDecision(string(c.Name), res.Allowed)
	if !res.Allowed {
		l.logger.DebugContext(ctx, "limit exceeded",
			slog.String("class", string(c.Name)),
			slog.Int("current", count),
			slog.Int("limit", limit),
		)
	}
	return res, nil
}

// GetUsage returns the counter of a user without changing it.
func (l *Limiter) GetUsage(ctx context.Context, userID string, class ClassName) (Usage, error) {
	c, err := l.lookup(userID, class)
	if err != nil {
		return Usage{}, err
	}

	limit, err := l.limitFor(ctx, userID, c)
	if err != nil {
		return Usage{}, err
	}

	key := LimitKey(c.Prefix, userID)
	pipe := l.client.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Usage{}, fmt.Errorf("ratelimit: usage %s: %w", c.Name, err)
	}

	count, err := get.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Usage{}, fmt.Errorf("ratelimit: usage %s: %w", c.Name, err)
	}

	return Usage{
		Class:     c.Name,
		Current:   count,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   l.resetAt(ttl.Val().Milliseconds(), c.Window),
	}, nil
}

// Reset clears the counter of a user, opening a fresh window on the next request.
func (l *Limiter) Reset(ctx context.Context, userID string, class ClassName) error {
	c, err := l.lookup(userID, class)
	if err != nil {
		return err
	}
	if err := l.client.Del(ctx, LimitKey(c.Prefix, userID)).Err(); err != nil {
		return fmt.Errorf("ratelimit: reset %s: %w", c.Name, err)
	}
	l.logger.InfoContext(logger.WithUserID(ctx, userID), "limit counter reset", slog.String("class", string(c.Name)))
	return nil
}

// SetQuota stores a custom quota for a user. It applies to every overridable class
// and never expires; ResetQuota removes it.
func (l *Limiter) SetQuota(ctx context.Context, userID string, limit int) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if limit < 0 {
		return ErrInvalidQuota
	}
	if err := l.quotas.Set(ctx, userID, limit, -1); err != nil {
		return fmt.Errorf("ratelimit: set quota: %w", err)
	}
	l.forgetQuota(ctx, userID)

	l.logger.InfoContext(logger.WithUserID(ctx, userID), "custom quota set", slog.Int("limit", limit))
	return nil
}

// GetQuota returns the quota of a user: the custom quota when set, otherwise the
// default of the scan class.
func (l *Limiter) GetQuota(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}
	c, err := l.Class(ClassScan)
	if err != nil {
		return 0, err
	}
	return l.quotaOr(ctx, userID, c.Limit)
}

// ResetQuota removes the custom quota of a user.
func (l *Limiter) ResetQuota(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if err := l.quotas.Delete(ctx, userID); err != nil {
		return fmt.Errorf("ratelimit: reset quota: %w", err)
	}
	l.forgetQuota(ctx, userID)

	l.logger.InfoContext(logger.WithUserID(ctx, userID), "custom quota removed")
	return nil
}

func (l *Limiter) lookup(userID string, class ClassName) (Class, error) {
	if userID == "" {
		return Class{}, ErrEmptyUserID
	}
	return l.Class(class)
}

func (l *Limiter) limitFor(ctx context.Context, userID string, c Class) (int, error) {
	if !c.Overridable {
		return c.Limit, nil
	}
	return l.quotaOr(ctx, userID, c.Limit)
}

// quotaOr resolves the custom quota of a user, falling back to def.
func (l *Limiter) quotaOr(ctx context.Context, userID string, def int) (int, error) {
	load := func(ctx context.Context) (*int, time.Duration, error) {
		v, err := l.quotas.Get(ctx, userID)
		if errors.Is(err, cache.ErrNotFound) {
			return nil, 0, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("ratelimit: get quota: %w", err)
		}
		return &v, 0, nil
	}

	var (
		custom *int
		err    error
	)
	if l.localQuota == nil {
		custom, _, err = load(ctx)
	} else {
		custom, err = l.cachedQuota(ctx, userID, load)
	}
	if err != nil {
		return 0, err
	}
	if custom == nil {
		return def, nil
	}
	return *custom, nil
}

// cachedQuota reads through the local cache. A missing custom quota is cached as -1.
func (l *Limiter) cachedQuota(ctx context.Context, userID string, load func(context.Context) (*int, time.Duration, error)) (*int, error) {
	v, err := cache.ReadThrough(ctx, l.localQuota, &l.loads, userID, func(ctx context.Context) (int, time.Duration, error) {
		custom, ttl, err := load(ctx)
		if err != nil {
			return 0, 0, err
		}
		if custom == nil {
			return -1, ttl, nil
		}
		return *custom, ttl, nil
	})
	if err != nil {
		return nil, err
	}
	if v < 0 {
		return nil, nil
	}
	return &v, nil
}

func (l *Limiter) forgetQuota(ctx context.Context, userID string) {
	if l.localQuota != nil {
		_ = l.localQuota.Delete(ctx, userID)
	}
}

// resetAt turns a PTTL reply into the end of the window. Without a live window the
// next one would end a full window from now.
func (l *Limiter) resetAt(pttlMillis int64, window time.Duration) time.Time {
	now := l.now()
	if pttlMillis > 0 {
		return now.Add(time.Duration(pttlMillis) * time.Millisecond)
	}
	return now.Add(window)
}
