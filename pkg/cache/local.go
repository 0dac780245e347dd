package cache

import (
	"context"
	"sync"
	"time"
)

type localEntry[V any] struct {
	expiresAt time.Time // zero = never
	value     V
}

// Local is a process-local cache with lazy TTL expiry, used in front of Redis for
// values read on hot paths.
type Local[V any] struct {
	items      map[string]localEntry[V]
	now        func() time.Time
	ttl        time.Duration
	maxEntries int

	mu     sync.Mutex
	closed bool
}

// LocalOption configures the local cache.
type LocalOption func(*localOptions)

type localOptions struct {
	now        func() time.Time
	defaultTTL time.Duration
	maxEntries int
}

// WithDefaultTTL sets the TTL used when Set is called with zero. Default: 1 minute.
func WithDefaultTTL(d time.Duration) LocalOption {
	return func(o *localOptions) {
		o.defaultTTL = d
	}
}

// WithMaxEntries bounds the number of entries. When full, expired entries are swept
// and, if that frees nothing, the cache is emptied. Default: 10000.
func WithMaxEntries(n int) LocalOption {
	return func(o *localOptions) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) LocalOption {
	return func(o *localOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewLocal creates a local cache.
func NewLocal[V any](opts ...LocalOption) *Local[V] {
	o := &localOptions{
		now:        time.Now,
		defaultTTL: time.Minute,
		maxEntries: 10000,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Local[V]{
		items:      make(map[string]localEntry[V]),
		now:        o.now,
		ttl:        o.defaultTTL,
		maxEntries: o.maxEntries,
	}
}

func (l *Local[V]) Get(_ context.Context, key string) (V, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero V
	e, ok := l.items[key]
	if !ok {
		return zero, ErrNotFound
	}
	if l.expired(e) {
		delete(l.items, key)
		return zero, ErrNotFound
	}
	return e.value, nil
}

func (l *Local[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if ttl == 0 {
		ttl = l.ttl
	}

	e := localEntry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = l.now().Add(ttl)
	}

	if _, ok := l.items[key]; !ok && len(l.items) >= l.maxEntries {
		l.sweep()
	}
	l.items[key] = e
	return nil
}

func (l *Local[V]) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	delete(l.items, key)
	return nil
}

func (l *Local[V]) Has(ctx context.Context, key string) (bool, error) {
	_, err := l.Get(ctx, key)
	return err == nil, nil
}

// Len returns the number of stored entries, expired ones included.
func (l *Local[V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Close drops every entry. Set and Delete return ErrClosed afterwards.
func (l *Local[V]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	clear(l.items)
	return nil
}

func (l *Local[V]) expired(e localEntry[V]) bool {
	return !e.expiresAt.IsZero() && !l.now().Before(e.expiresAt)
}

// sweep makes room for one entry. Caller holds the mutex.
func (l *Local[V]) sweep() {
	for k, e := range l.items {
		if l.expired(e) {
			delete(l.items, k)
		}
	}
	if len(l.items) >= l.maxEntries {
		clear(l.items)
	}
}

var _ Cache[any] = (*Local[any])(nil)
