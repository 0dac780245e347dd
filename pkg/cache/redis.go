package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores values in Redis under "<prefix>:<key>".
type Redis[V any] struct {
	client    redis.UniversalClient
	marshaler Marshaler[V]
	prefix    string
	ttl       time.Duration
}

// RedisOption configures the Redis cache.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix     string
	defaultTTL time.Duration
}

// WithPrefix namespaces every key as "<prefix>:<key>".
func WithPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithRedisDefaultTTL sets the TTL used when Set is called with zero. Default: 1 hour.
func WithRedisDefaultTTL(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.defaultTTL = d
	}
}

// NewRedis creates a Redis-backed cache. A nil Marshaler means JSON.
//
// Example:
//
//	quotas := cache.NewRedis[int](client, nil, cache.WithPrefix("quota:custom"))
//	err := quotas.Set(ctx, userID, 50, -1) // no expiry
func NewRedis[V any](client redis.UniversalClient, m Marshaler[V], opts ...RedisOption) *Redis[V] {
	o := &redisOptions{defaultTTL: time.Hour}
	for _, opt := range opts {
		opt(o)
	}
	if m == nil {
		m = jsonMarshaler[V]{}
	}

	return &Redis[V]{
		client:    client,
		marshaler: m,
		prefix:    o.prefix,
		ttl:       o.defaultTTL,
	}
}

// Key returns the Redis key of key.
func (r *Redis[V]) Key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("cache: get %s: %w", r.Key(key), err)
	}
	return r.marshaler.Unmarshal(data)
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = r.ttl
	}

	// Redis treats 0 as "keep forever".
	if err := r.client.Set(ctx, r.Key(key), data, max(ttl, 0)).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", r.Key(key), err)
	}
	return nil
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.Key(key)).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", r.Key(key), err)
	}
	return nil
}

func (r *Redis[V]) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.Key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: exists %s: %w", r.Key(key), err)
	}
	return n > 0, nil
}

// Close does nothing; the client belongs to the caller.
func (r *Redis[V]) Close() error { return nil }

var _ Cache[any] = (*Redis[any])(nil)
