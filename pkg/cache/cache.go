package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a typed key-value store with per-entry TTL.
//
// TTL passed to Set:
//   - Positive: the entry expires after ttl
//   - Zero: the cache default applies
//   - Negative: the entry never expires
type Cache[V any] interface {
	// Get returns ErrNotFound for a missing or expired key.
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}

// Marshaler converts values to and from their stored bytes.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

// Loader computes a missing value and the TTL to cache it with.
type Loader[V any] func(ctx context.Context) (V, time.Duration, error)

// ReadThrough returns the cached value of key or loads it. Concurrent misses on the
// same group and key share one load. A load error is returned and nothing is cached;
// a failing Set is ignored.
func ReadThrough[V any](ctx context.Context, c Cache[V], group *singleflight.Group, key string, load Loader[V]) (V, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	res, err, _ := group.Do(key, func() (any, error) {
		v, ttl, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.Set(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}
