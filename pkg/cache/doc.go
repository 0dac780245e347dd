// Package cache provides a typed key-value [Cache] with a Redis backend and a
// process-local backend.
//
// [Redis] keeps durable values shared by every process, such as per-user quota
// overrides stored without expiry. [Local] keeps short-lived copies of values read
// on hot paths. [ReadThrough] combines the two and collapses concurrent misses:
//
//	overrides := cache.NewRedis[int](client, nil, cache.WithPrefix("quota:custom"))
//	local := cache.NewLocal[int](cache.WithDefaultTTL(5 * time.Second))
//	var group singleflight.Group
//
//	limit, err := cache.ReadThrough(ctx, local, &group, userID, func(ctx context.Context) (int, time.Duration, error) {
//	    v, err := overrides.Get(ctx, userID)
//	    return v, 0, err
//	})
//
// TTL passed to Set: positive expires after the duration, zero uses the cache
// default, negative never expires.
package cache
