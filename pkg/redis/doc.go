// Package redis owns the shared connection to the Redis instance that backs both the
// job queues and the rate-limit counters.
//
// It wraps [github.com/redis/go-redis/v9] with functional options, a bounded startup
// retry loop, a lazily connected singleton handle and health/shutdown helpers.
//
// # Retry policy
//
// Open pings the server before returning. A failed ping is retried after
// min(attempt*step, cap), 10 attempts with a 100ms step and a 3s cap by default.
// When the budget is exhausted the error wraps [ErrConnectionFailed] and the
// last cause; nothing retries forever. The same step and cap are handed to
// go-redis for per-command reconnects.
//
// # Usage
//
//	conn := redis.NewConn(os.Getenv("REDIS_URL"),
//		redis.WithPoolSize(20),
//		redis.WithLogger(log),
//	)
//	client, err := conn.Client(ctx)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
// Conn.Ping returns false instead of an error so callers can report a degraded
// state without crashing.
//
// # Error Handling
//
//   - [ErrEmptyConnectionURL] - Empty connection URL provided
//   - [ErrFailedToParseURL] - Invalid connection URL format or scheme
//   - [ErrConnectionFailed] - Connection failed after all retry attempts
//   - [ErrHealthcheckFailed] - Redis ping failed
//   - [ErrClosed] - Conn used after Close
package redis
