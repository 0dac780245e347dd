package redis

import (
	"context"
	"io"
)

// Shutdown returns a function that closes the Redis client or Conn.
// Use as a shutdown hook of the service runtime.
func Shutdown(client io.Closer) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Close()
	}
}
