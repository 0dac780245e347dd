package queue

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// testNow is a Monday.
var testNow = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *miniredis.Miniredis, *clock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	c := &clock{t: testNow}
	opts = append([]RegistryOption{WithClock(c.now)}, opts...)
	return NewRegistry(client, opts...), mr, c
}

func mustQueue(t *testing.T, r *Registry, name Name) *Queue {
	t.Helper()

	q, err := r.Queue(name)
	if err != nil {
		t.Fatalf("queue %s: %v", name, err)
	}
	return q
}
