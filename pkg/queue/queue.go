package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/beenruuu/mentha/pkg/metrics"
)

const promoteBatch = 500

// Job is the handle of an accepted job.
type Job struct {
	CreatedAt time.Time
	ID        string
	Type      string
	Queue     Name
	Payload   json.RawMessage
	Options   Options
}

// Counts reports the size of each job state of a queue.
type Counts struct {
	Waiting     int64 `json:"waiting"`
	Prioritized int64 `json:"prioritized"`
	Delayed     int64 `json:"delayed"`
	Repeating   int64 `json:"repeating"`
}

// Queue is a durable job queue stored in Redis. All state lives in the store;
// a Queue holds no jobs in memory.
type Queue struct {
	client   redis.UniversalClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	keys     keys
	name     Name
	defaults Options

	mu       sync.RWMutex
	inflight sync.WaitGroup
	closed   bool
}

func newQueue(client redis.UniversalClient, name Name, cfg *registryConfig) *Queue {
	defaults := cfg.defaults
	if p, ok := cfg.priorities[name]; ok {
		defaults.Priority = p
	}

	return &Queue{
		client:   client,
		logger:   cfg.logger.With(slog.String("queue", string(name))),
		metrics:  cfg.metrics,
		now:      cfg.now,
		keys:     newKeys(cfg.prefix, name),
		name:     name,
		defaults: defaults,
	}
}

// Name returns the queue name.
func (q *Queue) Name() Name { return q.name }

// Add appends a job. The job is stored before Add returns, so it survives a
// process restart. A caller-chosen job id that already exists is not duplicated.
func (q *Queue) Add(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (*Job, error) {
	if err := q.acquire(); err != nil {
		return nil, err
	}
	defer q.inflight.Done()

	if jobType == "" {
		return nil, ErrEmptyJobType
	}

	o := q.options(opts...)
	if err := o.validate(); err != nil {
		return nil, err
	}

	data, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	if o.JobID == "" {
		o.JobID = uuid.NewString()
	}

	encoded, err := encodeOptions(o, nil)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	now := q.now()
	job := &Job{
		ID:        o.JobID,
		Queue:     q.name,
		Type:      jobType,
		Payload:   data,
		Options:   o,
		CreatedAt: now,
	}

	created, err := addJobScript.Run(ctx, q.client,
		[]string{q.keys.job(job.ID), q.keys.wait, q.keys.prioritized, q.keys.pc, q.keys.delayed},
		job.ID, jobType, string(data), encoded,
		now.UnixMilli(), o.Delay.Milliseconds(), o.Priority, now.Add(o.Delay).UnixMilli(),
	).Int()
	if err != nil {
		q.metrics.EnqueueFailed(string(q.name))
		return nil, fmt.Errorf("queue: add %s to %s: %w", jobType, q.name, err)
	}

	if created == 0 {
		q.logger.DebugContext(ctx, "job already exists",
			slog.String("job_id", job.ID),
			slog.String("type", jobType),
		)
		return job, nil
	}

	q.metrics.JobEnqueued(string(q.name), jobType)
	q.logger.DebugContext(ctx, "job added",
		slog.String("job_id", job.ID),
		slog.String("type", jobType),
		slog.Int("priority", o.Priority),
		slog.Duration("delay", o.Delay),
	)

	return job, nil
}

// PromoteDue makes due work visible to workers: every repeating job whose fire time
// has passed gets one job instance and moves on to its next fire time, and every
// delayed job whose delay has elapsed moves to the wait list. It returns the number of
// jobs made ready. Safe to run from several processes at once.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	fired, err := q.fireDueRepeats(ctx, now)
	if err != nil {
		return fired, err
	}

	moved, err := promoteDelayedScript.Run(ctx, q.client,
		[]string{q.keys.delayed, q.keys.wait, q.keys.prioritized, q.keys.pc},
		now.UnixMilli(), promoteBatch, q.keys.jobPrefix(),
	).Int()
	if err != nil {
		return fired, fmt.Errorf("queue: promote delayed in %s: %w", q.name, err)
	}

	total := fired + moved
	q.metrics.Promoted(string(q.name), total)
	if total > 0 {
		q.logger.DebugContext(ctx, "jobs promoted",
			slog.Int("repeating", fired),
			slog.Int("delayed", moved),
		)
	}
	return total, nil
}

// Counts returns the number of jobs in each state.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, q.keys.wait)
	prioritized := pipe.ZCard(ctx, q.keys.prioritized)
	delayed := pipe.ZCard(ctx, q.keys.delayed)
	repeating := pipe.ZCard(ctx, q.keys.repeat)

	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, fmt.Errorf("queue: counts of %s: %w", q.name, err)
	}

	return Counts{
		Waiting:     waiting.Val(),
		Prioritized: prioritized.Val(),
		Delayed:     delayed.Val(),
		Repeating:   repeating.Val(),
	}, nil
}

// Close stops accepting jobs and waits for in-flight adds to finish.
// The shared Redis client is not closed.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.inflight.Wait()
	q.logger.Debug("queue closed")
	return nil
}

func (q *Queue) acquire() error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.inflight.Add(1)
	return nil
}

func (q *Queue) options(opts ...EnqueueOption) Options {
	o := q.defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("null"), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	return b, nil
}
