package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RepeatableJob describes an installed repeating job.
type RepeatableJob struct {
	Next    time.Time
	Key     string
	JobID   string
	Type    string
	Pattern string
	Offset  time.Duration
}

// AddRepeatable installs a repeating job. The job id is required: it identifies the
// repeating job across pattern changes, and any entry already registered for the same
// id is replaced atomically, so one id never owns two entries.
func (q *Queue) AddRepeatable(ctx context.Context, jobType string, payload any, repeat Repeat, opts ...EnqueueOption) (*RepeatableJob, error) {
	if err := q.acquire(); err != nil {
		return nil, err
	}
	defer q.inflight.Done()

	if jobType == "" {
		return nil, ErrEmptyJobType
	}

	o := q.options(opts...)
	if o.JobID == "" {
		return nil, ErrJobIDRequired
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if repeat.Offset < 0 {
		return nil, ErrInvalidOffset
	}

	sched, err := ParsePattern(repeat.Pattern)
	if err != nil {
		return nil, err
	}

	data, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeOptions(o, &repeat)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	next := NextFire(sched, repeat.Offset, q.now())
	key := repeatKey(jobType, o.JobID, repeat.Pattern)

	replaced, err := upsertRepeatScript.Run(ctx, q.client,
		[]string{q.keys.repeat, q.keys.repeatIDs, q.keys.repeatMeta(key)},
		o.JobID, key, next.UnixMilli(), q.keys.repeatPrefix(),
		jobType, string(data), encoded, repeat.Pattern, repeat.Offset.Milliseconds(), o.Priority,
	).Int()
	if err != nil {
		q.metrics.EnqueueFailed(string(q.name))
		return nil, fmt.Errorf("queue: add repeatable %s to %s: %w", o.JobID, q.name, err)
	}

	q.logger.DebugContext(ctx, "repeatable job installed",
		slog.String("job_id", o.JobID),
		slog.String("pattern", repeat.Pattern),
		slog.Duration("offset", repeat.Offset),
		slog.Time("next", next),
		slog.Bool("replaced", replaced == 1),
	)

	return &RepeatableJob{
		Key:     key,
		JobID:   o.JobID,
		Type:    jobType,
		Pattern: repeat.Pattern,
		Offset:  repeat.Offset,
		Next:    next,
	}, nil
}

// RepeatableJobs lists the installed repeating jobs ordered by next fire time.
func (q *Queue) RepeatableJobs(ctx context.Context) ([]RepeatableJob, error) {
	entries, err := q.client.ZRangeWithScores(ctx, q.keys.repeat, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list repeatable in %s: %w", q.name, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	pipe := q.client.Pipeline()
	metas := make([]*redis.MapStringStringCmd, len(entries))
	for i, e := range entries {
		metas[i] = pipe.HGetAll(ctx, q.keys.repeatMeta(memberString(e.Member)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue: load repeatable in %s: %w", q.name, err)
	}

	jobs := make([]RepeatableJob, 0, len(entries))
	for i, e := range entries {
		key := memberString(e.Member)
		job := repeatableFromKey(key)
		job.Next = time.UnixMilli(int64(e.Score))

		meta := metas[i].Val()
		if id := meta["jobId"]; id != "" {
			job.JobID = id
		}
		if name := meta["name"]; name != "" {
			job.Type = name
		}
		if p := meta["pattern"]; p != "" {
			job.Pattern = p
		}
		if off, err := strconv.ParseInt(meta["offset"], 10, 64); err == nil {
			job.Offset = time.Duration(off) * time.Millisecond
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// NextRepeat returns the earliest next fire time and the number of repeating jobs.
// The time is zero when nothing is installed.
func (q *Queue) NextRepeat(ctx context.Context) (time.Time, int64, error) {
	pipe := q.client.Pipeline()
	count := pipe.ZCard(ctx, q.keys.repeat)
	first := pipe.ZRangeWithScores(ctx, q.keys.repeat, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return time.Time{}, 0, fmt.Errorf("queue: next repeat in %s: %w", q.name, err)
	}

	entries := first.Val()
	if len(entries) == 0 {
		return time.Time{}, count.Val(), nil
	}
	return time.UnixMilli(int64(entries[0].Score)), count.Val(), nil
}

// RepeatableKey returns the current storage key of the repeating job with jobID.
// ok is false when the id owns no entry.
func (q *Queue) RepeatableKey(ctx context.Context, jobID string) (string, bool, error) {
	key, err := q.client.HGet(ctx, q.keys.repeatIDs, jobID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("queue: resolve repeatable %s in %s: %w", jobID, q.name, err)
	}
	return key, true, nil
}

// RemoveRepeatableByKey removes a repeating job by its storage key, as returned by
// RepeatableJobs. It reports whether an entry was removed.
func (q *Queue) RemoveRepeatableByKey(ctx context.Context, key string) (bool, error) {
	removed, err := removeRepeatScript.Run(ctx, q.client,
		[]string{q.keys.repeat, q.keys.repeatIDs, q.keys.repeatMeta(key)},
		key, jobIDOfKey(key),
	).Int()
	if err != nil {
		return false, fmt.Errorf("queue: remove repeatable %q from %s: %w", key, q.name, err)
	}
	return removed == 1, nil
}

func (q *Queue) fireDueRepeats(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScoreWithScores(ctx, q.keys.repeat, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   itoa(now.UnixMilli()),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: due repeatable in %s: %w", q.name, err)
	}

	fired := 0
	for _, e := range due {
		key := memberString(e.Member)
		fireAt := int64(e.Score)

		meta, err := q.client.HMGet(ctx, q.keys.repeatMeta(key), "jobId", "pattern", "offset").Result()
		if err != nil {
			return fired, fmt.Errorf("queue: load repeatable %q: %w", key, err)
		}
		jobID, _ := meta[0].(string)
		pattern, _ := meta[1].(string)
		offsetStr, _ := meta[2].(string)
		offsetMs, _ := strconv.ParseInt(offsetStr, 10, 64)

		sched, err := ParsePattern(pattern)
		if err != nil {
			q.logger.WarnContext(ctx, "dropping repeatable job with bad pattern",
				slog.String("key", key),
				slog.Any("error", err),
			)
			if _, rmErr := q.RemoveRepeatableByKey(ctx, key); rmErr != nil {
				return fired, rmErr
			}
			continue
		}

		next := NextFire(sched, time.Duration(offsetMs)*time.Millisecond, now)
		instanceID := repeatInstanceID(jobID, fireAt)

		ok, err := fireRepeatScript.Run(ctx, q.client,
			[]string{q.keys.repeat, q.keys.repeatMeta(key), q.keys.wait, q.keys.prioritized, q.keys.pc, q.keys.job(instanceID)},
			key, fireAt, next.UnixMilli(), instanceID, now.UnixMilli(),
		).Int()
		if err != nil {
			return fired, fmt.Errorf("queue: fire repeatable %q: %w", key, err)
		}
		fired += ok
	}
	return fired, nil
}

// ParsePattern parses a 5-field cron pattern (minute hour day-of-month month day-of-week).
func ParsePattern(pattern string) (cron.Schedule, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, ErrInvalidPattern
	}
	sched, err := cronParser.Parse(pattern)
	if err != nil {
		return nil, errors.Join(ErrInvalidPattern, err)
	}
	return sched, nil
}

// NextFire returns the first fire time strictly after now for a schedule whose every
// occurrence is shifted by offset. Times are evaluated in UTC at millisecond resolution.
func NextFire(sched cron.Schedule, offset time.Duration, now time.Time) time.Time {
	base := now.UTC().Add(-offset)
	return sched.Next(base).Add(offset).Truncate(time.Millisecond)
}

func repeatableFromKey(key string) RepeatableJob {
	job := RepeatableJob{Key: key}
	head, pattern, ok := strings.Cut(key, ":::")
	if !ok {
		return job
	}
	job.Pattern = pattern
	if jobType, jobID, ok := strings.Cut(head, ":"); ok {
		job.Type = jobType
		job.JobID = jobID
	}
	return job
}

// jobIDOfKey parses the job id out of a repeat key, or returns "" for foreign keys.
func jobIDOfKey(key string) string {
	return repeatableFromKey(key).JobID
}

func memberString(m any) string {
	switch v := m.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
