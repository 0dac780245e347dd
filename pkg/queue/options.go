package queue

import (
	"encoding/json"
	"time"
)

// Priorities. Lower values are served first; 0 means no priority (plain FIFO).
const (
	PriorityHigh   = 1
	PriorityNormal = 5
	PriorityLow    = 10

	// MaxPriority keeps priority*2^32 inside the precision Redis Lua numbers survive.
	MaxPriority = 10000
)

// BackoffType selects how the retry delay grows between attempts.
type BackoffType string

// Backoff types.
const (
	BackoffExponential BackoffType = "exponential"
	BackoffFixed       BackoffType = "fixed"
)

// Backoff is the retry policy handed to workers.
type Backoff struct {
	Type  BackoffType
	Delay time.Duration
}

// KeepJobs bounds how long and how many finished jobs are retained.
// Zero fields mean unbounded.
type KeepJobs struct {
	Age   time.Duration
	Count int
}

// Repeat describes a repeating job: a 5-field cron pattern plus an offset
// added to every computed fire time.
type Repeat struct {
	Pattern string
	Offset  time.Duration
}

// Options are the per-job settings stored with every job.
type Options struct {
	JobID         string
	Backoff       Backoff
	KeepCompleted KeepJobs
	KeepFailed    KeepJobs
	Delay         time.Duration
	Priority      int
	Attempts      int
}

// DefaultOptions returns the defaults applied to every queue:
// 3 attempts, exponential backoff from 2s, completed jobs kept 24h (max 1000),
// failed jobs kept 7 days.
func DefaultOptions() Options {
	return Options{
		Attempts: 3,
		Backoff: Backoff{
			Type:  BackoffExponential,
			Delay: 2 * time.Second,
		},
		KeepCompleted: KeepJobs{Age: 24 * time.Hour, Count: 1000},
		KeepFailed:    KeepJobs{Age: 7 * 24 * time.Hour},
	}
}

// EnqueueOption configures a single job.
type EnqueueOption func(*Options)

// JobID sets a caller-chosen job id. Adding a job whose id already exists
// in the queue does not create a second job.
//
// Example:
//
//	reg.Enqueue(ctx, queue.Scrapers, queue.TypeScan, payload, queue.JobID("scan-"+kwID))
func JobID(id string) EnqueueOption {
	return func(o *Options) {
		if id != "" {
			o.JobID = id
		}
	}
}

// Priority sets the job priority (lower numbers = served first).
//
// Example:
//
//	reg.Enqueue(ctx, queue.Notifications, queue.TypeNotify, payload, queue.Priority(queue.PriorityHigh))
func Priority(p int) EnqueueOption {
	return func(o *Options) {
		o.Priority = p
	}
}

// MaxAttempts sets how many times the job is attempted before it is failed.
func MaxAttempts(n int) EnqueueOption {
	return func(o *Options) {
		if n > 0 {
			o.Attempts = n
		}
	}
}

// WithBackoff sets the retry backoff policy.
func WithBackoff(t BackoffType, delay time.Duration) EnqueueOption {
	return func(o *Options) {
		o.Backoff = Backoff{Type: t, Delay: delay}
	}
}

// ScheduledIn delays the job by d.
func ScheduledIn(d time.Duration) EnqueueOption {
	return func(o *Options) {
		if d > 0 {
			o.Delay = d
		}
	}
}

// ScheduledAt delays the job until t. A time in the past means no delay.
func ScheduledAt(t time.Time) EnqueueOption {
	return func(o *Options) {
		o.Delay = max(time.Until(t), 0)
	}
}

// KeepCompleted overrides completed-job retention.
func KeepCompleted(age time.Duration, count int) EnqueueOption {
	return func(o *Options) {
		o.KeepCompleted = KeepJobs{Age: age, Count: count}
	}
}

// KeepFailed overrides failed-job retention.
func KeepFailed(age time.Duration, count int) EnqueueOption {
	return func(o *Options) {
		o.KeepFailed = KeepJobs{Age: age, Count: count}
	}
}

func (o Options) validate() error {
	if o.Priority < 0 || o.Priority > MaxPriority {
		return ErrInvalidPriority
	}
	if o.Attempts < 1 {
		return ErrInvalidAttempts
	}
	return nil
}

// wireOptions is the JSON stored in the job hash for workers. Durations are milliseconds.
type wireOptions struct {
	Repeat           *wireRepeat `json:"repeat,omitempty"`
	JobID            string      `json:"jobId,omitempty"`
	Backoff          wireBackoff `json:"backoff"`
	RemoveOnComplete wireKeep    `json:"removeOnComplete"`
	RemoveOnFail     wireKeep    `json:"removeOnFail"`
	Attempts         int         `json:"attempts"`
	Priority         int         `json:"priority,omitempty"`
	Delay            int64       `json:"delay,omitempty"`
}

type wireBackoff struct {
	Type  BackoffType `json:"type"`
	Delay int64       `json:"delay"`
}

type wireKeep struct {
	Age   int64 `json:"age,omitempty"`
	Count int   `json:"count,omitempty"`
}

type wireRepeat struct {
	Pattern string `json:"pattern"`
	Offset  int64  `json:"offset,omitempty"`
}

func encodeOptions(o Options, r *Repeat) (string, error) {
	w := wireOptions{
		JobID:    o.JobID,
		Attempts: o.Attempts,
		Priority: o.Priority,
		Delay:    o.Delay.Milliseconds(),
		Backoff: wireBackoff{
			Type:  o.Backoff.Type,
			Delay: o.Backoff.Delay.Milliseconds(),
		},
		RemoveOnComplete: wireKeep{
			Age:   int64(o.KeepCompleted.Age / time.Second),
			Count: o.KeepCompleted.Count,
		},
		RemoveOnFail: wireKeep{
			Age:   int64(o.KeepFailed.Age / time.Second),
			Count: o.KeepFailed.Count,
		},
	}
	if r != nil {
		w.Repeat = &wireRepeat{Pattern: r.Pattern, Offset: r.Offset.Milliseconds()}
	}

	b, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
