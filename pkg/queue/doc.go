// Package queue provides durable, Redis-backed job queues and the registry that owns them.
//
// Jobs are stored in Redis the moment they are accepted, so they survive process
// restarts and are delivered at least once to whichever worker runtime consumes the
// queue keys. The package only enqueues; it never executes job bodies.
//
// # Queues
//
// The set of queues is closed: [Scrapers], [Analysis], [Notifications] and [Scheduled].
// A [Registry] creates each queue on first use and caches it for the life of the
// process:
//
//	reg := queue.NewRegistry(client,
//	    queue.WithLogger(log),
//	    queue.WithMetrics(m),
//	)
//	defer reg.Close(ctx)
//
//	job, err := reg.Enqueue(ctx, queue.Scrapers, queue.TypeScan, queue.ScanJob{
//	    KeywordID: kw.ID,
//	    Engine:    "openai",
//	})
//
// # Defaults
//
// Every job gets 3 attempts, exponential backoff from 2s, completed-job retention of
// 24h/1000 jobs and failed-job retention of 7 days unless overridden with
// [MaxAttempts], [WithBackoff], [KeepCompleted] or [KeepFailed]. Scan jobs default to
// [PriorityNormal] and notification jobs to [PriorityLow]; priority is an ordering
// hint, not a guarantee.
//
// # Repeating jobs
//
// [Queue.AddRepeatable] installs a cron-driven job identified by its job id.
// Repeat entries are stored under a composite key that includes the pattern, so
// callers that need to remove one should resolve the live key with
// [Queue.RepeatableJobs] and call [Queue.RemoveRepeatableByKey]. [Queue.PromoteDue]
// turns due fire times into job instances and advances each entry.
//
// # Key layout
//
//	<prefix>:{<queue>}:job:<id>        job hash
//	<prefix>:{<queue>}:wait            list of ready job ids
//	<prefix>:{<queue>}:prioritized     zset of ready prioritized job ids
//	<prefix>:{<queue>}:delayed         zset of delayed job ids scored by due time
//	<prefix>:{<queue>}:repeat          zset of repeat keys scored by next fire time
//	<prefix>:{<queue>}:repeat:<key>    repeat entry hash
//	<prefix>:{<queue>}:repeat-ids      hash job id -> repeat key
//
// # Error Handling
//
//   - [ErrUnknownQueue] - Queue name outside the enum
//   - [ErrQueueClosed] - Queue or registry already closed
//   - [ErrEmptyJobType], [ErrInvalidPriority], [ErrInvalidAttempts] - Rejected job options
//   - [ErrInvalidPayload] - Payload could not be marshaled
//   - [ErrInvalidPattern], [ErrInvalidOffset], [ErrJobIDRequired] - Rejected repeat settings
//
// Store failures are wrapped with the operation and returned; the caller decides
// whether to retry.
package queue
