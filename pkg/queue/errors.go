package queue

import "errors"

// Queue errors.
var (
	// ErrUnknownQueue is returned for a queue name outside the registry's enum.
	ErrUnknownQueue = errors.New("queue: unknown queue")

	// ErrQueueClosed is returned when a job is added after Close.
	ErrQueueClosed = errors.New("queue: closed")

	// ErrEmptyJobType is returned when a job is added without a type tag.
	ErrEmptyJobType = errors.New("queue: job type is required")

	// ErrInvalidPriority is returned for priorities outside [0, MaxPriority].
	ErrInvalidPriority = errors.New("queue: invalid priority")

	// ErrInvalidAttempts is returned when attempts is below 1.
	ErrInvalidAttempts = errors.New("queue: attempts must be at least 1")

	// ErrInvalidPayload is returned when a payload cannot be marshaled.
	ErrInvalidPayload = errors.New("queue: invalid payload")

	// ErrInvalidPattern is returned when a repeat cron pattern does not parse.
	ErrInvalidPattern = errors.New("queue: invalid repeat pattern")

	// ErrInvalidOffset is returned for a negative repeat offset.
	ErrInvalidOffset = errors.New("queue: repeat offset must not be negative")

	// ErrJobIDRequired is returned when a repeatable job has no job id.
	ErrJobIDRequired = errors.New("queue: repeatable job requires a job id")
)
