package ratelimit

import "errors"

var (
	ErrUnknownClass = errors.New("ratelimit: unknown limit class")
	ErrEmptyUserID  = errors.New("ratelimit: user id is required")
	ErrInvalidQuota = errors.New("ratelimit: quota must not be negative")
	ErrInvalidClass = errors.New("ratelimit: class needs a name, prefix, positive window and non-negative limit")
)
