package schedule

import "errors"

var (
	ErrUnsupportedFrequency = errors.New("schedule: unsupported frequency")
	ErrEmptyKeywordID       = errors.New("schedule: keyword id is required")
	ErrSourceUnavailable    = errors.New("schedule: keyword source unavailable")
	ErrInvalidSourceFile    = errors.New("schedule: invalid keywords file")
)
