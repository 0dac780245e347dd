package db

import "errors"

var (
	ErrNotConfigured     = errors.New("db: database url is not set")
	ErrInvalidConfig     = errors.New("db: invalid database configuration")
	ErrConnectionFailed  = errors.New("db: failed to open database connection")
	ErrHealthcheckFailed = errors.New("db: healthcheck failed")
)
