package db

import "time"

// Config holds the connection settings of the keywords database. It is optional:
// an empty URL means keywords are read from another source.
type Config struct {
	URL string `env:"DATABASE_URL"`

	HealthCheckPeriod time.Duration `env:"DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	// The scheduler only reads keywords at startup, so the pool stays small.
	MaxConns int32 `env:"DATABASE_MAX_CONNS" envDefault:"4"`
	MinConns int32 `env:"DATABASE_MIN_CONNS" envDefault:"0"`

	RetryAttempts int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"2s"`
}

// Enabled reports whether a database is configured.
func (c Config) Enabled() bool { return c.URL != "" }
