// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/beenruuu/mentha/pkg/db"
	"github.com/beenruuu/mentha/pkg/logger"
)

// Config is the complete service configuration.
type Config struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":9090"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	Redis     Redis
	Database  db.Config
	Sentry    logger.SentryConfig
	Scheduler Scheduler
	Limits    Limits
	Queue     Queue
}

// Redis configures the shared store connection.
type Redis struct {
	URL           string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	PoolSize      int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns  int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	RetryAttempts int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"10"`
	RetryStep     time.Duration `env:"REDIS_RETRY_STEP" envDefault:"100ms"`
	RetryCap      time.Duration `env:"REDIS_RETRY_CAP" envDefault:"3s"`
	ReadTimeout   time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout  time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Scheduler configures recurring scans.
type Scheduler struct {
	MaxJitterMinutes  int           `env:"SCHEDULER_MAX_JITTER_MINUTES" envDefault:"59"`
	ResyncOnStart     bool          `env:"SCHEDULER_RESYNC_ON_START" envDefault:"true"`
	ResyncRate        float64       `env:"SCHEDULER_RESYNC_RATE" envDefault:"50"`
	ResyncConcurrency int           `env:"SCHEDULER_RESYNC_CONCURRENCY" envDefault:"8"`
	PromoteInterval   time.Duration `env:"SCHEDULER_PROMOTE_INTERVAL" envDefault:"5s"`
	// KeywordsFile is read instead of the database when set.
	KeywordsFile string `env:"SCHEDULER_KEYWORDS_FILE"`
}

// MaxJitter returns the jitter bound as a duration.
func (s Scheduler) MaxJitter() time.Duration {
	return time.Duration(s.MaxJitterMinutes) * time.Minute
}

// Limits configures the built-in limit classes.
type Limits struct {
	APIMax        int           `env:"LIMIT_API_MAX" envDefault:"60"`
	APIWindow     time.Duration `env:"LIMIT_API_WINDOW" envDefault:"1m"`
	ScanMax       int           `env:"LIMIT_SCAN_MAX" envDefault:"100"`
	ScanWindow    time.Duration `env:"LIMIT_SCAN_WINDOW" envDefault:"24h"`
	QuotaCacheTTL time.Duration `env:"LIMIT_QUOTA_CACHE_TTL" envDefault:"0s"`
}

// Queue configures queue keys.
type Queue struct {
	Prefix string `env:"QUEUE_PREFIX" envDefault:"mentha"`
}

var (
	ErrParse   = errors.New("config: failed to parse environment")
	ErrInvalid = errors.New("config: invalid value")
)

// Load reads the given .env files (missing files are ignored; with none, ".env" is
// tried), then parses the environment. Variables already set win over .env values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Join(ErrParse, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, msg))
		}
	}

	check(c.Scheduler.MaxJitterMinutes >= 0, "SCHEDULER_MAX_JITTER_MINUTES must not be negative")
	check(c.Scheduler.ResyncConcurrency > 0, "SCHEDULER_RESYNC_CONCURRENCY must be positive")
	check(c.Scheduler.PromoteInterval > 0, "SCHEDULER_PROMOTE_INTERVAL must be positive")
	check(c.Limits.APIMax >= 0 && c.Limits.ScanMax >= 0, "LIMIT_*_MAX must not be negative")
	check(c.Limits.APIWindow > 0 && c.Limits.ScanWindow > 0, "LIMIT_*_WINDOW must be positive")
	check(c.Redis.URL != "", "REDIS_URL is required")

	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool { return c.Env == "production" }
