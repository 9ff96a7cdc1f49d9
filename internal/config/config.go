package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// SyncConfig holds reconciliation and remote-access settings.
type SyncConfig struct {
	// BatchSize is the maximum number of objects requested per
	// addressbook-multiget call.
	BatchSize int `yaml:"batch_size" env:"SYNC_BATCH_SIZE" env-default:"20"`

	// FetchConcurrency bounds how many multiget batches are in flight at
	// once during a discovery pass.
	FetchConcurrency int `yaml:"fetch_concurrency" env:"SYNC_FETCH_CONCURRENCY" env-default:"4"`

	// RateInterval is the minimum spacing between successive remote calls.
	RateInterval time.Duration `yaml:"rate_interval" env:"SYNC_RATE_INTERVAL" env-default:"200ms"`

	// CallTimeout bounds a single remote call; an expired call is retried.
	CallTimeout time.Duration `yaml:"call_timeout" env:"SYNC_CALL_TIMEOUT" env-default:"15s"`

	// MaxRetries is the number of retries (with backoff) per remote call
	// before the affected items are marked errored.
	MaxRetries int `yaml:"max_retries" env:"SYNC_MAX_RETRIES" env-default:"3"`

	// LockTTL is the sync lock's stale-lock timeout. A run that dies
	// without releasing its lock is reclaimable after this long.
	LockTTL time.Duration `yaml:"lock_ttl" env:"SYNC_LOCK_TTL" env-default:"10m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
