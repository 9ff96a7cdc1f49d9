package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/mycontacts-backend/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{DSN: "postgres://localhost/test"},
		Sync: config.SyncConfig{
			BatchSize:        20,
			FetchConcurrency: 4,
			RateInterval:     200 * time.Millisecond,
			CallTimeout:      15 * time.Second,
			MaxRetries:       3,
			LockTTL:          10 * time.Minute,
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	require.NoError(t, validConfig().Validate())
}

func TestValidate_Sync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero batch size", func(c *config.Config) { c.Sync.BatchSize = 0 }},
		{"zero fetch concurrency", func(c *config.Config) { c.Sync.FetchConcurrency = 0 }},
		{"negative rate interval", func(c *config.Config) { c.Sync.RateInterval = -time.Second }},
		{"zero call timeout", func(c *config.Config) { c.Sync.CallTimeout = 0 }},
		{"negative retries", func(c *config.Config) { c.Sync.MaxRetries = -1 }},
		{"lock ttl below call timeout", func(c *config.Config) { c.Sync.LockTTL = time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
