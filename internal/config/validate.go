package config

import (
	"fmt"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Sync.validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func (s *SyncConfig) validate() error {
	if s.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", s.BatchSize)
	}
	if s.FetchConcurrency <= 0 {
		return fmt.Errorf("fetch_concurrency must be > 0 (got %d)", s.FetchConcurrency)
	}
	if s.RateInterval < 0 {
		return fmt.Errorf("rate_interval must be >= 0 (got %v)", s.RateInterval)
	}
	if s.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be > 0 (got %v)", s.CallTimeout)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0 (got %d)", s.MaxRetries)
	}
	if s.LockTTL <= s.CallTimeout {
		return fmt.Errorf("lock_ttl (%v) must exceed call_timeout (%v)", s.LockTTL, s.CallTimeout)
	}
	return nil
}
