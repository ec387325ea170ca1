package session

import (
	"os"
	"time"
)

// Config defines runtime configuration for the session-transfer subsystem.
//
// The pending timeout is the single authoritative bound on how long a
// contested login may wait: the server expires the transfer, and any
// client-side display timeout is purely cosmetic.
type Config struct {
	// PendingTimeout is how long a pending transfer waits for the incumbent
	// before the system expires it.
	PendingTimeout time.Duration

	// PollInterval is the fallback poll cadence advertised to requesters.
	PollInterval time.Duration
}

// DefaultConfig returns the policy defaults.
func DefaultConfig() Config {
	return Config{
		PendingTimeout: 120 * time.Second,
		PollInterval:   5 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - LMS_PENDING_TIMEOUT
//   - LMS_POLL_INTERVAL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("LMS_PENDING_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.PendingTimeout = d
	}

	if v := os.Getenv("LMS_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.PollInterval = d
	}

	// A poll interval longer than the pending window can never observe the
	// pending phase; reject the combination outright.
	if cfg.PollInterval > cfg.PendingTimeout {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
