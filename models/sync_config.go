package models

import (
	"os"
	"strconv"
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Configuration
//
// Loads sync settings from environment variables so deployment configuration
// stays external to the binary. The retry schedule and attempt cap have
// package defaults but are overridable for tests and unusual deployments.
// ============================================================================

// defaultSweepInterval is how often the engine sweeps pending notes while
// online. Two minutes balances freshness against needless polling when the
// API is flaky rather than down.
const defaultSweepInterval = 2 * time.Minute

// defaultRetryDelays is the exponential backoff schedule for per-note
// re-attempts, selected by the note's new retry count. Its length is also
// the maximum attempt count before a note goes terminal failed.
var defaultRetryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// SyncConfig holds the configuration for the sync engine.
type SyncConfig struct {
	Enabled     bool            // Whether background sync runs (QUILLNOTES_SYNC_ENABLED)
	APIBaseURL  string          // Base URL of the remote note API (QUILLNOTES_API_URL)
	Interval    time.Duration   // Periodic sweep interval (QUILLNOTES_SYNC_INTERVAL)
	RetryDelays []time.Duration // Backoff schedule; len() is the attempt cap
}

// LoadSyncConfig reads sync configuration from environment variables.
// Returns a config even when sync is disabled so callers can inspect the
// state without nil checks.
func LoadSyncConfig() (*SyncConfig, error) {
	cfg := &SyncConfig{
		Enabled:     true,
		Interval:    defaultSweepInterval,
		RetryDelays: defaultRetryDelays,
	}

	if enabledStr := os.Getenv("QUILLNOTES_SYNC_ENABLED"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return nil, serr.Wrap(err, "invalid QUILLNOTES_SYNC_ENABLED value, expected true/false")
		}
		cfg.Enabled = enabled
	}

	cfg.APIBaseURL = os.Getenv("QUILLNOTES_API_URL")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:3000/api"
	}

	if intervalStr := os.Getenv("QUILLNOTES_SYNC_INTERVAL"); intervalStr != "" {
		interval, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, serr.Wrap(err, "invalid QUILLNOTES_SYNC_INTERVAL value, expected duration like '2m' or '30s'")
		}
		cfg.Interval = interval
	}

	return cfg, nil
}

// MaxAttempts is the number of remote create attempts before a note is
// marked failed and left for manual retry.
func (c *SyncConfig) MaxAttempts() int {
	return len(c.RetryDelays)
}

// Validate checks required fields, failing fast on misconfiguration rather
// than discovering it mid-sweep.
func (c *SyncConfig) Validate() error {
	if c.APIBaseURL == "" {
		return serr.New("QUILLNOTES_API_URL is required")
	}
	if c.Interval < time.Second {
		return serr.New("QUILLNOTES_SYNC_INTERVAL must be at least 1s")
	}
	if len(c.RetryDelays) == 0 {
		return serr.New("retry schedule must have at least one delay")
	}
	return nil
}
