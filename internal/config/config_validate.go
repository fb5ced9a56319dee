package config

import (
	"fmt"
	"strings"
)

var validJournalModes = map[string]bool{
	"WAL": true, "DELETE": true, "TRUNCATE": true, "MEMORY": true, "OFF": true,
}

// Validate checks that required configuration is present and internally
// consistent. Called once at startup; any error here is fatal (§7).
func (c *Config) Validate() error {
	if err := c.validateServers(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateServerSettings(); err != nil {
		return err
	}
	if err := c.validatePathPolicies(); err != nil {
		return err
	}
	return c.validateSync()
}

func (c *Config) validateServers() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("config: at least one server must be configured")
	}

	seen := make(map[string]bool, len(c.Servers))
	for _, s := range c.Servers {
		if s.Name == "" {
			return fmt.Errorf("config: server entry missing name")
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate server name %q", s.Name)
		}
		seen[s.Name] = true

		if err := validateHTTPURL(s.BaseURL, fmt.Sprintf("servers[%s].url", s.Name)); err != nil {
			return err
		}
		if s.APIKey == "" && !s.Passwordless {
			return fmt.Errorf("config: server %q requires api_key unless passwordless", s.Name)
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	mode := strings.ToUpper(c.Database.JournalMode)
	if mode == "" {
		mode = "WAL"
		c.Database.JournalMode = mode
	}
	if !validJournalModes[mode] {
		return fmt.Errorf("config: database.journal_mode %q is not one of WAL, DELETE, TRUNCATE, MEMORY, OFF", c.Database.JournalMode)
	}
	return nil
}

func (c *Config) validateServerSettings() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

// validatePathPolicies rejects path policies with an empty or duplicate
// prefix, an absent_retry_count below -1, or a non-positive retry delay
// while retries are enabled. Prefixes are not checked against any library.
func (c *Config) validatePathPolicies() error {
	seen := make(map[string]bool, len(c.PathSyncPolicy))
	for _, p := range c.PathSyncPolicy {
		if p.Prefix == "" {
			return fmt.Errorf("config: path_sync_policy entry missing prefix")
		}
		if seen[p.Prefix] {
			return fmt.Errorf("config: duplicate path_sync_policy prefix %q", p.Prefix)
		}
		seen[p.Prefix] = true

		if p.AbsentRetryCount < -1 {
			return fmt.Errorf("config: path_sync_policy[%s].absent_retry_count must be -1, 0, or positive", p.Prefix)
		}
		if p.AbsentRetryCount != 0 && p.RetryDelaySeconds <= 0 {
			return fmt.Errorf("config: path_sync_policy[%s].retry_delay_seconds must be positive when retries are enabled", p.Prefix)
		}
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.MaxRetries <= 0 {
		return fmt.Errorf("config: sync.max_retries must be positive")
	}
	if c.Sync.MaxConcurrent <= 0 {
		return fmt.Errorf("config: sync.max_concurrent must be positive")
	}
	if c.Sync.ProgressDebounceSecond < 0 {
		return fmt.Errorf("config: sync.progress_debounce_seconds must not be negative")
	}
	if c.Sync.WorkerIntervalSeconds <= 0 {
		return fmt.Errorf("config: sync.worker_interval_seconds must be positive")
	}
	return nil
}
