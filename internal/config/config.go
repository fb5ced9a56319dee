package config

import (
	"strings"
	"time"
)

// PeerConfig describes one media-server instance participating in sync.
// Peers are static for the life of the process: loaded once at startup,
// never mutated, referenced by name everywhere else in the system.
type PeerConfig struct {
	Name         string `koanf:"name"`
	BaseURL      string `koanf:"url"`
	APIKey       string `koanf:"api_key"`
	Passwordless bool   `koanf:"passwordless"`
}

// SyncConfig controls which playback-state fields are mirrored and how
// the dispatcher/worker pipeline behaves.
type SyncConfig struct {
	PlaybackProgress       bool          `koanf:"playback_progress"`
	WatchedStatus          bool          `koanf:"watched_status"`
	Favorites              bool          `koanf:"favorites"`
	Ratings                bool          `koanf:"ratings"`
	Likes                  bool          `koanf:"likes"`
	PlayCount              bool          `koanf:"play_count"`
	LastPlayedDate         bool          `koanf:"last_played_date"`
	AudioStream            bool          `koanf:"audio_stream"`
	SubtitleStream         bool          `koanf:"subtitle_stream"`
	ProgressDebounceSecond int           `koanf:"progress_debounce_seconds"`
	WorkerIntervalSeconds  float64       `koanf:"worker_interval_seconds"`
	MaxRetries             int           `koanf:"max_retries"`
	MaxConcurrent          int           `koanf:"max_concurrent"`
	CooldownSeconds        int           `koanf:"cooldown_seconds"`
	DryRun                 bool          `koanf:"dry_run"`
	StaleProcessingAfter   time.Duration `koanf:"stale_processing_after"`
}

// DatabaseConfig points at the durable store backing the queue, the
// item path cache, user mappings and the sync log.
type DatabaseConfig struct {
	Path        string `koanf:"path"`
	JournalMode string `koanf:"journal_mode"` // WAL, DELETE, TRUNCATE, MEMORY, OFF
}

// ServerConfig is the webhook/status API HTTP listener.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig controls the zerolog logger setup.
type LoggingConfig struct {
	Level string `koanf:"level"`
}

// PathSyncPolicy controls retry behavior when an item hasn't appeared
// yet on a target peer, selected by longest-prefix match against the
// item's storage path.
type PathSyncPolicy struct {
	Prefix            string `koanf:"prefix"`
	AbsentRetryCount  int    `koanf:"absent_retry_count"` // -1 unbounded, 0 no retry, N>0 bounded
	RetryDelaySeconds int    `koanf:"retry_delay_seconds"`
}

// Config is the root configuration document (§6 of the specification).
type Config struct {
	Servers        []PeerConfig     `koanf:"servers"`
	Sync           SyncConfig       `koanf:"sync"`
	Database       DatabaseConfig   `koanf:"database"`
	Server         ServerConfig     `koanf:"server"`
	Logging        LoggingConfig    `koanf:"logging"`
	PathSyncPolicy []PathSyncPolicy `koanf:"path_sync_policy"`
}

// Peer returns the peer configuration by name, or nil if unknown.
func (c *Config) Peer(name string) *PeerConfig {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i]
		}
	}
	return nil
}

// OtherPeers returns every configured peer except the named one.
func (c *Config) OtherPeers(exclude string) []PeerConfig {
	others := make([]PeerConfig, 0, len(c.Servers))
	for _, s := range c.Servers {
		if s.Name != exclude {
			others = append(others, s)
		}
	}
	return others
}

// PathPolicy returns the path sync policy matching the longest prefix
// of path. Returns nil when no policy matches or path is empty.
func (c *Config) PathPolicy(path string) *PathSyncPolicy {
	if path == "" {
		return nil
	}

	var best *PathSyncPolicy
	bestLen := -1
	for i := range c.PathSyncPolicy {
		p := &c.PathSyncPolicy[i]
		if strings.HasPrefix(path, p.Prefix) && len(p.Prefix) > bestLen {
			best = p
			bestLen = len(p.Prefix)
		}
	}
	return best
}
