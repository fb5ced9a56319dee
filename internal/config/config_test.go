package config

import "testing"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Servers = []PeerConfig{
		{Name: "wan", BaseURL: "https://wan.example.com", APIKey: "key-a"},
		{Name: "lan", BaseURL: "http://10.0.0.5:8096", APIKey: "key-b"},
	}
	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_NoServers(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty servers")
	}
}

func TestValidate_DuplicateServerName(t *testing.T) {
	cfg := validConfig()
	cfg.Servers = append(cfg.Servers, PeerConfig{Name: "wan", BaseURL: "https://dup.example.com", APIKey: "x"})
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate server name")
	}
}

func TestValidate_MissingAPIKeyWithoutPasswordless(t *testing.T) {
	cfg := validConfig()
	cfg.Servers[0].APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing api_key")
	}
}

func TestValidate_PasswordlessAllowsEmptyKey(t *testing.T) {
	cfg := validConfig()
	cfg.Servers[0].APIKey = ""
	cfg.Servers[0].Passwordless = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected passwordless server to validate, got: %v", err)
	}
}

func TestValidate_BadJournalMode(t *testing.T) {
	cfg := validConfig()
	cfg.Database.JournalMode = "BOGUS"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid journal_mode")
	}
}

func TestValidate_DefaultJournalModeAppliedWhenEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Database.JournalMode = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected empty journal_mode to default, got: %v", err)
	}
	if cfg.Database.JournalMode != "WAL" {
		t.Fatalf("expected default journal_mode WAL, got %q", cfg.Database.JournalMode)
	}
}

func TestValidate_PathPolicyUnboundedRetryWithDelay(t *testing.T) {
	cfg := validConfig()
	cfg.PathSyncPolicy = []PathSyncPolicy{{Prefix: "/movies/new", AbsentRetryCount: -1, RetryDelaySeconds: 300}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected unbounded policy to validate, got: %v", err)
	}
}

func TestValidate_PathPolicyMissingDelay(t *testing.T) {
	cfg := validConfig()
	cfg.PathSyncPolicy = []PathSyncPolicy{{Prefix: "/movies/new", AbsentRetryCount: 3, RetryDelaySeconds: 0}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing retry_delay_seconds")
	}
}

func TestPathPolicy_LongestPrefixWins(t *testing.T) {
	cfg := validConfig()
	cfg.PathSyncPolicy = []PathSyncPolicy{
		{Prefix: "/movies", AbsentRetryCount: 1, RetryDelaySeconds: 60},
		{Prefix: "/movies/new", AbsentRetryCount: -1, RetryDelaySeconds: 300},
	}

	p := cfg.PathPolicy("/movies/new/latest.mkv")
	if p == nil || p.Prefix != "/movies/new" {
		t.Fatalf("expected longest prefix match /movies/new, got %+v", p)
	}

	p = cfg.PathPolicy("/movies/old.mkv")
	if p == nil || p.Prefix != "/movies" {
		t.Fatalf("expected fallback match /movies, got %+v", p)
	}

	if cfg.PathPolicy("/tv/show.mkv") != nil {
		t.Fatal("expected no match for unrelated prefix")
	}

	if cfg.PathPolicy("") != nil {
		t.Fatal("expected no match for empty path")
	}
}

func TestOtherPeers(t *testing.T) {
	cfg := validConfig()
	others := cfg.OtherPeers("wan")
	if len(others) != 1 || others[0].Name != "lan" {
		t.Fatalf("expected [lan], got %+v", others)
	}
}

func TestPeerLookup(t *testing.T) {
	cfg := validConfig()
	if cfg.Peer("wan") == nil {
		t.Fatal("expected to find peer wan")
	}
	if cfg.Peer("missing") != nil {
		t.Fatal("expected nil for unknown peer")
	}
}
