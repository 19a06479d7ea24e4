package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Remote:   RemoteConfig{BaseURL: "https://analytics.example.com/api/v1"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingRemoteBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.BaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing remote base_url")
	}
}

func TestValidate_DefaultLimitAboveMax(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultLimit = 50
	cfg.Search.MaxLimit = 20

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for default_limit > max_limit")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Cache.TTLSec != 3600 {
		t.Errorf("expected TTLSec=3600, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Search.DefaultLimit != 20 {
		t.Errorf("expected DefaultLimit=20, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.MaxLimit != 100 {
		t.Errorf("expected MaxLimit=100, got %d", cfg.Search.MaxLimit)
	}
	if cfg.Search.LocalMinDocs != 100 {
		t.Errorf("expected LocalMinDocs=100, got %d", cfg.Search.LocalMinDocs)
	}
	if cfg.Search.ContextWindow != 5 {
		t.Errorf("expected ContextWindow=5, got %d", cfg.Search.ContextWindow)
	}
	if cfg.Remote.Index != "epstein_files" {
		t.Errorf("expected Index=epstein_files, got %s", cfg.Remote.Index)
	}
	if cfg.Remote.MaxLimit != 100 {
		t.Errorf("expected Remote.MaxLimit=100, got %d", cfg.Remote.MaxLimit)
	}
	if cfg.Database.KeyPrefix != "caselight:" {
		t.Errorf("expected KeyPrefix=caselight:, got %s", cfg.Database.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CASELIGHT_TEST_KEY", "secret")

	in := []byte("api_key: ${CASELIGHT_TEST_KEY}\nurl: ${MISSING_VAR:-http://fallback}")
	out := string(expandEnvVars(in))

	if out != "api_key: secret\nurl: http://fallback" {
		t.Errorf("unexpected expansion: %q", out)
	}
}
