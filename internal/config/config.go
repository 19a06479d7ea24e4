package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the caselight API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Search   SearchConfig   `yaml:"search"`
	Remote   RemoteConfig   `yaml:"remote"`
	LLM      LLMConfig      `yaml:"llm"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// CacheConfig holds result-cache settings.
type CacheConfig struct {
	TTLSec         int `yaml:"ttl_sec"`
	SweepPeriodSec int `yaml:"sweep_period_sec"`
}

// SearchConfig holds orchestration settings.
type SearchConfig struct {
	DefaultLimit  int `yaml:"default_limit"`
	MaxLimit      int `yaml:"max_limit"`
	LocalMinDocs  int `yaml:"local_min_docs"`
	ContextWindow int `yaml:"context_window"`
}

// RemoteConfig holds remote search provider settings.
type RemoteConfig struct {
	BaseURL    string `yaml:"base_url"`
	Index      string `yaml:"index"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxLimit   int    `yaml:"max_limit"`
}

// LLMConfig holds embedding and generation provider settings
// (OpenAI-compatible API).
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimensions     int    `yaml:"dimensions"`
	ChatModel      string `yaml:"chat_model"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Streaming answers can run long; the write timeout bounds the whole
		// SSE response, not a single event.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "caselight:"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.SweepPeriodSec <= 0 {
		c.Cache.SweepPeriodSec = 600
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.LocalMinDocs <= 0 {
		c.Search.LocalMinDocs = 100
	}
	if c.Search.ContextWindow <= 0 {
		c.Search.ContextWindow = 5
	}
	if c.Remote.Index == "" {
		c.Remote.Index = "epstein_files"
	}
	if c.Remote.TimeoutSec <= 0 {
		c.Remote.TimeoutSec = 30
	}
	if c.Remote.MaxLimit <= 0 {
		c.Remote.MaxLimit = 100
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if c.LLM.Dimensions <= 0 {
		c.LLM.Dimensions = 768
	}
	if c.LLM.ChatModel == "" {
		c.LLM.ChatModel = "gpt-4o-mini"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf(
			"search.default_limit (%d) must not exceed search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
