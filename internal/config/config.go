// Package config holds the process configuration for the dispatch AI core.
//
// DESIGN: Configuration is loaded once at startup and passed by reference into
// the registry, ledger, router, and orchestrator. There is no ambient global
// state; credential lookups and budget ceilings all flow through this struct.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Budget    BudgetConfig    `yaml:"budget"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings for the thin outer surface.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ProvidersConfig holds per-vendor credentials and endpoints.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
}

// ProviderConfig configures a single LLM vendor.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds a single outbound provider call. A timeout is the
	// failure trigger that advances the router cascade.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// HasCredential reports whether a usable API key is configured.
// Empty and placeholder-sized values are treated as absent.
func (p ProviderConfig) HasCredential() bool {
	return len(strings.TrimSpace(p.APIKey)) >= MinCredentialLen
}

// BudgetConfig holds spend governance settings.
type BudgetConfig struct {
	MonthlyUSD float64 `yaml:"monthly_usd"`
}

// StorageConfig points at the SQLite database file.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig controls the JSONL side-channel for router attempts and
// swallowed ledger failures.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}

// Load reads, env-expands, and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML config bytes with ${VAR} expansion applied first.
func Parse(data []byte) (*Config, error) {
	expanded := ExpandEnvWithDefaults(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerReadTimeout,
			WriteTimeout: DefaultServerWriteTimeout,
		},
		Providers: ProvidersConfig{
			OpenAI:    ProviderConfig{APIKey: os.Getenv("OPENAI_API_KEY"), RequestTimeout: DefaultProviderTimeout},
			Anthropic: ProviderConfig{APIKey: os.Getenv("ANTHROPIC_API_KEY"), RequestTimeout: DefaultProviderTimeout},
		},
		Budget: BudgetConfig{
			MonthlyUSD: DefaultMonthlyBudgetUSD,
		},
		Storage: StorageConfig{
			Path: DefaultStoragePath,
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Budget.MonthlyUSD < 0 {
		return fmt.Errorf("budget.monthly_usd must be >= 0, got %f", c.Budget.MonthlyUSD)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvWithDefaults expands ${VAR} and ${VAR:-default} references.
// Unset variables without a default expand to the empty string.
func ExpandEnvWithDefaults(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}
		return groups[3]
	})
}
