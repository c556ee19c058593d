// Package config loads the bankerd daemon configuration from YAML files with
// environment variable expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bidstream-io/localbanker/internal/domain"
)

// Config holds the bankerd configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Banker  BankerConfig  `yaml:"banker"`
	Journal JournalConfig `yaml:"journal"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig holds the admin API server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// LedgerConfig holds the remote ledger connection settings.
type LedgerConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	MaxConnections int    `yaml:"max_connections"`
}

// BankerConfig holds the budget cache settings.
type BankerConfig struct {
	Role          string `yaml:"role"` // Router, PostAuction
	AccountSuffix string `yaml:"account_suffix"`
	// SpendRateMicros is the default per-account spend-rate limit in
	// micro-units. 0 = library default.
	SpendRateMicros int64 `yaml:"spend_rate_micros"`
	Debug           bool  `yaml:"debug"`

	ReauthorizeIntervalMs int `yaml:"reauthorize_interval_ms"`
	SpendUpdateIntervalMs int `yaml:"spend_update_interval_ms"`
	RegisterIntervalMs    int `yaml:"register_interval_ms"`
}

// JournalConfig holds the optional spend journal settings. An empty Addr
// disables journaling.
type JournalConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	TTLHours int    `yaml:"ttl_hours"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev,
// prod).
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting
// to "local".
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
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Ledger.TimeoutMs <= 0 {
		c.Ledger.TimeoutMs = 1000
	}
	if c.Ledger.MaxConnections <= 0 {
		c.Ledger.MaxConnections = 8
	}
	if c.Banker.Role == "" {
		c.Banker.Role = string(domain.RoleRouter)
	}
	if c.Banker.AccountSuffix == "" {
		c.Banker.AccountSuffix = strings.ToLower(c.Banker.Role)
	}
	if c.Journal.TTLHours <= 0 {
		c.Journal.TTLHours = 48
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Ledger.BaseURL == "" {
		return fmt.Errorf("ledger.base_url is required")
	}
	if !domain.Role(c.Banker.Role).Valid() {
		return fmt.Errorf("banker.role must be %q or %q, got %q",
			domain.RoleRouter, domain.RolePostAuction, c.Banker.Role)
	}
	if c.Banker.SpendRateMicros < 0 {
		return fmt.Errorf("banker.spend_rate_micros must not be negative, got %d", c.Banker.SpendRateMicros)
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

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// variable values.
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
