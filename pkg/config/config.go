package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for member-portal
type Config struct {
	// Server settings
	ListenAddr   string `yaml:"listen_addr" env:"PORTAL_LISTEN"`
	DatabasePath string `yaml:"database_path" env:"PORTAL_DB"`

	// Inactivity monitoring
	SessionTimeout time.Duration `yaml:"session_timeout" env:"PORTAL_SESSION_TIMEOUT"`
	ThrottleWindow time.Duration `yaml:"throttle_window" env:"PORTAL_THROTTLE_WINDOW"`

	// Abuse protection
	SignIn        RateLimitConfig `yaml:"sign_in"`
	FormRateLimit RateLimitConfig `yaml:"form_rate_limit"`

	// Admin alert settings
	NtfyServer  string          `yaml:"ntfy_server" env:"PORTAL_NTFY_SERVER"`
	NtfyTopic   string          `yaml:"ntfy_topic" env:"PORTAL_NTFY_TOPIC"`
	Quiet       bool            `yaml:"quiet" env:"PORTAL_QUIET"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	BatchWindow time.Duration   `yaml:"batch_window"`

	Log LogConfig `yaml:"log"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxMessages int           `yaml:"max_messages"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Verbose bool `yaml:"verbose" env:"PORTAL_VERBOSE"`
	JSON    bool `yaml:"json" env:"PORTAL_LOG_JSON"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":8080",
		DatabasePath:   "member-portal.db",
		SessionTimeout: 30 * time.Minute,
		ThrottleWindow: time.Second,
		SignIn: RateLimitConfig{
			Window:      time.Minute,
			MaxMessages: 5,
		},
		FormRateLimit: RateLimitConfig{
			Window:      10 * time.Second,
			MaxMessages: 3,
		},
		NtfyServer: "https://ntfy.sh",
		RateLimit: RateLimitConfig{
			Window:      1 * time.Minute,
			MaxMessages: 5,
		},
		BatchWindow: 5 * time.Second,
	}
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFrom loads configuration from the given file, if it exists, and the
// environment.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check for explicit config path
	if path := os.Getenv("PORTAL_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "member-portal", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "member-portal", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (flag, env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if addr := os.Getenv("PORTAL_LISTEN"); addr != "" {
		cfg.ListenAddr = addr
	}

	if db := os.Getenv("PORTAL_DB"); db != "" {
		cfg.DatabasePath = db
	}

	if timeout := os.Getenv("PORTAL_SESSION_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid PORTAL_SESSION_TIMEOUT: %w", err)
		}
		cfg.SessionTimeout = d
	}

	if window := os.Getenv("PORTAL_THROTTLE_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return fmt.Errorf("invalid PORTAL_THROTTLE_WINDOW: %w", err)
		}
		cfg.ThrottleWindow = d
	}

	if server := os.Getenv("PORTAL_NTFY_SERVER"); server != "" {
		cfg.NtfyServer = server
	}

	if topic := os.Getenv("PORTAL_NTFY_TOPIC"); topic != "" {
		cfg.NtfyTopic = topic
	}

	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{"PORTAL_QUIET", &cfg.Quiet},
		{"PORTAL_VERBOSE", &cfg.Log.Verbose},
		{"PORTAL_LOG_JSON", &cfg.Log.JSON},
	} {
		if err := parseBoolEnv(b.name, b.dst); err != nil {
			return err
		}
	}

	return nil
}

func parseBoolEnv(name string, dst *bool) error {
	value := os.Getenv(name)
	if value == "" {
		return nil
	}

	switch value {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		return fmt.Errorf("invalid %s value: %q (use true/false)", name, value)
	}
	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	if cfg.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	if cfg.SessionTimeout <= 0 {
		return fmt.Errorf("session_timeout must be positive")
	}

	if cfg.ThrottleWindow <= 0 {
		return fmt.Errorf("throttle_window must be positive")
	}

	if cfg.ThrottleWindow >= cfg.SessionTimeout {
		return fmt.Errorf("throttle_window must be shorter than session_timeout")
	}

	for name, rl := range map[string]RateLimitConfig{
		"rate_limit":      cfg.RateLimit,
		"sign_in":         cfg.SignIn,
		"form_rate_limit": cfg.FormRateLimit,
	} {
		if rl.MaxMessages < 0 {
			return fmt.Errorf("%s.max_messages must be non-negative", name)
		}
		if rl.Window < 0 {
			return fmt.Errorf("%s.window must be non-negative", name)
		}
	}

	if cfg.BatchWindow < 0 {
		return fmt.Errorf("batch_window must be non-negative")
	}

	return nil
}
