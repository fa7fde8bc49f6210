package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete lance configuration
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Polling   PollingConfig   `mapstructure:"polling" yaml:"polling"`
	Countdown CountdownConfig `mapstructure:"countdown" yaml:"countdown"`
	Markers   MarkersConfig   `mapstructure:"markers" yaml:"markers"`
	Download  DownloadConfig  `mapstructure:"download" yaml:"download"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
}

// APIConfig controls how the analysis service is reached
type APIConfig struct {
	// BaseURL is the service root; endpoints live under {BaseURL}/api
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// RequestTimeoutSeconds bounds every request, including downloads (default: 30)
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// PollingConfig controls status polling cadence
type PollingConfig struct {
	// FastIntervalMs is used while the session is processing or waiting for input (default: 1000)
	FastIntervalMs int `mapstructure:"fast_interval_ms" yaml:"fast_interval_ms"`
	// MediumIntervalMs is used while files are still uploading (default: 2000)
	MediumIntervalMs int `mapstructure:"medium_interval_ms" yaml:"medium_interval_ms"`
	// NotFoundGraceMs is how long the not-found message stays up before navigating away (default: 3000)
	NotFoundGraceMs int `mapstructure:"not_found_grace_ms" yaml:"not_found_grace_ms"`
}

// CountdownConfig controls the expiry countdown
type CountdownConfig struct {
	// TickIntervalMs is how often remaining time is recomputed (default: 1000)
	TickIntervalMs int `mapstructure:"tick_interval_ms" yaml:"tick_interval_ms"`
}

// MarkersConfig controls the durable "already notified" store
type MarkersConfig struct {
	// Enabled persists markers in SQLite so they survive restarts (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Path is the SQLite database file. Empty means {state dir}/markers.db
	Path string `mapstructure:"path" yaml:"path"`
	// DefaultTTLSeconds is the marker lifetime when the session expiry is unknown (default: 3600)
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds" yaml:"default_ttl_seconds"`
}

// DownloadConfig controls artifact downloads
type DownloadConfig struct {
	// Dir is where artifacts are written (default: ".")
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Concurrency limits parallel downloads (default: 4)
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated backups (default: true)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// OutputConfig controls command output
type OutputConfig struct {
	// Format is the default for commands that print records: "text", "json", "yaml"
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:               "http://localhost:8000",
			RequestTimeoutSeconds: 30,
		},
		Polling: PollingConfig{
			FastIntervalMs:   1000,
			MediumIntervalMs: 2000,
			NotFoundGraceMs:  3000,
		},
		Countdown: CountdownConfig{
			TickIntervalMs: 1000,
		},
		Markers: MarkersConfig{
			Enabled:           true,
			Path:              "",
			DefaultTTLSeconds: 3600, // matches the service's session TTL
		},
		Download: DownloadConfig{
			Dir:         ".",
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// RequestTimeout returns the request timeout as a time.Duration
func (c *APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// FastInterval returns the fast poll interval as a time.Duration
func (c *PollingConfig) FastInterval() time.Duration {
	return time.Duration(c.FastIntervalMs) * time.Millisecond
}

// MediumInterval returns the medium poll interval as a time.Duration
func (c *PollingConfig) MediumInterval() time.Duration {
	return time.Duration(c.MediumIntervalMs) * time.Millisecond
}

// NotFoundGrace returns the not-found grace delay as a time.Duration
func (c *PollingConfig) NotFoundGrace() time.Duration {
	return time.Duration(c.NotFoundGraceMs) * time.Millisecond
}

// TickInterval returns the countdown tick as a time.Duration
func (c *CountdownConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// DefaultTTL returns the fallback marker lifetime as a time.Duration
func (c *MarkersConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// ResolvePath returns the marker database path, defaulting into the state dir.
// Supports ~ for home directory expansion.
func (c *MarkersConfig) ResolvePath() string {
	if c.Path == "" {
		return filepath.Join(StateDir(), "markers.db")
	}
	return expandHome(c.Path)
}

// ResolveDir returns the download directory with ~ expanded.
func (c *DownloadConfig) ResolveDir() string {
	if c.Dir == "" {
		return "."
	}
	return expandHome(c.Dir)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("api.base_url", defaults.API.BaseURL)
	viper.SetDefault("api.request_timeout_seconds", defaults.API.RequestTimeoutSeconds)

	viper.SetDefault("polling.fast_interval_ms", defaults.Polling.FastIntervalMs)
	viper.SetDefault("polling.medium_interval_ms", defaults.Polling.MediumIntervalMs)
	viper.SetDefault("polling.not_found_grace_ms", defaults.Polling.NotFoundGraceMs)

	viper.SetDefault("countdown.tick_interval_ms", defaults.Countdown.TickIntervalMs)

	viper.SetDefault("markers.enabled", defaults.Markers.Enabled)
	viper.SetDefault("markers.path", defaults.Markers.Path)
	viper.SetDefault("markers.default_ttl_seconds", defaults.Markers.DefaultTTLSeconds)

	viper.SetDefault("download.dir", defaults.Download.Dir)
	viper.SetDefault("download.concurrency", defaults.Download.Concurrency)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("output.format", defaults.Output.Format)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lance")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lance"
	}
	return filepath.Join(home, ".config", "lance")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory for logs and the marker database
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "lance")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lance"
	}
	return filepath.Join(home, ".local", "state", "lance")
}

// LogDir returns the directory holding lance.log and its backups
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}
