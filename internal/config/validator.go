package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "polling.fast_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidOutputFormats returns the list of valid output formats
func ValidOutputFormats() []string {
	return []string{"text", "json", "yaml"}
}

// Bounds shared by the interval checks.
const (
	minIntervalMs = 100
	maxIntervalMs = 60_000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validatePolling()...)
	errors = append(errors, c.validateCountdown()...)
	errors = append(errors, c.validateMarkers()...)
	errors = append(errors, c.validateDownload()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateOutput()...)

	return errors
}

func (c *Config) validateAPI() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.API.BaseURL)
	if c.API.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Value:   c.API.BaseURL,
			Message: "must be an absolute http(s) URL",
		})
	}

	if c.API.RequestTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.request_timeout_seconds",
			Value:   c.API.RequestTimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateInterval reports an interval outside [minIntervalMs, maxIntervalMs].
func validateInterval(field string, ms int) []ValidationError {
	if ms < minIntervalMs || ms > maxIntervalMs {
		return []ValidationError{{
			Field:   field,
			Value:   ms,
			Message: fmt.Sprintf("must be between %d and %d", minIntervalMs, maxIntervalMs),
		}}
	}
	return nil
}

func (c *Config) validatePolling() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateInterval("polling.fast_interval_ms", c.Polling.FastIntervalMs)...)
	errors = append(errors, validateInterval("polling.medium_interval_ms", c.Polling.MediumIntervalMs)...)

	if c.Polling.FastIntervalMs > c.Polling.MediumIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "polling.fast_interval_ms",
			Value:   c.Polling.FastIntervalMs,
			Message: "must not exceed polling.medium_interval_ms",
		})
	}

	if c.Polling.NotFoundGraceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "polling.not_found_grace_ms",
			Value:   c.Polling.NotFoundGraceMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateCountdown() []ValidationError {
	return validateInterval("countdown.tick_interval_ms", c.Countdown.TickIntervalMs)
}

func (c *Config) validateMarkers() []ValidationError {
	var errors []ValidationError

	if c.Markers.DefaultTTLSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "markers.default_ttl_seconds",
			Value:   c.Markers.DefaultTTLSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateDownload() []ValidationError {
	var errors []ValidationError

	if c.Download.Concurrency < 1 || c.Download.Concurrency > 32 {
		errors = append(errors, ValidationError{
			Field:   "download.concurrency",
			Value:   c.Download.Concurrency,
			Message: "must be between 1 and 32",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateOutput() []ValidationError {
	if c.Output.Format != "" && !slices.Contains(ValidOutputFormats(), c.Output.Format) {
		return []ValidationError{{
			Field:   "output.format",
			Value:   c.Output.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutputFormats(), ", ")),
		}}
	}
	return nil
}
