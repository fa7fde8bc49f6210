package config

import (
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"relative base url", func(c *Config) { c.API.BaseURL = "localhost:8000" }, "api.base_url"},
		{"ftp base url", func(c *Config) { c.API.BaseURL = "ftp://host" }, "api.base_url"},
		{"zero timeout", func(c *Config) { c.API.RequestTimeoutSeconds = 0 }, "api.request_timeout_seconds"},
		{"fast too small", func(c *Config) { c.Polling.FastIntervalMs = 50 }, "polling.fast_interval_ms"},
		{"medium too large", func(c *Config) { c.Polling.MediumIntervalMs = 120_000 }, "polling.medium_interval_ms"},
		{"fast slower than medium", func(c *Config) {
			c.Polling.FastIntervalMs = 3000
			c.Polling.MediumIntervalMs = 2000
		}, "polling.fast_interval_ms"},
		{"negative grace", func(c *Config) { c.Polling.NotFoundGraceMs = -1 }, "polling.not_found_grace_ms"},
		{"tick too small", func(c *Config) { c.Countdown.TickIntervalMs = 10 }, "countdown.tick_interval_ms"},
		{"zero marker ttl", func(c *Config) { c.Markers.DefaultTTLSeconds = 0 }, "markers.default_ttl_seconds"},
		{"zero concurrency", func(c *Config) { c.Download.Concurrency = 0 }, "download.concurrency"},
		{"huge concurrency", func(c *Config) { c.Download.Concurrency = 100 }, "download.concurrency"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"bad output format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatalf("Validate() returned no errors, want error on %s", tt.wantField)
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() errors %v do not include field %s", errs, tt.wantField)
			}
		})
	}
}

func TestValidateAcceptsEdges(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "https://analysis.example.com:8443/prefix"
	cfg.Polling.FastIntervalMs = minIntervalMs
	cfg.Polling.MediumIntervalMs = maxIntervalMs
	cfg.Polling.NotFoundGraceMs = 0
	cfg.Logging.Level = ""
	cfg.Output.Format = ""
	cfg.Download.Concurrency = 32

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "" {
		t.Errorf("empty Error() = %q, want empty", got)
	}

	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if got, want := single.Error(), "a: bad (got: 1)"; got != want {
		t.Errorf("single Error() = %q, want %q", got, want)
	}

	multi := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: "x", Message: "worse"},
	}
	want := "2 validation errors:\n  1. a: bad (got: 1)\n  2. b: worse (got: x)\n"
	if got := multi.Error(); got != want {
		t.Errorf("multi Error() = %q, want %q", got, want)
	}
}
