package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/lance/internal/api"
	"github.com/Iron-Ham/lance/internal/config"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/lifecycle"
	"github.com/Iron-Ham/lance/internal/logging"
	"github.com/Iron-Ham/lance/internal/markers"
)

// app holds what every service command needs: the loaded config, the
// file logger, and a client for the analysis service.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	client *api.Client
}

// newApp loads the configuration and builds the logger and client.
// Callers must Close the result.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := CreateLogger(config.LogDir(), cfg, errOut(cmd))
	client, err := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.RequestTimeout(),
		Logger:  logger,
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	logger.Debug("command started", "command", cmd.CommandPath(), "base_url", client.BaseURL())
	return &app{cfg: cfg, logger: logger, client: client}, nil
}

// Close flushes the log file.
func (a *app) Close() {
	_ = a.logger.Close()
}

// CreateLogger creates a logger writing into logDir, or a no-op logger
// when logging is disabled. A logger that cannot be created is reported on
// warn and replaced by a no-op logger.
func CreateLogger(logDir string, cfg *config.Config, warn io.Writer) *logging.Logger {
	// Check if logging is enabled
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}

	rotationConfig := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}

	logger, err := logging.NewLogger(logDir, cfg.Logging.Level, rotationConfig)
	if err != nil {
		// Log creation failure shouldn't prevent the command from running
		fmt.Fprintf(warn, "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

// openMarkers opens the durable marker store, or an in-memory one when
// markers are disabled.
func (a *app) openMarkers() (markers.Store, error) {
	if !a.cfg.Markers.Enabled {
		return markers.NewMemoryStore(nil), nil
	}
	store, err := markers.OpenSQLite(a.cfg.Markers.ResolvePath(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open marker store: %w", err)
	}
	return store, nil
}

// purgeMarkers drops expired markers. Failures are logged only.
func (a *app) purgeMarkers(ctx context.Context, store markers.Store) {
	n, err := store.Purge(ctx)
	if err != nil {
		a.logger.Warn("marker purge failed", "error", err.Error())
		return
	}
	if n > 0 {
		a.logger.Debug("purged expired markers", "count", n)
	}
}

// newSession builds a session view wired to the config, logger, and
// marker store, publishing on bus.
func (a *app) newSession(sessionID string, bus *event.Bus, store markers.Store) *lifecycle.Session {
	return lifecycle.New(sessionID, a.client,
		lifecycle.WithLogger(a.logger),
		lifecycle.WithBus(bus),
		lifecycle.WithMarkers(store),
		lifecycle.WithPollIntervals(a.cfg.Polling.FastInterval(), a.cfg.Polling.MediumInterval()),
		lifecycle.WithNotFoundGrace(a.cfg.Polling.NotFoundGrace()),
		lifecycle.WithCountdownTick(a.cfg.Countdown.TickInterval()),
		lifecycle.WithDefaultTTL(a.cfg.Markers.DefaultTTL()),
	)
}

// outputFormat returns the -o flag value, falling back to the configured
// default.
func (a *app) outputFormat(cmd *cobra.Command) (string, error) {
	format := a.cfg.Output.Format
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		format = f.Value.String()
	}
	switch format {
	case "text", "json", "yaml":
		return format, nil
	}
	return "", lerrors.NewValidationError("unsupported output format").
		WithField("output").
		WithValue(format)
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "output format: text, json, yaml (default from output.format)")
}

// printRecord writes v as JSON or YAML, or calls text for the text format.
func printRecord(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}
