// Package config provides CLI commands for managing lance configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/lance/internal/config"
)

// keyKind is how a settable value is parsed.
type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
	kindLevel
	kindFormat
)

// settableKeys lists every key accepted by "config set" and "config reset".
var settableKeys = map[string]keyKind{
	"api.base_url":                kindString,
	"api.request_timeout_seconds": kindInt,
	"polling.fast_interval_ms":    kindInt,
	"polling.medium_interval_ms":  kindInt,
	"polling.not_found_grace_ms":  kindInt,
	"countdown.tick_interval_ms":  kindInt,
	"markers.enabled":             kindBool,
	"markers.path":                kindString,
	"markers.default_ttl_seconds": kindInt,
	"download.dir":                kindString,
	"download.concurrency":        kindInt,
	"logging.enabled":             kindBool,
	"logging.level":               kindLevel,
	"logging.max_size_mb":         kindInt,
	"logging.max_backups":         kindInt,
	"logging.compress":            kindBool,
	"output.format":               kindFormat,
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or modify lance configuration",
		Long: `View or modify lance configuration.

Settings are read from ~/.config/lance/config.yaml (or $XDG_CONFIG_HOME/lance),
then overridden by LANCE_* environment variables and command flags.`,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  lance config set api.base_url https://analysis.example.com
  lance config set polling.fast_interval_ms 500
  lance config set markers.enabled false

Valid keys:
  ` + strings.Join(sortedKeys(), "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		Long:  `Create a default config file at ~/.config/lance/config.yaml with all available options.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset [key]",
		Short: "Reset configuration to defaults",
		Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  lance config reset                  # Reset all to defaults
  lance config reset logging.level    # Reset only logging.level to default`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigReset,
	})

	parent.AddCommand(configCmd)
}

func sortedKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// parseValue validates value for key and returns it typed for viper.
func parseValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'lance config set --help' to see valid keys", key)
	}

	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case kindLevel:
		v := strings.ToLower(value)
		if !slices.Contains(appconfig.ValidLogLevels(), v) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return v, nil
	case kindFormat:
		v := strings.ToLower(value)
		if !slices.Contains(appconfig.ValidOutputFormats(), v) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidOutputFormats(), ", "))
		}
		return v, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	typed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	viper.Set(key, typed)
	// Reject values that parse but break validation, e.g. a relative base URL
	if _, err := appconfig.Load(); err != nil {
		return err
	}

	path, err := writeConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typed)
	fmt.Fprintf(out, "Config saved to %s\n", path)
	return nil
}

// configHeader starts every generated config file.
const configHeader = `# lance configuration
#
# Every key can be overridden with a LANCE_* environment variable,
# e.g. LANCE_API_BASE_URL for api.base_url.

`

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'lance config set' to modify values", configFile)
	}

	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(appconfig.Default()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if err := os.WriteFile(configFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize lance's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", appconfig.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: LANCE_* (e.g., LANCE_API_BASE_URL)")
	fmt.Fprintf(out, "State directory: %s\n", appconfig.StateDir())
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	defaults := defaultValues()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for key, value := range defaults {
			viper.Set(key, value)
		}
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		key := args[0]
		value, ok := defaults[key]
		if !ok {
			return fmt.Errorf("unknown configuration key: %s\nRun 'lance config set --help' to see valid keys", key)
		}
		viper.Set(key, value)
		fmt.Fprintf(out, "Reset %s to default: %v\n", key, value)
	}

	path, err := writeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config saved to %s\n", path)
	return nil
}

// defaultValues maps every settable key to its default.
func defaultValues() map[string]any {
	d := appconfig.Default()
	return map[string]any{
		"api.base_url":                d.API.BaseURL,
		"api.request_timeout_seconds": d.API.RequestTimeoutSeconds,
		"polling.fast_interval_ms":    d.Polling.FastIntervalMs,
		"polling.medium_interval_ms":  d.Polling.MediumIntervalMs,
		"polling.not_found_grace_ms":  d.Polling.NotFoundGraceMs,
		"countdown.tick_interval_ms":  d.Countdown.TickIntervalMs,
		"markers.enabled":             d.Markers.Enabled,
		"markers.path":                d.Markers.Path,
		"markers.default_ttl_seconds": d.Markers.DefaultTTLSeconds,
		"download.dir":                d.Download.Dir,
		"download.concurrency":        d.Download.Concurrency,
		"logging.enabled":             d.Logging.Enabled,
		"logging.level":               d.Logging.Level,
		"logging.max_size_mb":         d.Logging.MaxSizeMB,
		"logging.max_backups":         d.Logging.MaxBackups,
		"logging.compress":            d.Logging.Compress,
		"output.format":               d.Output.Format,
	}
}

// writeConfig saves the current viper settings to the user's config file
// and returns its path.
func writeConfig() (string, error) {
	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
