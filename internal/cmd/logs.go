package cmd

import (
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/lance/internal/config"
	"github.com/Iron-Ham/lance/internal/logging"
)

func registerLogsCmd(root *cobra.Command) {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "View lance logs",
		Long: `View and filter the lance log, including rotated and compressed backups.

Examples:
  # Show the last 50 entries
  lance logs

  # Show everything logged for one session
  lance logs -s 3f2c... -n 0

  # Filter by log level
  lance logs --level warn

  # Show entries of the last hour from the poller
  lance logs --since 1h --component poller

  # Search messages
  lance logs --grep "delete|expired"`,
		Args: cobra.NoArgs,
		RunE: runLogs,
	}

	flags := logsCmd.Flags()
	flags.StringP("session", "s", "", "only entries for this session ID")
	flags.IntP("tail", "n", 50, "number of entries to show (0 for all)")
	flags.String("level", "", "minimum level (debug/info/warn/error)")
	flags.String("since", "", "only entries newer than this duration (e.g., 1h, 30m)")
	flags.String("component", "", "only entries from this component (e.g., poller, deleter)")
	flags.String("grep", "", "only entries whose message matches this pattern (regex)")
	flags.StringP("output", "o", "text", "output format: text, json")

	root.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	sessionID, _ := flags.GetString("session")
	tail, _ := flags.GetInt("tail")
	level, _ := flags.GetString("level")
	since, _ := flags.GetString("since")
	component, _ := flags.GetString("component")
	grep, _ := flags.GetString("grep")
	format, _ := flags.GetString("output")

	filter := logging.LogFilter{SessionID: sessionID, Component: component}
	if level != "" {
		filter.Level = logging.ParseLevel(level)
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return fmt.Errorf("invalid --since duration: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	var pattern *regexp.Regexp
	if grep != "" {
		var err error
		if pattern, err = regexp.Compile(grep); err != nil {
			return fmt.Errorf("invalid --grep pattern: %w", err)
		}
	}

	logDir := config.LogDir()
	entries, err := logging.ReadLogs(logDir)
	if err != nil {
		fmt.Fprintf(out(cmd), "No logs found.\nLogs are stored in: %s\n", logDir)
		return nil
	}

	entries = logging.FilterLogs(entries, filter)
	if pattern != nil {
		kept := entries[:0]
		for _, e := range entries {
			if pattern.MatchString(e.Message) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	return logging.WriteEntries(out(cmd), entries, format)
}
