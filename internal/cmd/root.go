// Package cmd implements the lance command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/Iron-Ham/lance/internal/cmd/config"
	"github.com/Iron-Ham/lance/internal/config"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
)

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lance",
		Short: "Client for the document analysis service",
		Long: `lance uploads documents to the analysis service, follows a session
while the pipeline runs, answers the questions it raises, downloads the
results, and deletes the session when you are done.

Sessions expire on the service after their retention period. While a
session is watched, lance counts down to the expiry and removes the
session when it passes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/lance/config.yaml)")
	flags.String("base-url", "", "analysis service URL (overrides api.base_url)")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides logging.level)")

	registerSessionCmds(root)
	registerWatchCmd(root)
	registerArtifactCmds(root)
	registerLogsCmd(root)
	registerMarkersCmd(root)
	configcmd.Register(root)

	return root
}

// Execute runs the root command and prints a failure to stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+describe(err))
	}
	return err
}

// describe returns the text shown for a failed command. Service failures
// use their generic user message; the detail goes to the log.
func describe(err error) string {
	switch lerrors.Classify(err) {
	case lerrors.KindServer, lerrors.KindNetwork, lerrors.KindPipeline:
		return lerrors.UserMessage(err)
	}
	return err.Error()
}

func initConfig(cmd *cobra.Command) error {
	viper.Reset()
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	flags := cmd.Root().PersistentFlags()
	if f := flags.Lookup("base-url"); f != nil && f.Changed {
		viper.Set("api.base_url", f.Value.String())
	}
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		viper.Set("logging.level", f.Value.String())
	}

	cfgFile, _ := flags.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("LANCE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., LANCE_API_BASE_URL for api.base_url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// out and errOut keep command output capturable in tests.
func out(cmd *cobra.Command) io.Writer    { return cmd.OutOrStdout() }
func errOut(cmd *cobra.Command) io.Writer { return cmd.ErrOrStderr() }
