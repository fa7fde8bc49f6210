package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/tui"
)

func registerWatchCmd(root *cobra.Command) {
	watchCmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session until it is deleted or expires",
		Long: `Follow a session while the analysis runs.

lance polls the service, shows progress, prompts for answers when the
pipeline asks questions, lists the results when they are ready, and
counts down to the session's expiry. When the session expires it is
deleted automatically.

On a terminal a full-screen view is used; keys: s start, r refresh,
a answer, d delete, q quit. With --plain, or when output is not a
terminal, one line is printed per event and stdin lines are read as
answers or as the r, d, and q commands.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			start, _ := cmd.Flags().GetBool("start")
			plain, _ := cmd.Flags().GetBool("plain")
			return watchSession(cmd, a, args[0], watchOptions{start: start, plain: plain})
		},
	}
	watchCmd.Flags().Bool("start", false, "start the analysis once the session is loaded")
	watchCmd.Flags().Bool("plain", false, "print one line per event instead of the full-screen view")
	root.AddCommand(watchCmd)
}

type watchOptions struct {
	start bool
	plain bool
}

// watchSession runs a session view until it navigates away, the user
// quits, or the process is interrupted.
func watchSession(cmd *cobra.Command, a *app, sessionID string, opts watchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openMarkers()
	if err != nil {
		return err
	}
	defer store.Close()
	a.purgeMarkers(ctx, store)

	bus := event.NewBus(a.logger)
	sess := a.newSession(sessionID, bus, store)
	a.logger.Info("watching session", "session_id", sessionID, "start", opts.start)

	var res tui.Outcome
	if useFullScreen(cmd, opts.plain) {
		res, err = tui.New(sess, bus, tui.Options{StartAnalysis: opts.start, AltScreen: true}).Run(ctx)
		if err == nil && res.Failure != "" {
			err = lerrors.NewPipelineError(res.Failure).WithSessionID(sessionID)
		}
	} else {
		res, err = tui.RunPlain(ctx, sess, bus, tui.PlainOptions{
			Options: tui.Options{StartAnalysis: opts.start},
			Out:     out(cmd),
			In:      cmd.InOrStdin(),
		})
	}

	if res.Navigate != nil {
		a.logger.Info("watch ended", "session_id", sessionID, "reason", res.Navigate.Reason)
	}
	return err
}

// useFullScreen reports whether the bubbletea view can take over the
// terminal.
func useFullScreen(cmd *cobra.Command, plain bool) bool {
	if plain {
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && isTerminal(f) && isTerminal(os.Stdin)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
