package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registerMarkersCmd(root *cobra.Command) {
	markersCmd := &cobra.Command{
		Use:   "markers",
		Short: "Manage the per-session notification markers",
		Long: `lance remembers per-session facts, such as whether the completion
notification was already shown, so a second watch of the same session
does not repeat it. Markers expire with their session.`,
	}

	markersCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove expired markers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if !a.cfg.Markers.Enabled {
				fmt.Fprintln(out(cmd), "Markers are disabled (markers.enabled=false).")
				return nil
			}

			store, err := a.openMarkers()
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Removed %d expired marker(s) from %s\n", n, a.cfg.Markers.ResolvePath())
			return nil
		},
	})

	markersCmd.AddCommand(&cobra.Command{
		Use:   "forget <session-id>",
		Short: "Forget every marker of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.openMarkers()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Forget(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Forgot markers of session %s\n", args[0])
			return nil
		},
	})

	root.AddCommand(markersCmd)
}
