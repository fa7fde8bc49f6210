package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/lance/internal/download"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
)

func registerArtifactCmds(root *cobra.Command) {
	artifactsCmd := &cobra.Command{
		Use:   "artifacts <session-id>",
		Short: "List the results of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runArtifacts,
	}
	addOutputFlag(artifactsCmd)

	downloadCmd := &cobra.Command{
		Use:   "download <session-id> [name...]",
		Short: "Download the results of a session",
		Long: `Download the results of a session into a local directory.

Without names every listed artifact is fetched. Files are written
atomically; a failed download leaves no partial file behind.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDownload,
	}
	downloadCmd.Flags().StringP("dir", "d", "", "destination directory (default from download.dir)")
	downloadCmd.Flags().IntP("concurrency", "j", 0, "parallel downloads (default from download.concurrency)")

	root.AddCommand(artifactsCmd, downloadCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	format, err := a.outputFormat(cmd)
	if err != nil {
		return err
	}
	artifacts, err := a.client.Artifacts(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return printRecord(out(cmd), format, artifacts, func(w io.Writer) error {
		if len(artifacts) == 0 {
			fmt.Fprintln(w, "No results yet.")
			return nil
		}
		width := 0
		for _, art := range artifacts {
			width = max(width, len(art.Filename))
		}
		for _, art := range artifacts {
			created := ""
			if !art.CreatedAt.IsZero() {
				created = humanize.Time(art.CreatedAt.Time)
			}
			fmt.Fprintf(w, "%-*s  %8s  %s\n", width, art.Filename, humanize.Bytes(uint64(max(art.Size, 0))), created)
		}
		return nil
	})
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = a.cfg.Download.ResolveDir()
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = a.cfg.Download.Concurrency
	}

	fetcher := download.NewFetcher(a.client, download.Options{
		Dir:         dir,
		Concurrency: concurrency,
		Logger:      a.logger.WithSession(args[0]),
	})
	results, err := fetcher.Fetch(cmd.Context(), args[0], args[1:]...)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(out(cmd), "No results to download.")
		return nil
	}

	var total int64
	for _, r := range results {
		if r.OK() {
			total += r.Bytes
			fmt.Fprintf(out(cmd), "✓ %s  %s\n", r.Path, r.Size())
			continue
		}
		fmt.Fprintf(errOut(cmd), "✗ %s  %s\n", r.Name, lerrors.UserMessage(r.Err))
	}

	failed := download.Failed(results)
	fmt.Fprintf(out(cmd), "Downloaded %d of %d file(s), %s into %s\n",
		len(results)-failed, len(results), humanize.Bytes(uint64(total)), fetcher.Dir())
	if failed > 0 {
		return fmt.Errorf("%d download(s) failed", failed)
	}
	return nil
}
