package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/lance/internal/api"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/lifecycle"
	"github.com/Iron-Ham/lance/internal/tui/styles"
)

func registerSessionCmds(root *cobra.Command) {
	uploadCmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents and create a session",
		Long: `Upload one or more documents to the analysis service. The new session
id is printed. With --start the analysis is started right away; with
--watch lance follows the session until it is deleted or expires.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUpload,
	}
	uploadCmd.Flags().Bool("start", false, "start the analysis after uploading")
	uploadCmd.Flags().Bool("watch", false, "watch the session after uploading")
	uploadCmd.Flags().Bool("plain", false, "with --watch, print one line per event instead of the full-screen view")
	addOutputFlag(uploadCmd)

	startCmd := &cobra.Command{
		Use:   "start <session-id>",
		Short: "Start the analysis of an uploaded session",
		Args:  cobra.ExactArgs(1),
		RunE:  runStart,
	}

	statusCmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the current status of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
	addOutputFlag(statusCmd)

	answerCmd := &cobra.Command{
		Use:   "answer <session-id> [text...]",
		Short: "Answer the questions the analysis is waiting on",
		Long: `Answer the clarifying questions of a session.

Without text, the pending questions are listed. Use "-" to read the
answer from stdin. The text may be a JSON object keyed by question id,
lines of "key: value" where the key is a question id or its number, or
free text sent as one general response.

Examples:
  lance answer 3f2c... "1: 2024" "2: Acme Corp"
  lance answer 3f2c... '{"q_fiscal_year": "2024"}'
  lance answer 3f2c... - < answers.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnswer,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and all of its files",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	deleteCmd.Flags().BoolP("yes", "y", false, "delete without asking for confirmation")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the analysis service is reachable",
		Args:  cobra.NoArgs,
		RunE:  runHealth,
	}
	addOutputFlag(healthCmd)

	root.AddCommand(uploadCmd, startCmd, statusCmd, answerCmd, deleteCmd, healthCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	format, err := a.outputFormat(cmd)
	if err != nil {
		return err
	}
	start, _ := cmd.Flags().GetBool("start")
	watch, _ := cmd.Flags().GetBool("watch")
	plain, _ := cmd.Flags().GetBool("plain")

	res, err := a.client.Upload(cmd.Context(), args)
	if err != nil {
		return err
	}
	a.logger.Info("uploaded documents", "session_id", res.SessionID, "files", res.UploadedFiles)

	err = printRecord(out(cmd), format, res, func(w io.Writer) error {
		fmt.Fprintf(w, "Uploaded %d file(s)\n", res.UploadedFiles)
		fmt.Fprintf(w, "Session: %s\n", res.SessionID)
		return nil
	})
	if err != nil {
		return err
	}

	if watch {
		return watchSession(cmd, a, res.SessionID, watchOptions{start: start, plain: plain})
	}
	if start {
		ack, err := a.client.Start(cmd.Context(), res.SessionID)
		if err != nil {
			return err
		}
		if format == "text" {
			fmt.Fprintln(out(cmd), ackText(ack, "Analysis started."))
		}
	}
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ack, err := a.client.Start(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), ackText(ack, "Analysis started."))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	format, err := a.outputFormat(cmd)
	if err != nil {
		return err
	}
	status, err := a.client.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printRecord(out(cmd), format, status, func(w io.Writer) error {
		writeStatus(w, args[0], status)
		return nil
	})
}

// writeStatus renders a status report as aligned text.
func writeStatus(w io.Writer, sessionID string, s *api.SessionStatus) {
	phase := lifecycle.PhaseOf(s.Status)
	row := func(label, value string) { fmt.Fprintf(w, "%-11s %s\n", label, value) }

	row("Session", sessionID)
	row("Phase", fmt.Sprintf("%s (%s)", styles.PhaseLabel(string(phase)), s.Status))
	progress := fmt.Sprintf("%d%%", s.Progress)
	if step := s.StepLabel(); step != "" {
		progress += "  " + step
	}
	row("Progress", progress)
	if msg := s.DetailedStatusMessage; msg != "" {
		row("Detail", msg)
	}
	if len(s.CompletedSteps) > 0 {
		row("Completed", strings.Join(s.CompletedSteps, ", "))
	}
	if len(s.FailedSteps) > 0 {
		row("Failed", strings.Join(s.FailedSteps, ", "))
	}
	if phase == lifecycle.PhaseError && s.ErrorMessage != "" {
		row("Error", s.ErrorMessage)
	}
	if n := len(s.PendingQuestions); n > 0 && phase == lifecycle.PhaseWaitingForInput {
		row("Questions", fmt.Sprintf("%d pending (lance answer %s)", n, sessionID))
	}
	if n := len(s.Artifacts); n > 0 {
		row("Artifacts", fmt.Sprintf("%d available", n))
	}
	if !s.ExpiresAt.IsZero() {
		row("Expires", humanize.Time(s.ExpiresAt.Time)+" ("+s.ExpiresAt.Local().Format("15:04:05")+")")
	}
}

func runAnswer(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	ctx := cmd.Context()
	status, err := a.client.Status(ctx, id)
	if err != nil {
		return err
	}
	if lifecycle.PhaseOf(status.Status) != lifecycle.PhaseWaitingForInput || len(status.PendingQuestions) == 0 {
		return fmt.Errorf("session %s: %w", id, lerrors.ErrNoPendingQuestions)
	}

	var gate lifecycle.Gate
	gate.Open(status.PendingQuestions)

	if len(args) == 1 {
		writeQuestions(out(cmd), gate.Questions())
		return nil
	}

	text := strings.Join(args[1:], "\n")
	if len(args) == 2 && args[1] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read answers: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return lerrors.NewValidationError("answer text is empty").WithField("text")
	}

	answers := gate.Compose(text)
	ack, err := a.client.Answer(ctx, id, answers)
	if err != nil {
		return err
	}
	a.logger.Info("answers submitted", "session_id", id, "count", len(answers))
	fmt.Fprintln(out(cmd), ackText(ack, fmt.Sprintf("Sent %d answer(s). Resuming analysis.", len(answers))))
	return nil
}

func writeQuestions(w io.Writer, qs []api.Question) {
	fmt.Fprintln(w, "The analysis needs your input:")
	for i, q := range qs {
		fmt.Fprintf(w, "%d. %s", i+1, q.Question)
		if q.ID != "" {
			fmt.Fprintf(w, " [%s]", q.ID)
		}
		fmt.Fprintln(w)
		if q.Context != "" {
			fmt.Fprintf(w, "   %s\n", q.Context)
		}
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm(cmd, fmt.Sprintf("Delete session %s and all of its files? (y/N) ", id)) {
		fmt.Fprintln(out(cmd), "Deletion canceled.")
		return nil
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	res := lifecycle.NewDeleter(id, a.client, a.logger.WithSession(id)).Request(ctx, false)
	switch res.Outcome {
	case lifecycle.OutcomeDeleted, lifecycle.OutcomeAlreadyGone:
		fmt.Fprintln(out(cmd), res.Message)
		a.forgetMarkers(cmd, id)
		return nil
	default:
		return errors.New(res.Message)
	}
}

// forgetMarkers drops the markers of a deleted session. Failures are
// logged only; the markers expire on their own.
func (a *app) forgetMarkers(cmd *cobra.Command, sessionID string) {
	if !a.cfg.Markers.Enabled {
		return
	}
	store, err := a.openMarkers()
	if err != nil {
		a.logger.Warn("failed to open marker store", "error", err.Error())
		return
	}
	defer store.Close()
	if err := store.Forget(cmd.Context(), sessionID); err != nil {
		a.logger.Warn("failed to forget markers", "session_id", sessionID, "error", err.Error())
	}
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(out(cmd), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out(cmd))
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runHealth(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	format, err := a.outputFormat(cmd)
	if err != nil {
		return err
	}
	h, err := a.client.Health(cmd.Context())
	if err != nil {
		return err
	}
	return printRecord(out(cmd), format, h, func(w io.Writer) error {
		fmt.Fprintf(w, "%s is %s", a.client.BaseURL(), h.Status)
		if h.Version != "" {
			fmt.Fprintf(w, " (version %s)", h.Version)
		}
		fmt.Fprintln(w)
		return nil
	})
}

func ackText(ack *api.Ack, fallback string) string {
	if ack != nil && ack.Message != "" {
		return ack.Message
	}
	return fallback
}
