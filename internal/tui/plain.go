package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/lifecycle"
	"github.com/Iron-Ham/lance/internal/tui/styles"
)

// PlainOptions configures a plain watch.
type PlainOptions struct {
	Options

	// Out receives one line per event.
	Out io.Writer
	// In, when set, is read line by line: while questions are open a line
	// is sent as the answer, otherwise "r" refreshes, "d" deletes and "q"
	// quits.
	In io.Reader
}

// RunPlain watches the session without a full-screen UI. It returns when
// the session navigates away, the analysis fails, "q" is read, or ctx is
// done. The session is closed before RunPlain returns.
func RunPlain(ctx context.Context, ctrl Controller, bus *event.Bus, opts PlainOptions) (Outcome, error) {
	defer ctrl.Close()

	events := make(chan event.Event, 64)
	done := make(chan struct{})
	sub := bus.SubscribeAll(func(e event.Event) {
		select {
		case events <- e:
		case <-done:
		}
	})
	defer func() {
		close(done)
		bus.Unsubscribe(sub)
	}()

	var lines chan string
	if opts.In != nil {
		lines = make(chan string)
		// The reader goroutine ends at EOF; a terminal stdin keeps it
		// parked until the process exits.
		go func() {
			defer close(lines)
			sc := bufio.NewScanner(opts.In)
			for sc.Scan() {
				select {
				case lines <- sc.Text():
				case <-done:
					return
				}
			}
		}()
	}

	p := &plainPrinter{w: opts.Out}
	p.line(styles.Title.Render("lance")+" "+styles.Muted.Render("watching "+ctrl.ID()), nil)

	if err := ctrl.Start(ctx); err != nil {
		return Outcome{}, err
	}
	if opts.StartAnalysis {
		if err := ctrl.StartAnalysis(ctx); err != nil {
			return Outcome{}, err
		}
	}

	w := &plainWatch{ctrl: ctrl, printer: p, prompt: opts.In != nil}
	for {
		select {
		case <-ctx.Done():
			return w.out, nil

		case e := <-events:
			if done, err := w.handle(e); done {
				return w.out, err
			}

		case text, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			// Apply queued events first so the line acts on the latest state.
			for drained := false; !drained; {
				select {
				case e := <-events:
					if done, err := w.handle(e); done {
						return w.out, err
					}
				default:
					drained = true
				}
			}
			if w.input(ctx, strings.TrimSpace(text)) {
				return w.out, nil
			}
		}
	}
}

// plainWatch is the state of one plain watch loop.
type plainWatch struct {
	ctrl    Controller
	printer *plainPrinter
	prompt  bool
	pending bool
	out     Outcome
}

// handle prints e and reports whether the watch is over.
func (w *plainWatch) handle(e event.Event) (bool, error) {
	w.printer.print(e)
	switch e := e.(type) {
	case event.StatusEvent:
		w.out.Phase = e.Phase
	case event.FailedEvent:
		w.out.Failure = e.Message
		return true, lerrors.NewPipelineError(e.Message).WithSessionID(w.ctrl.ID())
	case event.QuestionsPendingEvent:
		w.pending = true
		if w.prompt {
			w.printer.line(styles.Muted.Render("Type your answers and press Enter."), nil)
		}
	case event.QuestionsAnsweredEvent, event.QuestionsResolvedEvent:
		w.pending = false
	case event.NavigateEvent:
		w.out.Navigate = &e
		return true, nil
	}
	return false, nil
}

// input acts on one line read from the user and reports whether to quit.
func (w *plainWatch) input(ctx context.Context, text string) bool {
	switch {
	case text == "":
	case w.pending:
		// Service failures are printed from the QuestionsFailedEvent.
		if _, err := w.ctrl.SubmitAnswers(ctx, text); err != nil && lerrors.Classify(err) == lerrors.KindUnknown {
			w.printer.line(styles.ErrorMsg.Render(lerrors.UserMessage(err)), nil)
		}
	case text == "r":
		w.ctrl.Refresh()
	case text == "d":
		if res := w.ctrl.Delete(ctx); res.Outcome == lifecycle.OutcomeSkipped {
			w.printer.line(styles.WarningMsg.Render(res.Message), nil)
		}
	case text == "q":
		return true
	}
	return false
}

// plainPrinter writes one timestamped line per event.
type plainPrinter struct {
	w io.Writer
}

func (p *plainPrinter) line(text string, at *time.Time) {
	ts := time.Now()
	if at != nil {
		ts = *at
	}
	fmt.Fprintln(p.w, styles.Timestamp.Render(ts.Format("15:04:05"))+" "+text)
}

func (p *plainPrinter) print(e event.Event) {
	text, ok := FormatEvent(e)
	if !ok {
		return
	}
	at := e.Timestamp()
	for i, l := range strings.Split(text, "\n") {
		if i == 0 {
			p.line(l, &at)
			continue
		}
		fmt.Fprintln(p.w, "         "+l)
	}
}

// FormatEvent renders an event as styled text for line output. It reports
// false for events that are not worth a line.
func FormatEvent(e event.Event) (string, bool) {
	switch e := e.(type) {
	case event.StatusEvent:
		if e.Previous == e.Phase && e.Phase != event.PhaseProcessing {
			return "", false
		}
		text := styles.Badge(string(e.Phase))
		if e.Phase == event.PhaseProcessing {
			text += fmt.Sprintf(" %3d%%", e.Status.Progress)
			if step := e.Status.StepLabel(); step != "" {
				text += " " + step
			}
		}
		return text, true

	case event.CompletedEvent:
		if e.Phase == event.PhaseRequiresReview {
			return styles.SuccessMsg.Render("Analysis complete. Some results need your review."), true
		}
		return styles.SuccessMsg.Render("Analysis complete."), true

	case event.FailedEvent:
		return styles.ErrorMsg.Render(e.Message), true

	case event.ConnectivityEvent:
		return styles.WarningMsg.Render(e.Message), true

	case event.RecoveredEvent:
		return styles.SuccessMsg.Render("Connection restored."), true

	case event.NotFoundEvent:
		return styles.WarningMsg.Render(e.Message), true

	case event.QuestionsPendingEvent:
		var b strings.Builder
		b.WriteString(styles.WarningMsg.Render("The analysis needs your input:"))
		for i, q := range e.Questions {
			fmt.Fprintf(&b, "\n%d. %s", i+1, q.Question)
		}
		return b.String(), true

	case event.QuestionsAnsweredEvent:
		return styles.SuccessMsg.Render("Answers sent. Resuming analysis."), true

	case event.QuestionsFailedEvent:
		return styles.ErrorMsg.Render(e.Message), true

	case event.QuestionsResolvedEvent:
		if text, ok := resolvedNotice(e); ok {
			return styles.Muted.Render(text), true
		}
		return "", false

	case event.ArtifactsReadyEvent:
		var b strings.Builder
		b.WriteString(styles.SectionTitle.Render("Results ready:"))
		for _, a := range e.Artifacts {
			b.WriteString("\n• " + a.Filename)
			if a.Size > 0 {
				b.WriteString(" " + styles.Muted.Render(humanize.Bytes(uint64(a.Size))))
			}
		}
		return b.String(), true

	case event.CountdownTickEvent:
		// One line a minute, then every ten seconds in the last minute.
		step := time.Minute
		if e.Remaining <= time.Minute {
			step = 10 * time.Second
		}
		if e.Remaining%step >= time.Second {
			return "", false
		}
		return styles.Warning.Render(e.Label), true

	case event.ExpiredEvent:
		return styles.WarningMsg.Render("Files expired. Removing the session..."), true

	case event.DeletionStartedEvent:
		if e.Automatic {
			return styles.Muted.Render("Removing expired session..."), true
		}
		return styles.Muted.Render("Deleting session..."), true

	case event.DeletionFinishedEvent:
		// Settled outcomes are reported by the navigate event that follows.
		if e.Outcome != lifecycle.OutcomeTransient.String() {
			return "", false
		}
		return styles.WarningMsg.Render(e.Message), true

	case event.NavigateEvent:
		// Not-found and expiry were already reported when they happened.
		if e.Reason == event.NavigateNotFound || e.Reason == event.NavigateExpired {
			return "", false
		}
		return renderFinal(e), true
	}
	return "", false
}
