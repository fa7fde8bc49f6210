// Package tui renders a watched session: a bubbletea program for
// terminals and a plain line printer for pipes and logs.
//
// Both front ends only consume lifecycle events from the session's bus and
// call back into the session through Controller. Every Controller call
// that can block runs outside the bubbletea event loop.
package tui

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/lifecycle"
)

// Controller is the part of a lifecycle.Session the front ends drive.
type Controller interface {
	ID() string
	Start(ctx context.Context) error
	StartAnalysis(ctx context.Context) error
	Refresh()
	SubmitAnswers(ctx context.Context, text string) (map[string]string, error)
	Delete(ctx context.Context) lifecycle.Result
	Snapshot() lifecycle.Snapshot
	Close()
}

var _ Controller = (*lifecycle.Session)(nil)

// Outcome is how a watch ended.
type Outcome struct {
	// Navigate is the event that ended the watch, if any.
	Navigate *event.NavigateEvent
	// Phase is the last phase seen.
	Phase event.Phase
	// Failure is the pipeline failure message when the analysis failed.
	Failure string
}

// Options configures a watch.
type Options struct {
	// StartAnalysis asks the service to start the pipeline once the view
	// is mounted.
	StartAnalysis bool
	// AltScreen runs the TUI in the terminal's alternate screen.
	AltScreen bool
}

// App wraps the Bubbletea program
type App struct {
	ctrl    Controller
	bus     *event.Bus
	opts    Options
	program *tea.Program
}

// New creates a TUI for ctrl, fed by the events on bus.
func New(ctrl Controller, bus *event.Bus, opts Options) *App {
	return &App{ctrl: ctrl, bus: bus, opts: opts}
}

// Run starts the view and blocks until the user quits or the session
// navigates away. The session is closed before Run returns.
func (a *App) Run(ctx context.Context) (Outcome, error) {
	defer a.ctrl.Close()

	opts := []tea.ProgramOption{}
	if a.opts.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	a.program = tea.NewProgram(NewModel(ctx, a.ctrl, a.opts.StartAnalysis), opts...)

	sub := a.bus.SubscribeAll(func(e event.Event) {
		a.program.Send(eventMsg{event: e})
	})
	defer a.bus.Unsubscribe(sub)

	// SIGTERM and SIGHUP quit like 'q' does so the session is closed cleanly
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			a.program.Quit()
		case <-ctx.Done():
			a.program.Quit()
		case <-done:
		}
	}()

	final, err := a.program.Run()

	close(done)
	signal.Stop(sigChan)

	if err != nil {
		return Outcome{}, err
	}
	m, ok := final.(Model)
	if !ok {
		return Outcome{}, nil
	}
	return m.Outcome(), m.err
}
