package tui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/lifecycle"
)

// Messages

// eventMsg carries a lifecycle event from the bus into the program.
type eventMsg struct {
	event event.Event
}

type watchStartedMsg struct {
	err error
}

type analysisStartedMsg struct {
	err error
}

type answersSentMsg struct {
	err error
}

type deletedMsg struct {
	result lifecycle.Result
}

// Commands

func startWatch(ctx context.Context, ctrl Controller, analysis bool) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Start(ctx); err != nil {
			return watchStartedMsg{err: err}
		}
		if analysis {
			return analysisStartedMsg{err: ctrl.StartAnalysis(ctx)}
		}
		return watchStartedMsg{}
	}
}

func startAnalysis(ctx context.Context, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return analysisStartedMsg{err: ctrl.StartAnalysis(ctx)}
	}
}

func refresh(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.Refresh()
		return nil
	}
}

func submitAnswers(ctx context.Context, ctrl Controller, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := ctrl.SubmitAnswers(ctx, text)
		return answersSentMsg{err: err}
	}
}

func deleteSession(ctx context.Context, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{result: ctrl.Delete(ctx)}
	}
}

// ringBell writes a terminal bell so a finished analysis is noticed even
// when the terminal is in the background.
func ringBell() tea.Cmd {
	return func() tea.Msg {
		_, _ = os.Stdout.Write([]byte{'\a'})
		return nil
	}
}
