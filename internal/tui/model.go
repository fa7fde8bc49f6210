package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/lance/internal/api"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/lifecycle"
)

// inputMode is what the keyboard currently drives.
type inputMode int

const (
	modeNormal inputMode = iota
	modeAnswer
	modeConfirmDelete
)

// level grades a notice line.
type level int

const (
	levelInfo level = iota
	levelSuccess
	levelWarning
	levelError
)

type notice struct {
	text  string
	level level
}

// Model is the bubbletea model of the watch view.
type Model struct {
	ctx           context.Context
	ctrl          Controller
	startAnalysis bool

	width int

	phase        event.Phase
	status       api.SessionStatus
	questions    []api.Question
	artifacts    []api.Artifact
	expiry       string
	connectivity string
	failure      string
	notice       notice

	starting   bool
	submitting bool
	deleting   bool

	mode  inputMode
	input textinput.Model
	bar   progress.Model

	final *event.NavigateEvent
	err   error
}

// NewModel creates the watch model. The session is started from Init.
func NewModel(ctx context.Context, ctrl Controller, startAnalysis bool) Model {
	ti := textinput.New()
	ti.Placeholder = `answer, or "id: answer" per line, or JSON`
	ti.CharLimit = 4000
	ti.Width = 60

	return Model{
		ctx:           ctx,
		ctrl:          ctrl,
		startAnalysis: startAnalysis,
		starting:      startAnalysis,
		input:         ti,
		bar:           progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Outcome summarizes how the watch ended.
func (m Model) Outcome() Outcome {
	return Outcome{Navigate: m.final, Phase: m.phase, Failure: m.failure}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return startWatch(m.ctx, m.ctrl, m.startAnalysis)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-12, 10), 60)
		m.input.Width = min(max(msg.Width-8, 20), 100)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		return m.handleEvent(msg.event)

	case watchStartedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		return m, nil

	case analysisStartedMsg:
		m.starting = false
		if msg.err != nil {
			m.notice = notice{text: "Couldn't start the analysis: " + lerrors.UserMessage(msg.err), level: levelError}
		}
		return m, nil

	case answersSentMsg:
		m.submitting = false
		// Service failures arrive as a QuestionsFailedEvent; only local
		// refusals are reported here.
		if msg.err != nil && lerrors.Classify(msg.err) == lerrors.KindUnknown {
			m.notice = notice{text: lerrors.UserMessage(msg.err), level: levelError}
		}
		return m, nil

	case deletedMsg:
		if msg.result.Outcome == lifecycle.OutcomeSkipped {
			m.notice = notice{text: msg.result.Message, level: levelWarning}
		}
		return m, nil
	}

	if m.mode == modeAnswer {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case modeAnswer:
		return m.handleAnswerKey(msg)
	case modeConfirmDelete:
		m.mode = modeNormal
		if k := msg.String(); k == "y" || k == "Y" {
			m.deleting = true
			m.notice = notice{text: "Deleting session...", level: levelInfo}
			return m, deleteSession(m.ctx, m.ctrl)
		}
		m.notice = notice{text: "Deletion canceled.", level: levelInfo}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit

	case "s":
		if m.starting || (m.phase != "" && m.phase != event.PhaseUploading) {
			return m, nil
		}
		m.starting = true
		m.notice = notice{text: "Starting analysis...", level: levelInfo}
		return m, startAnalysis(m.ctx, m.ctrl)

	case "r":
		if m.deleting {
			return m, nil
		}
		m.notice = notice{text: "Refreshing...", level: levelInfo}
		return m, refresh(m.ctrl)

	case "a":
		if len(m.questions) == 0 || m.submitting {
			return m, nil
		}
		m.mode = modeAnswer
		return m, m.input.Focus()

	case "d":
		if m.deleting || m.phase == event.PhaseDeleted {
			return m, nil
		}
		m.mode = modeConfirmDelete
		return m, nil
	}
	return m, nil
}

func (m Model) handleAnswerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.mode = modeNormal
		m.input.Blur()
		m.input.Reset()
		m.submitting = true
		m.notice = notice{text: "Sending answers...", level: levelInfo}
		return m, submitAnswers(m.ctx, m.ctrl, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleEvent(e event.Event) (tea.Model, tea.Cmd) {
	switch e := e.(type) {
	case event.StatusEvent:
		m.phase = e.Phase
		m.status = e.Status

	case event.ConnectivityEvent:
		m.connectivity = e.Message

	case event.RecoveredEvent:
		m.connectivity = ""
		m.notice = notice{text: "Connection restored.", level: levelSuccess}

	case event.NotFoundEvent:
		m.notice = notice{text: e.Message, level: levelWarning}

	case event.FailedEvent:
		m.failure = e.Message

	case event.CompletedEvent:
		text := "Analysis complete."
		if e.Phase == event.PhaseRequiresReview {
			text = "Analysis complete. Some results need your review."
		}
		m.notice = notice{text: text, level: levelSuccess}
		return m, ringBell()

	case event.QuestionsPendingEvent:
		m.questions = e.Questions
		m.notice = notice{text: "The analysis needs your input. Press a to answer.", level: levelWarning}

	case event.QuestionsAnsweredEvent:
		m.questions = nil
		m.submitting = false
		m.notice = notice{text: "Answers sent. Resuming analysis.", level: levelSuccess}

	case event.QuestionsFailedEvent:
		m.submitting = false
		m.notice = notice{text: e.Message, level: levelError}

	case event.QuestionsResolvedEvent:
		m.questions = nil
		if m.mode == modeAnswer {
			m.mode = modeNormal
			m.input.Blur()
			m.input.Reset()
		}
		if text, ok := resolvedNotice(e); ok {
			m.notice = notice{text: text, level: levelInfo}
		}

	case event.ArtifactsReadyEvent:
		m.artifacts = e.Artifacts

	case event.CountdownTickEvent:
		m.expiry = e.Label

	case event.ExpiredEvent:
		m.notice = notice{text: "Files expired. Removing the session...", level: levelWarning}

	case event.DeletionStartedEvent:
		m.deleting = true
		if e.Automatic {
			m.notice = notice{text: "Removing expired session...", level: levelInfo}
		}

	case event.DeletionFinishedEvent:
		m.deleting = false
		lvl := levelError
		switch e.Outcome {
		case lifecycle.OutcomeDeleted.String(), lifecycle.OutcomeAlreadyGone.String():
			lvl = levelSuccess
		case lifecycle.OutcomeTransient.String():
			lvl = levelWarning
		}
		m.notice = notice{text: e.Message, level: lvl}

	case event.NavigateEvent:
		m.final = &e
		return m, tea.Quit
	}
	return m, nil
}

// resolvedNotice describes a prompt that closed without answers from this
// view. Terminal phases bring their own notice.
func resolvedNotice(e event.QuestionsResolvedEvent) (string, bool) {
	switch e.Phase {
	case event.PhaseProcessing, event.PhaseWaitingForInput, event.PhaseUploading:
		return "The questions were answered elsewhere.", true
	}
	return "", false
}
