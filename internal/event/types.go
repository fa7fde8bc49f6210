// Package event defines event types for decoupling components in lance.
// The session lifecycle publishes these events and front ends (the watch
// TUI, plain line output) render them without calling back into the
// coordinator's internals.
package event

import (
	"time"

	"github.com/Iron-Ham/lance/internal/api"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.status", "deletion.finished")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// SessionEvent is implemented by every event that concerns one session.
type SessionEvent interface {
	Event
	Session() string
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
	sessionID string
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }
func (e baseEvent) Session() string      { return e.sessionID }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType, sessionID string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
		sessionID: sessionID,
	}
}

// Event type identifiers.
const (
	TypeStatus            = "session.status"
	TypeCompleted         = "session.completed"
	TypeFailed            = "session.failed"
	TypeConnectivity      = "session.connectivity"
	TypeRecovered         = "session.recovered"
	TypeNotFound          = "session.not_found"
	TypeExpired           = "session.expired"
	TypeNavigate          = "session.navigate"
	TypePollingStopped    = "polling.stopped"
	TypeQuestionsPending  = "questions.pending"
	TypeQuestionsAnswered = "questions.answered"
	TypeQuestionsFailed   = "questions.failed"
	TypeQuestionsResolved = "questions.resolved"
	TypeArtifactsReady    = "artifacts.ready"
	TypeCountdownTick     = "countdown.tick"
	TypeDeletionStarted   = "deletion.started"
	TypeDeletionFinished  = "deletion.finished"
)

// -----------------------------------------------------------------------------
// Status Events
// -----------------------------------------------------------------------------

// Phase is the lifecycle phase of a session.
// Mirrors lifecycle.Phase for decoupling.
type Phase string

const (
	PhaseUploading       Phase = "uploading"
	PhaseProcessing      Phase = "processing"
	PhaseWaitingForInput Phase = "waiting_for_input"
	PhaseCompleted       Phase = "completed"
	PhaseRequiresReview  Phase = "requires_review"
	PhaseError           Phase = "error"
	PhaseDeleted         Phase = "deleted"
	PhaseUnknown         Phase = "unknown"
)

// StatusEvent is emitted after every applied status payload.
type StatusEvent struct {
	baseEvent
	Previous Phase             // Phase before this payload (empty on the first)
	Phase    Phase             // Phase after this payload
	Status   api.SessionStatus // Payload with step sets accumulated across polls
}

// NewStatusEvent creates a StatusEvent.
func NewStatusEvent(sessionID string, previous, current Phase, status api.SessionStatus) StatusEvent {
	return StatusEvent{
		baseEvent: newBaseEvent(TypeStatus, sessionID),
		Previous:  previous,
		Phase:     current,
		Status:    status,
	}
}

// CompletedEvent is the one-time "analysis complete" notification.
type CompletedEvent struct {
	baseEvent
	Phase Phase // completed or requires_review
}

// NewCompletedEvent creates a CompletedEvent.
func NewCompletedEvent(sessionID string, phase Phase) CompletedEvent {
	return CompletedEvent{
		baseEvent: newBaseEvent(TypeCompleted, sessionID),
		Phase:     phase,
	}
}

// FailedEvent is emitted when the pipeline reports an error state.
type FailedEvent struct {
	baseEvent
	Message string // Backend message verbatim, or a generic fallback
}

// NewFailedEvent creates a FailedEvent.
func NewFailedEvent(sessionID, message string) FailedEvent {
	return FailedEvent{
		baseEvent: newBaseEvent(TypeFailed, sessionID),
		Message:   message,
	}
}

// ConnectivityEvent is emitted when a status fetch fails for a reason
// other than not-found. Polling has stopped when this arrives.
type ConnectivityEvent struct {
	baseEvent
	Kind    string // errors.Kind name, e.g. "server" or "network"
	Message string // Generic user-facing text
}

// NewConnectivityEvent creates a ConnectivityEvent.
func NewConnectivityEvent(sessionID, kind, message string) ConnectivityEvent {
	return ConnectivityEvent{
		baseEvent: newBaseEvent(TypeConnectivity, sessionID),
		Kind:      kind,
		Message:   message,
	}
}

// RecoveredEvent is emitted when a fetch succeeds after a connectivity error.
type RecoveredEvent struct {
	baseEvent
}

// NewRecoveredEvent creates a RecoveredEvent.
func NewRecoveredEvent(sessionID string) RecoveredEvent {
	return RecoveredEvent{baseEvent: newBaseEvent(TypeRecovered, sessionID)}
}

// NotFoundEvent is emitted when the service no longer knows the session.
type NotFoundEvent struct {
	baseEvent
	Message string
}

// NewNotFoundEvent creates a NotFoundEvent.
func NewNotFoundEvent(sessionID, message string) NotFoundEvent {
	return NotFoundEvent{
		baseEvent: newBaseEvent(TypeNotFound, sessionID),
		Message:   message,
	}
}

// Reasons carried by PollingStoppedEvent.
const (
	StopTerminal    = "terminal"
	StopNotFound    = "not_found"
	StopFetchFailed = "fetch_failed"
	StopQuestions   = "questions"
	StopDeletion    = "deletion"
	StopClosed      = "closed"
)

// PollingStoppedEvent is emitted whenever the poll loop halts.
type PollingStoppedEvent struct {
	baseEvent
	Reason string // One of the Stop* constants
}

// NewPollingStoppedEvent creates a PollingStoppedEvent.
func NewPollingStoppedEvent(sessionID, reason string) PollingStoppedEvent {
	return PollingStoppedEvent{
		baseEvent: newBaseEvent(TypePollingStopped, sessionID),
		Reason:    reason,
	}
}

// Reasons carried by NavigateEvent.
const (
	NavigateNotFound     = "not_found"
	NavigateExpired      = "expired"
	NavigateDeleted      = "deleted"
	NavigateAlreadyGone  = "already_gone"
	NavigateDeleteFailed = "delete_failed"
)

// NavigateEvent tells the front end to leave the session view.
type NavigateEvent struct {
	baseEvent
	Reason  string // One of the Navigate* constants
	Message string // Final message to show
}

// NewNavigateEvent creates a NavigateEvent.
func NewNavigateEvent(sessionID, reason, message string) NavigateEvent {
	return NavigateEvent{
		baseEvent: newBaseEvent(TypeNavigate, sessionID),
		Reason:    reason,
		Message:   message,
	}
}

// -----------------------------------------------------------------------------
// Question Events
// -----------------------------------------------------------------------------

// QuestionsPendingEvent is emitted once per distinct pending question set.
type QuestionsPendingEvent struct {
	baseEvent
	Questions []api.Question
}

// NewQuestionsPendingEvent creates a QuestionsPendingEvent.
func NewQuestionsPendingEvent(sessionID string, questions []api.Question) QuestionsPendingEvent {
	return QuestionsPendingEvent{
		baseEvent: newBaseEvent(TypeQuestionsPending, sessionID),
		Questions: questions,
	}
}

// QuestionsAnsweredEvent is emitted after answers were accepted.
type QuestionsAnsweredEvent struct {
	baseEvent
	Answers map[string]string
}

// NewQuestionsAnsweredEvent creates a QuestionsAnsweredEvent.
func NewQuestionsAnsweredEvent(sessionID string, answers map[string]string) QuestionsAnsweredEvent {
	return QuestionsAnsweredEvent{
		baseEvent: newBaseEvent(TypeQuestionsAnswered, sessionID),
		Answers:   answers,
	}
}

// QuestionsResolvedEvent is emitted when an open prompt closes without
// answers from this view, for example because the questions were answered
// elsewhere or the session left waiting_for_input. Phase is the phase the
// session is in when the prompt closes.
type QuestionsResolvedEvent struct {
	baseEvent
	Phase Phase
}

// NewQuestionsResolvedEvent creates a QuestionsResolvedEvent.
func NewQuestionsResolvedEvent(sessionID string, phase Phase) QuestionsResolvedEvent {
	return QuestionsResolvedEvent{
		baseEvent: newBaseEvent(TypeQuestionsResolved, sessionID),
		Phase:     phase,
	}
}

// QuestionsFailedEvent is emitted when answer submission fails. The
// prompt stays open.
type QuestionsFailedEvent struct {
	baseEvent
	Message string
}

// NewQuestionsFailedEvent creates a QuestionsFailedEvent.
func NewQuestionsFailedEvent(sessionID, message string) QuestionsFailedEvent {
	return QuestionsFailedEvent{
		baseEvent: newBaseEvent(TypeQuestionsFailed, sessionID),
		Message:   message,
	}
}

// -----------------------------------------------------------------------------
// Artifact and Expiry Events
// -----------------------------------------------------------------------------

// ArtifactsReadyEvent is emitted once, when artifacts can first be presented.
type ArtifactsReadyEvent struct {
	baseEvent
	Artifacts []api.Artifact
	ExpiresAt time.Time
}

// NewArtifactsReadyEvent creates an ArtifactsReadyEvent.
func NewArtifactsReadyEvent(sessionID string, artifacts []api.Artifact, expiresAt time.Time) ArtifactsReadyEvent {
	return ArtifactsReadyEvent{
		baseEvent: newBaseEvent(TypeArtifactsReady, sessionID),
		Artifacts: artifacts,
		ExpiresAt: expiresAt,
	}
}

// CountdownTickEvent carries the remaining retention time.
type CountdownTickEvent struct {
	baseEvent
	Remaining time.Duration
	Label     string // e.g. "Files expire in 59m 59s"
}

// NewCountdownTickEvent creates a CountdownTickEvent.
func NewCountdownTickEvent(sessionID string, remaining time.Duration, label string) CountdownTickEvent {
	return CountdownTickEvent{
		baseEvent: newBaseEvent(TypeCountdownTick, sessionID),
		Remaining: remaining,
		Label:     label,
	}
}

// ExpiredEvent is emitted once when the retention deadline passes.
type ExpiredEvent struct {
	baseEvent
}

// NewExpiredEvent creates an ExpiredEvent.
func NewExpiredEvent(sessionID string) ExpiredEvent {
	return ExpiredEvent{baseEvent: newBaseEvent(TypeExpired, sessionID)}
}

// -----------------------------------------------------------------------------
// Deletion Events
// -----------------------------------------------------------------------------

// DeletionStartedEvent is emitted when a deletion request is issued.
type DeletionStartedEvent struct {
	baseEvent
	Automatic bool // Triggered by expiry rather than the user
}

// NewDeletionStartedEvent creates a DeletionStartedEvent.
func NewDeletionStartedEvent(sessionID string, automatic bool) DeletionStartedEvent {
	return DeletionStartedEvent{
		baseEvent: newBaseEvent(TypeDeletionStarted, sessionID),
		Automatic: automatic,
	}
}

// DeletionFinishedEvent reports how a deletion request ended.
type DeletionFinishedEvent struct {
	baseEvent
	Automatic bool
	Outcome   string // "deleted", "already_gone", "fatal", "transient"
	Message   string // User-facing text
}

// NewDeletionFinishedEvent creates a DeletionFinishedEvent.
func NewDeletionFinishedEvent(sessionID string, automatic bool, outcome, message string) DeletionFinishedEvent {
	return DeletionFinishedEvent{
		baseEvent: newBaseEvent(TypeDeletionFinished, sessionID),
		Automatic: automatic,
		Outcome:   outcome,
		Message:   message,
	}
}
