package lifecycle

import (
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/lance/internal/api"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/logging"
)

// Phase is the lifecycle phase of a session as seen by one view.
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

// wirePhases maps every status value the service is known to send.
var wirePhases = map[string]Phase{
	api.StatusCreated:          PhaseUploading,
	api.StatusUploading:        PhaseUploading,
	api.StatusProcessing:       PhaseProcessing,
	api.StatusWaitingForInput:  PhaseWaitingForInput,
	api.StatusWaitingInput:     PhaseWaitingForInput,
	api.StatusCompleted:        PhaseCompleted,
	api.StatusRequiresReview:   PhaseRequiresReview,
	api.StatusRequiresRevision: PhaseRequiresReview,
	api.StatusError:            PhaseError,
	api.StatusFailed:           PhaseError,
	api.StatusDeleted:          PhaseDeleted,
	api.StatusExpired:          PhaseDeleted,
}

// PhaseOf maps a wire status onto a Phase. Unrecognized values map to
// PhaseUnknown.
func PhaseOf(status string) Phase {
	if p, ok := wirePhases[strings.ToLower(strings.TrimSpace(status))]; ok {
		return p
	}
	return PhaseUnknown
}

// Terminal reports whether polling stops for good in this phase.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseRequiresReview, PhaseError, PhaseDeleted:
		return true
	}
	return false
}

// Succeeded reports whether the pipeline finished with results.
func (p Phase) Succeeded() bool {
	return p == PhaseCompleted || p == PhaseRequiresReview
}

func (p Phase) String() string { return string(p) }

// Event converts p to the event package's mirror type.
func (p Phase) Event() event.Phase { return event.Phase(p) }

// rank orders phases along the lifecycle. processing and
// waiting_for_input share a rank because the session moves freely
// between them. PhaseUnknown only ever stands for a first payload nobody
// recognized, so any known phase may follow it.
func (p Phase) rank() int {
	switch p {
	case "", PhaseUnknown, PhaseUploading:
		return 0
	case PhaseProcessing, PhaseWaitingForInput:
		return 1
	case PhaseCompleted, PhaseRequiresReview, PhaseError:
		return 2
	case PhaseDeleted:
		return 3
	}
	return 1
}

// CanTransition reports whether a session in from may move to to.
// Staying in the same phase is always allowed.
func CanTransition(from, to Phase) bool {
	switch {
	case from == to:
		return true
	case to == PhaseDeleted:
		return true
	case from.Terminal():
		// completed, requires_review and error only ever move to deleted.
		return false
	case to == PhaseError:
		return true
	}
	return to.rank() >= from.rank()
}

// Transition is the result of applying one status payload.
type Transition struct {
	Applied  bool
	Previous Phase
	Phase    Phase

	// Status is the payload as the view sees it: step sets accumulated
	// across polls and expires_at pinned to its first observed value.
	Status api.SessionStatus
}

// Changed reports whether the payload moved the session to a new phase.
func (t Transition) Changed() bool { return t.Applied && t.Previous != t.Phase }

// Machine derives the lifecycle view of one session from its status
// payloads. It is not safe for concurrent use; the owning Session
// serializes access.
type Machine struct {
	logger *logging.Logger

	phase   Phase
	lastSeq uint64
	latest  api.SessionStatus

	completedSteps []string
	failedSteps    []string
	expiresAt      time.Time

	// Per-view markers. Each one flips at most once.
	notified           bool
	artifactsPresented bool
	promptedKey        string
}

// NewMachine returns a Machine with no status applied yet.
func NewMachine(logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Machine{logger: logger}
}

// Apply folds the payload from poll seq into the view. Payloads from a
// poll not newer than the last applied one are dropped, and so are
// payloads that would move the session backward.
func (m *Machine) Apply(seq uint64, status api.SessionStatus) Transition {
	prev := m.phase
	if seq <= m.lastSeq {
		m.logger.Debug("dropping stale status", "seq", seq, "last_seq", m.lastSeq, "status", status.Status)
		return Transition{Previous: prev, Phase: prev}
	}
	m.lastSeq = seq

	next := PhaseOf(status.Status)
	if next == PhaseUnknown {
		m.logger.Warn("unrecognized session status", "status", status.Status)
		if prev != "" {
			next = prev
		}
	}
	if !CanTransition(prev, next) {
		m.logger.Info("ignoring out-of-order status",
			"seq", seq, "from", string(prev), "to", string(next))
		return Transition{Previous: prev, Phase: prev}
	}

	m.completedSteps = union(m.completedSteps, status.CompletedSteps)
	m.failedSteps = union(m.failedSteps, status.FailedSteps)
	status.CompletedSteps = slices.Clone(m.completedSteps)
	status.FailedSteps = slices.Clone(m.failedSteps)

	if observed := status.ExpiresAt.Time; !observed.IsZero() {
		switch {
		case m.expiresAt.IsZero():
			m.expiresAt = observed
		case !observed.Equal(m.expiresAt):
			m.logger.Warn("ignoring changed expiry",
				"expires_at", m.expiresAt.Format(time.RFC3339), "reported", observed.Format(time.RFC3339))
		}
	}
	status.ExpiresAt = api.Timestamp{Time: m.expiresAt}

	if next != PhaseWaitingForInput {
		// Leaving waiting_for_input ends the episode: a set asked again
		// later is a new request for input.
		m.promptedKey = ""
	}
	m.phase = next
	m.latest = status
	return Transition{Applied: true, Previous: prev, Phase: next, Status: status}
}

// Phase returns the current phase, or "" before the first payload.
func (m *Machine) Phase() Phase { return m.phase }

// Status returns the last applied payload.
func (m *Machine) Status() api.SessionStatus { return m.latest }

// ExpiresAt returns the pinned expiry, or the zero time if none was seen.
func (m *Machine) ExpiresAt() time.Time { return m.expiresAt }

// PendingPrompt reports whether the question prompt should be shown: the
// session waits for input, questions are pending, and this exact set has
// not been prompted before. key identifies the set for MarkPrompted.
func (m *Machine) PendingPrompt() (questions []api.Question, key string, show bool) {
	if m.phase != PhaseWaitingForInput || len(m.latest.PendingQuestions) == 0 {
		return nil, "", false
	}
	key = questionSetKey(m.latest.PendingQuestions)
	if key == m.promptedKey {
		return nil, key, false
	}
	return slices.Clone(m.latest.PendingQuestions), key, true
}

// MarkPrompted records that the question set identified by key was shown.
func (m *Machine) MarkPrompted(key string) { m.promptedKey = key }

// HasPendingQuestions reports whether the latest payload still asks for
// input.
func (m *Machine) HasPendingQuestions() bool {
	return m.phase == PhaseWaitingForInput && len(m.latest.PendingQuestions) > 0
}

// ShouldNotify reports whether the completion notification is still owed.
func (m *Machine) ShouldNotify() bool {
	return m.phase.Succeeded() && !m.notified
}

// MarkNotified records that the completion notification was handled.
func (m *Machine) MarkNotified() { m.notified = true }

// ArtifactsPresentable reports whether artifacts should be presented now.
// Both the phase and the artifacts_ready flag are required, since the
// status can move ahead of the artifacts.
func (m *Machine) ArtifactsPresentable() bool {
	return m.phase.Succeeded() &&
		m.latest.ArtifactsReady &&
		len(m.latest.Artifacts) > 0 &&
		!m.artifactsPresented
}

// MarkArtifactsPresented records that artifacts were presented.
func (m *Machine) MarkArtifactsPresented() { m.artifactsPresented = true }

// MarkDeleted moves the view to PhaseDeleted after a deletion completed.
func (m *Machine) MarkDeleted() { m.phase = PhaseDeleted }

// DefaultFailureMessage is shown when an error payload carries no text.
const DefaultFailureMessage = "Analysis failed while processing your documents."

// FailureMessage returns the text to show for an error phase.
func (m *Machine) FailureMessage() string {
	switch {
	case m.latest.ErrorMessage != "":
		return m.latest.ErrorMessage
	case m.latest.Message != "":
		return m.latest.Message
	}
	return DefaultFailureMessage
}

func questionSetKey(questions []api.Question) string {
	keys := make([]string, len(questions))
	for i, q := range questions {
		keys[i] = q.Key()
	}
	return strings.Join(keys, "\x1f")
}

func union(have, more []string) []string {
	for _, s := range more {
		if s != "" && !slices.Contains(have, s) {
			have = append(have, s)
		}
	}
	return have
}
