package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Iron-Ham/lance/internal/api"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/event"
)

// GeneralResponseKey carries freeform text that could not be matched to
// individual questions.
const GeneralResponseKey = "general_response"

// Gate holds the question set currently presented to the user. The zero
// value is a closed gate.
type Gate struct {
	questions  []api.Question
	open       bool
	submitting bool
}

// Open presents questions, replacing any earlier set.
func (g *Gate) Open(questions []api.Question) {
	g.questions = slices.Clone(questions)
	g.open = true
}

// Close dismisses the prompt.
func (g *Gate) Close() {
	g.questions = nil
	g.open = false
}

// IsOpen reports whether a prompt is showing.
func (g *Gate) IsOpen() bool { return g.open }

// Questions returns a copy of the presented questions.
func (g *Gate) Questions() []api.Question { return slices.Clone(g.questions) }

// Compose turns the user's text into the answer map sent to the service.
//
// A JSON object is sent as given. Lines of the form "key: value" or
// "key=value", where every key names a presented question by id or
// 1-based position, are keyed by question id. Any other text is sent
// whole under GeneralResponseKey, so the service always receives a
// well-formed map.
func (g *Gate) Compose(text string) map[string]string {
	text = strings.TrimSpace(text)
	if answers, ok := composeJSON(text); ok {
		return answers
	}
	if answers, ok := g.composeLines(text); ok {
		return answers
	}
	return map[string]string{GeneralResponseKey: text}
}

func composeJSON(text string) (map[string]string, bool) {
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil || len(raw) == 0 {
		return nil, false
	}
	answers := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			answers[k] = v
		case nil:
			answers[k] = ""
		default:
			b, _ := json.Marshal(v)
			answers[k] = string(b)
		}
	}
	return answers, true
}

func (g *Gate) composeLines(text string) (map[string]string, bool) {
	answers := make(map[string]string)
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		i := strings.IndexAny(line, ":=")
		if i <= 0 {
			return nil, false
		}
		key, ok := g.resolve(strings.TrimSpace(line[:i]))
		if !ok {
			return nil, false
		}
		answers[key] = strings.TrimSpace(line[i+1:])
	}
	return answers, len(answers) > 0
}

// resolve maps a user-typed key onto the key the service expects.
func (g *Gate) resolve(key string) (string, bool) {
	for i, q := range g.questions {
		if q.ID != "" && strings.EqualFold(q.ID, key) {
			return q.ID, true
		}
		if strings.EqualFold(key, indexKey(i)) {
			return answerKey(i, q), true
		}
	}
	n, err := strconv.Atoi(strings.TrimPrefix(key, "#"))
	if err != nil || n < 1 || n > len(g.questions) {
		return "", false
	}
	return answerKey(n-1, g.questions[n-1]), true
}

func answerKey(i int, q api.Question) string {
	if q.ID != "" {
		return q.ID
	}
	return indexKey(i)
}

func indexKey(i int) string { return fmt.Sprintf("question_%d", i+1) }

// gateLocked opens the prompt for a new question set or keeps it open for
// the same one. It reports whether polling should stay paused. A set
// that was prompted before is not shown again.
func (s *Session) gateLocked(fx *effects) bool {
	if questions, key, show := s.machine.PendingPrompt(); show {
		s.machine.MarkPrompted(key)
		s.gate.Open(questions)
		s.logger.Info("questions pending", "count", len(questions))
		fx.publish(event.NewQuestionsPendingEvent(s.id, questions))
		s.stopPollingLocked(fx, event.StopQuestions)
		return true
	}
	if s.gate.IsOpen() && !s.machine.HasPendingQuestions() {
		s.logger.Debug("questions resolved elsewhere, closing prompt")
		s.closeGateLocked(fx)
	}
	if s.gate.IsOpen() {
		s.stopPollingLocked(fx, event.StopQuestions)
		return true
	}
	return false
}

// closeGateLocked dismisses an open prompt that was not answered from
// this view and tells the front ends.
func (s *Session) closeGateLocked(fx *effects) {
	if !s.gate.IsOpen() {
		return
	}
	s.gate.Close()
	fx.publish(event.NewQuestionsResolvedEvent(s.id, s.machine.Phase().Event()))
}

// SubmitAnswers composes text into answers and submits them. On success
// the prompt closes and polling resumes at once. On failure the prompt
// stays open and a questions.failed event is published.
func (s *Session) SubmitAnswers(ctx context.Context, text string) (map[string]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, lerrors.NewValidationError("answer text is empty").WithField("answer")
	}

	s.mu.Lock()
	if err := s.canSubmitLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	answers := s.gate.Compose(text)
	s.gate.submitting = true
	s.mu.Unlock()

	return answers, s.submit(ctx, answers)
}

// SubmitAnswerMap submits answers already keyed by question.
func (s *Session) SubmitAnswerMap(ctx context.Context, answers map[string]string) error {
	if len(answers) == 0 {
		return lerrors.NewValidationError("no answers given").WithField("answer")
	}

	s.mu.Lock()
	if err := s.canSubmitLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.gate.submitting = true
	s.mu.Unlock()

	return s.submit(ctx, answers)
}

func (s *Session) canSubmitLocked() error {
	switch {
	case !s.mounted:
		return lerrors.ErrSessionClosed
	case !s.gate.IsOpen():
		return lerrors.ErrNoPendingQuestions
	case s.gate.submitting:
		return lerrors.NewValidationError("answers are already being submitted").WithField("answer")
	}
	return nil
}

func (s *Session) submit(ctx context.Context, answers map[string]string) error {
	_, err := s.svc.Answer(ctx, s.id, answers)

	s.update(func(fx *effects) {
		s.gate.submitting = false
		if !s.mounted {
			return
		}
		if err != nil {
			s.logger.Warn("answer submission failed", "error", err.Error())
			fx.publish(event.NewQuestionsFailedEvent(s.id, lerrors.UserMessage(err)))
			return
		}
		s.logger.Info("answers submitted", "count", len(answers))
		s.gate.Close()
		fx.publish(event.NewQuestionsAnsweredEvent(s.id, answers))
		s.pollLocked(fx, true)
	})
	return err
}
