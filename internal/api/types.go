package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Wire status values reported by the analysis service. Several are
// synonyms kept for compatibility with older service builds.
const (
	StatusCreated          = "created"
	StatusUploading        = "uploading"
	StatusProcessing       = "processing"
	StatusWaitingForInput  = "waiting_for_input"
	StatusWaitingInput     = "waiting_input"
	StatusCompleted        = "completed"
	StatusRequiresReview   = "requires_review"
	StatusRequiresRevision = "requires_revision"
	StatusError            = "error"
	StatusFailed           = "failed"
	StatusDeleted          = "deleted"
	StatusExpired          = "expired"
)

// naiveLayouts are the zone-less forms the service emits from
// datetime.isoformat(); they are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a time that decodes from RFC 3339 or zone-less ISO 8601.
// JSON null and "" decode to the zero value.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// MarshalYAML implements yaml.Marshaler.
func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339), nil
}

// ParseTimestamp parses the timestamp forms the service emits.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognized format %q", s)
}

// Question is a clarifying question raised by one of the pipeline agents.
type Question struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Agent    string `json:"agent" yaml:"agent"`
	Question string `json:"question" yaml:"question"`
	Context  string `json:"context,omitempty" yaml:"context,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Key identifies the question within a pending set.
func (q Question) Key() string {
	if q.ID != "" {
		return q.ID
	}
	return q.Agent + "|" + q.Question
}

// Artifact describes one downloadable output.
type Artifact struct {
	Filename  string    `json:"filename" yaml:"filename"`
	Size      int64     `json:"size,omitempty" yaml:"size,omitempty"`
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
}

// UnmarshalJSON accepts a bare filename or an object using either the
// status field names (filename, created_at) or the listing field names
// (name, created).
func (a *Artifact) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*a = Artifact{Filename: name}
		return nil
	}

	var raw struct {
		Filename  string    `json:"filename"`
		Name      string    `json:"name"`
		Size      int64     `json:"size"`
		CreatedAt Timestamp `json:"created_at"`
		Created   Timestamp `json:"created"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("artifact: %w", err)
	}

	*a = Artifact{Filename: raw.Filename, Size: raw.Size, CreatedAt: raw.CreatedAt}
	if a.Filename == "" {
		a.Filename = raw.Name
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = raw.Created
	}
	return nil
}

// SessionStatus is one status report for a session.
type SessionStatus struct {
	SessionID             string     `json:"session_id" yaml:"session_id"`
	Status                string     `json:"status" yaml:"status"`
	Progress              int        `json:"progress" yaml:"progress"`
	StepProgress          int        `json:"step_progress" yaml:"step_progress"`
	CurrentStep           string     `json:"current_step,omitempty" yaml:"current_step,omitempty"`
	CurrentStage          string     `json:"current_stage,omitempty" yaml:"current_stage,omitempty"`
	CompletedSteps        []string   `json:"completed_steps" yaml:"completed_steps"`
	FailedSteps           []string   `json:"failed_steps" yaml:"failed_steps"`
	Artifacts             []Artifact `json:"artifacts_available" yaml:"artifacts_available"`
	ArtifactsReady        bool       `json:"artifacts_ready" yaml:"artifacts_ready"`
	PendingQuestions      []Question `json:"pending_questions" yaml:"pending_questions"`
	ExpiresAt             Timestamp  `json:"expires_at" yaml:"expires_at"`
	CreatedAt             Timestamp  `json:"created_at" yaml:"created_at"`
	EstimatedCompletion   Timestamp  `json:"estimated_completion_time" yaml:"estimated_completion_time"`
	ErrorMessage          string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	Message               string     `json:"message,omitempty" yaml:"message,omitempty"`
	DetailedStatusMessage string     `json:"detailed_status_message,omitempty" yaml:"detailed_status_message,omitempty"`
}

// UnmarshalJSON decodes a status payload and normalizes the service's
// alternate field names: stages merge into steps, clarifying questions
// stand in for empty pending questions, and progress is clamped to 0-100.
func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	type plain SessionStatus
	var raw struct {
		plain
		Progress            *float64   `json:"progress"`
		StepProgress        *float64   `json:"step_progress"`
		CurrentStep         *string    `json:"current_step"`
		CompletedStages     []string   `json:"completed_stages"`
		FailedStages        []string   `json:"failed_stages"`
		ClarifyingQuestions []Question `json:"clarifying_questions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = SessionStatus(raw.plain)
	s.Progress = clampPercent(raw.Progress)
	s.StepProgress = clampPercent(raw.StepProgress)
	if raw.CurrentStep != nil {
		s.CurrentStep = *raw.CurrentStep
	}
	s.CompletedSteps = mergeUnique(s.CompletedSteps, raw.CompletedStages)
	s.FailedSteps = mergeUnique(s.FailedSteps, raw.FailedStages)
	if len(s.PendingQuestions) == 0 {
		s.PendingQuestions = raw.ClarifyingQuestions
	}
	return nil
}

// StepLabel is the best available name for what the pipeline is doing.
func (s SessionStatus) StepLabel() string {
	if s.CurrentStep != "" {
		return s.CurrentStep
	}
	return s.CurrentStage
}

func clampPercent(v *float64) int {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, *v))))
}

// mergeUnique returns a followed by the members of b not already present,
// dropping duplicates and empty strings.
func mergeUnique(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// UploadResult is the response to an upload.
type UploadResult struct {
	SessionID     string `json:"session_id" yaml:"session_id"`
	Status        string `json:"status" yaml:"status"`
	UploadedFiles int    `json:"uploaded_files" yaml:"uploaded_files"`
	Message       string `json:"message" yaml:"message"`
}

// Ack is the acknowledgement returned by start, answer, and delete.
type Ack struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
}

// Health is the service health report.
type Health struct {
	Status    string    `json:"status" yaml:"status"`
	Timestamp Timestamp `json:"timestamp" yaml:"timestamp"`
	Version   string    `json:"version" yaml:"version"`
}

// artifactList is the envelope of the artifacts listing.
type artifactList struct {
	Artifacts []Artifact `json:"artifacts"`
}

// errorBody is the service's error envelope.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}
