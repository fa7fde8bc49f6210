// Package errors provides centralized error definitions and error handling
// utilities for lance. It defines the failure kinds the analysis service can
// produce, error constructors with context wrapping, and classification
// helpers used to decide between stopping, retrying, and informing the user.
//
// # Error Types
//
// Remote-service errors, one per failure kind:
//   - NotFoundError: the session or artifact no longer exists (an expected
//     end-of-life condition, not an anomaly)
//   - ServerError: the backend failed; not retriable from the client
//   - NetworkError: no usable response arrived; potentially transient
//   - PipelineError: the remote pipeline failed a stage (the domain error)
//   - RequestError: the backend rejected the request as malformed
//
// Local errors:
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewNotFoundError("session", "abc123")
//
//	if errors.Is(err, errors.ErrSessionNotFound) { ... }
//
//	switch errors.Classify(err) {
//	case errors.KindNotFound:
//	case errors.KindNetwork:
//	}
//
//	if errors.IsRetryable(err) { ... }
//	fmt.Println(errors.UserMessage(err))
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors whose text is safe to display to users
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Remote resource sentinel errors
var (
	// ErrSessionNotFound indicates the remote session record is absent.
	ErrSessionNotFound = New("session not found")
	// ErrArtifactNotFound indicates a requested artifact does not exist.
	ErrArtifactNotFound = New("artifact not found")
	// ErrServer indicates the backend reported an internal failure.
	ErrServer = New("server error")
	// ErrNetwork indicates the request did not produce a usable response.
	ErrNetwork = New("network failure")
	// ErrPipelineFailed indicates the remote analysis pipeline failed.
	ErrPipelineFailed = New("analysis pipeline failed")
)

// Session view sentinel errors
var (
	// ErrSessionClosed indicates the session view was torn down.
	ErrSessionClosed = New("session view closed")
	// ErrNoPendingQuestions indicates an answer was submitted while no
	// questions were open.
	ErrNoPendingQuestions = New("no pending questions")
	// ErrDeletionInFlight indicates a deletion is already running.
	ErrDeletionInFlight = New("deletion already in flight")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LanceError is the base interface for all lance errors.
type LanceError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Remote Service Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a remote resource that no longer exists.
//
// Example:
//
//	err := errors.NewNotFoundError("session", "abc123")
//	fmt.Println(err) // "session 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	switch {
	case target == ErrSessionNotFound:
		return e.ResourceType == "session"
	case target == ErrArtifactNotFound:
		return e.ResourceType == "artifact"
	}
	return e.baseError.Is(target)
}

// ServerError represents a backend failure. The backend detail is kept for
// logs but is never shown to users.
//
// Example:
//
//	err := errors.NewServerError("fetch status", 500, "Failed to get status: boom")
type ServerError struct {
	baseError
	Operation  string
	StatusCode int
	Detail     string
}

// NewServerError creates a new ServerError.
func NewServerError(operation string, statusCode int, detail string) *ServerError {
	return &ServerError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
		Operation:  operation,
		StatusCode: statusCode,
		Detail:     detail,
	}
}

// Error returns the formatted error message.
func (e *ServerError) Error() string {
	msg := fmt.Sprintf("server error [status=%d]: %s", e.StatusCode, e.Operation)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *ServerError) Is(target error) bool {
	if _, ok := target.(*ServerError); ok {
		return true
	}
	if target == ErrServer {
		return true
	}
	return e.baseError.Is(target)
}

// NetworkError represents a request that produced no usable response:
// connection refused, reset, timed out, or an unreadable body.
type NetworkError struct {
	baseError
	Operation string
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(operation string, cause error) *NetworkError {
	return &NetworkError{
		baseError: baseError{
			message:    operation,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: false,
		},
		Operation: operation,
	}
}

// Error returns the formatted error message.
func (e *NetworkError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("network error: %s: %v", e.Operation, e.cause)
	}
	return fmt.Sprintf("network error: %s", e.Operation)
}

// Is checks if this error matches the target.
func (e *NetworkError) Is(target error) bool {
	if _, ok := target.(*NetworkError); ok {
		return true
	}
	if target == ErrNetwork {
		return true
	}
	return e.baseError.Is(target)
}

// PipelineError represents a failure inside the remote analysis pipeline,
// reported through the status payload rather than the transport. Its
// message comes from the backend and is shown verbatim.
type PipelineError struct {
	baseError
	SessionID string
	Step      string
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(message string) *PipelineError {
	return &PipelineError{
		baseError: baseError{
			message:    message,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *PipelineError) WithSessionID(id string) *PipelineError {
	e.SessionID = id
	return e
}

// WithStep adds the failing pipeline step to the error context.
func (e *PipelineError) WithStep(step string) *PipelineError {
	e.Step = step
	return e
}

// Error returns the formatted error message.
func (e *PipelineError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Step != "" {
		parts = append(parts, fmt.Sprintf("step=%s", e.Step))
	}

	prefix := "pipeline error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("pipeline error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Message returns the backend message without decoration.
func (e *PipelineError) Message() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *PipelineError) Is(target error) bool {
	if _, ok := target.(*PipelineError); ok {
		return true
	}
	if target == ErrPipelineFailed {
		return true
	}
	return e.baseError.Is(target)
}

// RequestError represents a request the backend refused (4xx other than 404).
type RequestError struct {
	baseError
	Operation  string
	StatusCode int
}

// NewRequestError creates a new RequestError.
func NewRequestError(operation string, statusCode int, detail string) *RequestError {
	return &RequestError{
		baseError: baseError{
			message:    detail,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Operation:  operation,
		StatusCode: statusCode,
	}
}

// Error returns the formatted error message.
func (e *RequestError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("request rejected [status=%d]: %s", e.StatusCode, e.Operation)
	}
	return fmt.Sprintf("request rejected [status=%d]: %s: %s", e.StatusCode, e.Operation, e.message)
}

// Is checks if this error matches the target.
func (e *RequestError) Is(target error) bool {
	if _, ok := target.(*RequestError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Local Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("session ID cannot be empty")
//	err = err.WithField("sessionID").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Kind is the coarse failure category used by the session lifecycle to
// pick a policy.
type Kind int

const (
	// KindUnknown is any error that is not one of the kinds below.
	KindUnknown Kind = iota
	// KindNotFound is a missing remote record.
	KindNotFound
	// KindServer is a backend-side failure.
	KindServer
	// KindNetwork is a transport-level failure.
	KindNetwork
	// KindPipeline is a failure reported by the analysis pipeline.
	KindPipeline
	// KindRequest is a request the backend rejected.
	KindRequest
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindPipeline:
		return "pipeline"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Classify maps an error onto its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var notFound *NotFoundError
	var server *ServerError
	var network *NetworkError
	var pipeline *PipelineError
	var request *RequestError

	switch {
	case As(err, &notFound):
		return KindNotFound
	case As(err, &server):
		return KindServer
	case As(err, &network):
		return KindNetwork
	case As(err, &pipeline):
		return KindPipeline
	case As(err, &request):
		return KindRequest
	}
	return KindUnknown
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var lanceErr LanceError
	if As(err, &lanceErr) {
		return lanceErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    displayToUser(err.Error())
//	} else {
//	    displayToUser(errors.UserMessage(err))
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var lanceErr LanceError
	if As(err, &lanceErr) {
		return lanceErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement LanceError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var lanceErr LanceError
	if As(err, &lanceErr) {
		return lanceErr.Severity()
	}
	return SeverityError
}

// Generic user-visible messages, one per kind that must not leak detail.
const (
	MessageServer  = "The analysis service reported an error. Please try again later."
	MessageNetwork = "Unable to reach the analysis service. Check your connection and try again."
	MessageUnknown = "Something went wrong. Please try again."
)

// UserMessage returns text suitable for showing to a user. Server and
// network failures get a generic message; user-facing errors are returned
// as-is.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var pipeline *PipelineError
	if As(err, &pipeline) {
		return pipeline.Message()
	}

	switch Classify(err) {
	case KindServer:
		return MessageServer
	case KindNetwork:
		return MessageNetwork
	}
	if IsUserFacing(err) {
		return err.Error()
	}
	return MessageUnknown
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil err.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
