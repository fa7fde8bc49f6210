package lifecycle

import (
	"context"
	"sync/atomic"

	"github.com/Iron-Ham/lance/internal/api"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/logging"
)

// Outcome classifies how a deletion request ended.
type Outcome int

const (
	// OutcomeSkipped means another deletion was already in flight, or an
	// earlier one settled the session.
	OutcomeSkipped Outcome = iota
	// OutcomeDeleted means the service removed the session.
	OutcomeDeleted
	// OutcomeAlreadyGone means the service no longer knew the session.
	OutcomeAlreadyGone
	// OutcomeFatal means the service failed; the attempt is not repeated.
	OutcomeFatal
	// OutcomeTransient means the service could not be reached; a manual
	// retry is possible.
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDeleted:
		return "deleted"
	case OutcomeAlreadyGone:
		return "already_gone"
	case OutcomeFatal:
		return "fatal"
	case OutcomeTransient:
		return "transient"
	default:
		return "skipped"
	}
}

// Navigates reports whether the view should leave the session after o.
func (o Outcome) Navigates() bool {
	return o == OutcomeDeleted || o == OutcomeAlreadyGone || o == OutcomeFatal
}

// User-facing deletion messages.
const (
	MessageDeleted          = "Session deleted. All uploaded files and results were removed."
	MessageAlreadyGone      = "All done! This session was already cleaned up."
	MessageDeleteFatal      = "We couldn't confirm the deletion. The session will still be removed automatically when it expires."
	MessageDeleteRetry      = "Couldn't reach the analysis service to delete the session. Check your connection and try again."
	MessageAutoDeleteFailed = "Automatic deletion couldn't reach the service. The session will be removed when it expires."
	MessageDeleteInFlight   = "A deletion for this session is already in progress."
)

// Result is the outcome of one deletion request.
type Result struct {
	Outcome   Outcome
	Automatic bool
	Message   string
	Err       error
}

// SessionDeleter is the service call the Deleter issues.
type SessionDeleter interface {
	Delete(ctx context.Context, sessionID string) (*api.Ack, error)
}

// Deleter serializes deletion requests for one session. At most one
// request is in flight; the guard is taken before the network call so a
// concurrent request cannot slip past it.
type Deleter struct {
	id       string
	svc      SessionDeleter
	logger   *logging.Logger
	inFlight atomic.Bool
}

// NewDeleter creates a Deleter for sessionID.
func NewDeleter(sessionID string, svc SessionDeleter, logger *logging.Logger) *Deleter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Deleter{
		id:     sessionID,
		svc:    svc,
		logger: logger.WithComponent("deleter"),
	}
}

// Request deletes the session unless a deletion is already in flight.
//
// A session the service no longer knows counts as deleted. A server
// failure is final and keeps the guard, so nothing retries against a
// broken service. A network failure releases the guard so the user can
// retry; automatic requests do not retry on their own.
func (d *Deleter) Request(ctx context.Context, automatic bool) Result {
	if !d.acquire() {
		return Result{Outcome: OutcomeSkipped, Automatic: automatic, Message: MessageDeleteInFlight}
	}
	return d.issue(ctx, automatic)
}

// InFlight reports whether the guard is held.
func (d *Deleter) InFlight() bool { return d.inFlight.Load() }

func (d *Deleter) acquire() bool {
	return d.inFlight.CompareAndSwap(false, true)
}

// issue sends the request. The caller must hold the guard.
func (d *Deleter) issue(ctx context.Context, automatic bool) Result {
	log := d.logger.With("automatic", automatic)
	log.Info("deleting session")

	_, err := d.svc.Delete(ctx, d.id)
	if err == nil {
		log.Info("session deleted")
		return Result{Outcome: OutcomeDeleted, Automatic: automatic, Message: MessageDeleted}
	}

	res := Result{Automatic: automatic, Err: err}
	switch kind := lerrors.Classify(err); {
	case kind == lerrors.KindNotFound:
		log.Info("session already gone")
		res.Outcome = OutcomeAlreadyGone
		res.Message = MessageAlreadyGone
	case lerrors.IsRetryable(err):
		d.inFlight.Store(false)
		res.Outcome = OutcomeTransient
		if automatic {
			log.Warn("automatic deletion abandoned", "error", err.Error())
			res.Message = MessageAutoDeleteFailed
		} else {
			log.Warn("deletion failed, retry possible", "error", err.Error())
			res.Message = MessageDeleteRetry
		}
	default:
		logFailure(log, "deletion failed", err, "kind", kind.String())
		res.Outcome = OutcomeFatal
		res.Message = MessageDeleteFatal
	}
	return res
}

// logFailure logs err at the level its severity calls for.
func logFailure(log *logging.Logger, msg string, err error, args ...any) {
	args = append(args, "error", err.Error())
	switch lerrors.GetSeverity(err) {
	case lerrors.SeverityCritical, lerrors.SeverityError:
		log.Error(msg, args...)
	case lerrors.SeverityWarning:
		log.Warn(msg, args...)
	default:
		log.Info(msg, args...)
	}
}

// Delete deletes the session on the user's request. Poll and countdown
// timers are canceled before the request goes out. A concurrent request
// yields OutcomeSkipped.
func (s *Session) Delete(ctx context.Context) Result {
	var begun bool
	s.update(func(fx *effects) {
		begun = s.beginDeletionLocked(fx, false)
	})
	if !begun {
		return Result{Outcome: OutcomeSkipped, Message: MessageDeleteInFlight}
	}

	res := s.deleter.issue(ctx, false)
	s.update(func(fx *effects) {
		s.finishDeletionLocked(fx, res)
	})
	return res
}

// beginDeletionLocked takes the deletion guard and silences every timer
// the view owns. It reports whether the caller should issue the request.
func (s *Session) beginDeletionLocked(fx *effects, automatic bool) bool {
	if !s.mounted {
		return false
	}
	if !s.deleter.acquire() {
		s.logger.Debug("deletion skipped, already in flight", "automatic", automatic)
		return false
	}
	s.deleting = true
	s.stopPollingLocked(fx, event.StopDeletion)
	s.expiry.slot.cancel()
	s.navigate.cancel()
	fx.publish(event.NewDeletionStartedEvent(s.id, automatic))
	return true
}

// finishDeletionLocked applies a deletion result to the view.
func (s *Session) finishDeletionLocked(fx *effects, res Result) {
	s.deleting = false
	if !s.mounted {
		return
	}
	fx.publish(event.NewDeletionFinishedEvent(s.id, res.Automatic, res.Outcome.String(), res.Message))

	switch res.Outcome {
	case OutcomeDeleted, OutcomeAlreadyGone:
		s.machine.MarkDeleted()
		s.closeGateLocked(fx)
		if s.markers != nil {
			ctx := s.detached()
			fx.run(func() {
				if err := s.markers.Forget(ctx, s.id); err != nil {
					s.logger.Warn("forgetting markers failed", "error", err.Error())
				}
			})
		}
		reason := event.NavigateDeleted
		if res.Outcome == OutcomeAlreadyGone {
			reason = event.NavigateAlreadyGone
		}
		fx.publish(event.NewNavigateEvent(s.id, reason, res.Message))

	case OutcomeFatal:
		fx.publish(event.NewNavigateEvent(s.id, event.NavigateDeleteFailed, res.Message))

	case OutcomeTransient:
		if res.Automatic {
			return
		}
		// The session still exists: pick up where the view left off.
		if s.expiry.started && !s.expiry.expired {
			s.tickLocked(fx)
		}
		if !s.machine.Phase().Terminal() && !s.gate.IsOpen() {
			s.schedulePollLocked(fx)
		}
	}
}
