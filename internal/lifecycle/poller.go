package lifecycle

import (
	"time"

	"github.com/Iron-Ham/lance/internal/api"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/event"
)

// NotFoundMessage is shown when the service no longer knows the session.
const NotFoundMessage = "This session no longer exists. Its files may have expired and been removed."

// ExpiredMessage is shown when the service reports the session as expired
// or deleted.
const ExpiredMessage = "This session has expired and its files were removed."

// pollState is the Status Poller's share of the session state.
type pollState struct {
	slot timerSlot

	// seq numbers every request; lastSeq is the newest one whose result
	// was handled. Results not newer than lastSeq are stale.
	seq     uint64
	lastSeq uint64

	inFlight int
	active   bool
	failed   bool
}

// pollLocked issues a status request. A timer-driven poll is skipped
// while another request is outstanding, since that request re-arms the
// timer when it lands. Forced polls always go out and rely on sequence
// numbers to discard whichever result ends up stale.
func (s *Session) pollLocked(fx *effects, forced bool) {
	if !s.mounted || s.deleting || s.machine.Phase() == PhaseDeleted {
		return
	}
	if s.poll.inFlight > 0 && !forced {
		s.logger.Debug("poll skipped, request outstanding", "in_flight", s.poll.inFlight)
		return
	}

	s.poll.slot.cancel()
	s.poll.seq++
	s.poll.inFlight++
	s.poll.active = true

	seq := s.poll.seq
	ctx := s.ctx
	fx.run(func() {
		status, err := s.svc.Status(ctx, s.id)
		s.update(func(fx *effects) {
			s.onPollResult(fx, seq, status, err)
		})
	})
}

// onPollTimer fires when the poll timer with generation gen expires.
func (s *Session) onPollTimer(gen uint64) {
	s.update(func(fx *effects) {
		if !s.mounted || !s.poll.slot.claim(gen) {
			return
		}
		s.pollLocked(fx, false)
	})
}

// schedulePollLocked arms the poll timer for the cadence of the current
// phase, or stops polling in a terminal phase.
func (s *Session) schedulePollLocked(fx *effects) {
	phase := s.machine.Phase()
	if phase.Terminal() {
		s.stopPollingLocked(fx, event.StopTerminal)
		return
	}
	s.poll.slot.arm(s.cadence(phase), s.onPollTimer)
	s.poll.active = true
}

// cadence returns the poll interval for phase.
func (s *Session) cadence(phase Phase) time.Duration {
	if phase == PhaseUploading || phase == "" {
		return s.medium
	}
	return s.fast
}

// stopPollingLocked cancels the poll timer and reports the stop once.
func (s *Session) stopPollingLocked(fx *effects, reason string) {
	s.poll.slot.cancel()
	if !s.poll.active {
		return
	}
	s.poll.active = false
	s.logger.Debug("polling stopped", "reason", reason)
	fx.publish(event.NewPollingStoppedEvent(s.id, reason))
}

// onPollResult handles the outcome of request seq.
func (s *Session) onPollResult(fx *effects, seq uint64, status *api.SessionStatus, err error) {
	s.poll.inFlight--
	if !s.mounted {
		return
	}
	if seq <= s.poll.lastSeq {
		s.logger.Debug("dropping stale poll result", "seq", seq, "last_seq", s.poll.lastSeq)
		return
	}
	s.poll.lastSeq = seq
	if s.deleting || s.machine.Phase() == PhaseDeleted {
		return
	}

	if err != nil {
		s.onPollErrorLocked(fx, err)
		return
	}
	if s.poll.failed {
		s.poll.failed = false
		fx.publish(event.NewRecoveredEvent(s.id))
	}

	tr := s.machine.Apply(seq, *status)
	if !tr.Applied {
		if !s.gate.IsOpen() {
			s.schedulePollLocked(fx)
		}
		return
	}
	fx.publish(event.NewStatusEvent(s.id, tr.Previous.Event(), tr.Phase.Event(), tr.Status))
	s.reactLocked(fx, tr)
}

// reactLocked drives the other components from an applied transition.
func (s *Session) reactLocked(fx *effects, tr Transition) {
	switch phase := tr.Phase; {
	case phase == PhaseError:
		s.stopPollingLocked(fx, event.StopTerminal)
		s.closeGateLocked(fx)
		if tr.Changed() {
			msg := s.machine.FailureMessage()
			s.logger.Warn("analysis failed", "message", msg)
			fx.publish(event.NewFailedEvent(s.id, msg))
		}

	case phase.Succeeded():
		s.stopPollingLocked(fx, event.StopTerminal)
		s.closeGateLocked(fx)
		if s.machine.ShouldNotify() {
			s.machine.MarkNotified()
			fx.run(s.notifyCompletion(phase))
		}
		switch status := s.machine.Status(); {
		case s.machine.ArtifactsPresentable():
			s.machine.MarkArtifactsPresented()
			fx.publish(event.NewArtifactsReadyEvent(s.id, status.Artifacts, s.machine.ExpiresAt()))
			s.startCountdownLocked(fx)
		case !status.ArtifactsReady:
			s.logger.Info("analysis finished, artifacts not ready yet")
		}

	case phase == PhaseDeleted:
		s.stopPollingLocked(fx, event.StopTerminal)
		s.closeGateLocked(fx)
		s.expiry.slot.cancel()
		fx.publish(event.NewNotFoundEvent(s.id, ExpiredMessage))
		s.navigateAfterGraceLocked(event.NavigateExpired, ExpiredMessage)

	default:
		if s.gateLocked(fx) {
			return
		}
		s.schedulePollLocked(fx)
	}
}

// onPollErrorLocked halts polling after a failed fetch. A vanished
// session navigates away after the grace delay; anything else is
// reported generically and waits for a manual refresh.
func (s *Session) onPollErrorLocked(fx *effects, err error) {
	kind := lerrors.Classify(err)
	if kind == lerrors.KindNotFound {
		s.logger.Info("session not found")
		s.stopPollingLocked(fx, event.StopNotFound)
		s.closeGateLocked(fx)
		s.expiry.slot.cancel()
		fx.publish(event.NewNotFoundEvent(s.id, NotFoundMessage))
		s.navigateAfterGraceLocked(event.NavigateNotFound, NotFoundMessage)
		return
	}

	logFailure(s.logger, "status fetch failed", err, "kind", kind.String())
	s.stopPollingLocked(fx, event.StopFetchFailed)
	s.poll.failed = true
	fx.publish(event.NewConnectivityEvent(s.id, kind.String(), lerrors.UserMessage(err)))
}

// navigateAfterGraceLocked emits a navigate event once the grace delay
// has passed, unless the view is closed first.
func (s *Session) navigateAfterGraceLocked(reason, message string) {
	s.navigate.arm(s.grace, func(gen uint64) {
		s.update(func(fx *effects) {
			if !s.mounted || !s.navigate.claim(gen) {
				return
			}
			fx.publish(event.NewNavigateEvent(s.id, reason, message))
		})
	})
}

// notifyCompletion returns the round-trip that confirms the completion
// notification against the durable markers before publishing it.
func (s *Session) notifyCompletion(phase Phase) func() {
	expiresAt := s.machine.ExpiresAt()
	if expiresAt.IsZero() {
		expiresAt = s.clock.Now().Add(s.defaultTTL)
	}
	ctx := s.ctx
	return func() {
		if s.markers != nil {
			first, err := s.markers.Mark(ctx, s.id, MarkerCompletionNotified, expiresAt)
			switch {
			case err != nil:
				s.logger.Warn("completion marker unavailable", "error", err.Error())
			case !first:
				s.logger.Debug("completion already notified")
				return
			}
		}
		s.update(func(fx *effects) {
			if s.mounted {
				s.logger.Info("analysis complete", "phase", string(phase))
				fx.publish(event.NewCompletedEvent(s.id, phase.Event()))
			}
		})
	}
}
