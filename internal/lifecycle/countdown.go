package lifecycle

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/lance/internal/event"
)

// countdownState is the TTL Monitor's share of the session state.
type countdownState struct {
	slot     timerSlot
	deadline time.Time
	started  bool
	expired  bool
}

// ExpiryLabel renders the time left before files are removed, e.g.
// "Files expire in 59m 59s". Partial seconds are dropped.
func ExpiryLabel(remaining time.Duration) string {
	secs := max(int64(remaining/time.Second), 0)
	if m := secs / 60; m > 0 {
		return fmt.Sprintf("Files expire in %dm %ds", m, secs%60)
	}
	return fmt.Sprintf("Files expire in %ds", secs)
}

// startCountdownLocked begins ticking toward the pinned expiry. Calling
// it again replaces the running timer.
func (s *Session) startCountdownLocked(fx *effects) {
	if s.expiry.expired {
		return
	}
	deadline := s.machine.ExpiresAt()
	if deadline.IsZero() {
		deadline = s.clock.Now().Add(s.defaultTTL)
		s.logger.Warn("no expiry reported, assuming default retention", "ttl", s.defaultTTL.String())
	}
	s.expiry.deadline = deadline
	s.expiry.started = true
	s.logger.Info("countdown started", "expires_at", deadline.Format(time.RFC3339))
	s.tickLocked(fx)
}

// tickLocked publishes the remaining time, recomputed from the clock, and
// arms the next tick. The last tick lands exactly on the deadline.
func (s *Session) tickLocked(fx *effects) {
	remaining := max(s.expiry.deadline.Sub(s.clock.Now()), 0)
	fx.publish(event.NewCountdownTickEvent(s.id, remaining, ExpiryLabel(remaining)))
	if remaining == 0 {
		s.expireLocked(fx)
		return
	}
	s.expiry.slot.arm(min(s.tick, remaining), s.onCountdownTimer)
}

func (s *Session) onCountdownTimer(gen uint64) {
	s.update(func(fx *effects) {
		if !s.mounted || !s.expiry.slot.claim(gen) {
			return
		}
		s.tickLocked(fx)
	})
}

// expireLocked handles the zero crossing. The timer is canceled first;
// the expired flag keeps a second crossing from reporting or deleting
// again.
func (s *Session) expireLocked(fx *effects) {
	s.expiry.slot.cancel()
	if s.expiry.expired {
		return
	}
	s.expiry.expired = true
	s.logger.Info("session expired")
	fx.publish(event.NewExpiredEvent(s.id))

	if s.beginDeletionLocked(fx, true) {
		ctx := s.ctx
		fx.run(func() {
			res := s.deleter.issue(ctx, true)
			s.update(func(fx *effects) {
				s.finishDeletionLocked(fx, res)
			})
		})
	}
}
