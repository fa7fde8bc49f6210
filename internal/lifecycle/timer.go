package lifecycle

import (
	"time"

	"github.com/Iron-Ham/lance/internal/clock"
)

// timerSlot owns at most one pending timer. Arming a slot stops the
// previous timer first, and every arm or cancel bumps the generation so a
// callback that already fired but has not yet taken the session lock can
// tell it was superseded.
//
// A timerSlot is guarded by the owning Session's mutex.
type timerSlot struct {
	clock clock.Clock
	timer *clock.Timer
	gen   uint64
}

// arm schedules fire after d, replacing any pending timer.
func (t *timerSlot) arm(d time.Duration, fire func(gen uint64)) {
	t.cancel()
	gen := t.gen
	t.timer = t.clock.AfterFunc(d, func() { fire(gen) })
}

// cancel stops the pending timer, if any. It reports whether one was
// pending.
func (t *timerSlot) cancel() bool {
	t.gen++
	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	return true
}

// claim is called by a firing callback. It reports whether gen is still
// the slot's live timer and, if so, marks the slot empty.
func (t *timerSlot) claim(gen uint64) bool {
	if gen != t.gen || t.timer == nil {
		return false
	}
	t.timer = nil
	return true
}

// armed reports whether a timer is pending.
func (t *timerSlot) armed() bool { return t.timer != nil }
