// Package clock abstracts the wall clock and one-shot timers so that the
// session lifecycle code can be driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake(), whose time only moves
// when Advance is called and whose pending timers can be counted.
package clock

import "time"

// Clock is the subset of the time package the lifecycle code depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d and then calls f in its own goroutine (real)
	// or synchronously inside Advance (fake). The returned Timer cancels
	// the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a handle on a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop prevents the timer from firing. It returns true if the call
// stopped the timer, false if it already fired or was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}
