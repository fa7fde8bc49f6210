package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Iron-Ham/lance/internal/clock"
)

func TestTimerSlot_ArmReplaces(t *testing.T) {
	clk := clock.Fake(epoch)
	slot := timerSlot{clock: clk}

	var fired []uint64
	fire := func(gen uint64) {
		if slot.claim(gen) {
			fired = append(fired, gen)
		}
	}

	slot.arm(time.Second, fire)
	slot.arm(2*time.Second, fire)
	slot.arm(3*time.Second, fire)
	assert.Equal(t, 1, clk.PendingCount())

	clk.Advance(3 * time.Second)
	assert.Len(t, fired, 1)
	assert.False(t, slot.armed())
}

func TestTimerSlot_StaleCallbackIsIgnored(t *testing.T) {
	clk := clock.Fake(epoch)
	slot := timerSlot{clock: clk}

	var stale uint64
	slot.arm(time.Second, func(gen uint64) { stale = gen })
	clk.Advance(time.Second)

	// A newer timer was armed before the old callback got to claim.
	slot.arm(time.Second, func(uint64) {})
	assert.False(t, slot.claim(stale))
	assert.True(t, slot.armed())
}

func TestTimerSlot_Cancel(t *testing.T) {
	clk := clock.Fake(epoch)
	slot := timerSlot{clock: clk}

	assert.False(t, slot.cancel(), "nothing to cancel")

	called := false
	slot.arm(time.Second, func(uint64) { called = true })
	assert.True(t, slot.cancel())
	assert.Equal(t, 0, clk.PendingCount())

	clk.Advance(time.Minute)
	assert.False(t, called)
}
