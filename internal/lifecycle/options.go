package lifecycle

import (
	"time"

	"github.com/Iron-Ham/lance/internal/clock"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/logging"
)

const (
	// DefaultFastInterval is the poll cadence while the pipeline runs or
	// waits for input.
	DefaultFastInterval = time.Second

	// DefaultMediumInterval is the poll cadence while the session is still
	// uploading.
	DefaultMediumInterval = 2 * time.Second

	// DefaultCountdownTick is how often the expiry countdown is recomputed.
	DefaultCountdownTick = time.Second

	// DefaultNotFoundGrace is how long a not-found message stays on screen
	// before the view navigates away.
	DefaultNotFoundGrace = 3 * time.Second

	// DefaultTTL stands in for a missing expires_at. It matches the
	// service's session retention.
	DefaultTTL = time.Hour
)

// Option configures a Session.
type Option func(*config)

type config struct {
	clock      clock.Clock
	logger     *logging.Logger
	bus        *event.Bus
	markers    MarkerStore
	fast       time.Duration
	medium     time.Duration
	tick       time.Duration
	grace      time.Duration
	defaultTTL time.Duration
	dispatch   func(func())
}

// WithClock sets the time source for every timer the session owns.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithLogger sets the logger for the session.
func WithLogger(logger *logging.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithBus sets the bus lifecycle events are published on. Without it the
// session creates its own; use Session.Bus to subscribe.
func WithBus(bus *event.Bus) Option {
	return func(cfg *config) {
		cfg.bus = bus
	}
}

// WithMarkers backs the completion notification with a durable store so
// it is not repeated when the session is opened again.
func WithMarkers(store MarkerStore) Option {
	return func(cfg *config) {
		cfg.markers = store
	}
}

// WithPollIntervals sets the fast and medium poll cadences. Zero or
// negative values keep the defaults.
func WithPollIntervals(fast, medium time.Duration) Option {
	return func(cfg *config) {
		cfg.fast = fast
		cfg.medium = medium
	}
}

// WithCountdownTick sets the countdown refresh interval.
func WithCountdownTick(d time.Duration) Option {
	return func(cfg *config) {
		cfg.tick = d
	}
}

// WithNotFoundGrace sets the delay between reporting a vanished session
// and navigating away.
func WithNotFoundGrace(d time.Duration) Option {
	return func(cfg *config) {
		cfg.grace = d
	}
}

// WithDefaultTTL sets the retention assumed when expires_at is missing.
func WithDefaultTTL(d time.Duration) Option {
	return func(cfg *config) {
		cfg.defaultTTL = d
	}
}

// WithDispatcher sets how network round-trips are run. The default runs
// each one on its own goroutine. Tests pass a function that calls f
// inline so every step is deterministic.
func WithDispatcher(dispatch func(f func())) Option {
	return func(cfg *config) {
		cfg.dispatch = dispatch
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
