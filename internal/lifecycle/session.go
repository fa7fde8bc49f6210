package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/lance/internal/api"
	"github.com/Iron-Ham/lance/internal/clock"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/logging"
)

// Service is the part of the analysis service API a session view drives.
// *api.Client implements it.
type Service interface {
	Status(ctx context.Context, sessionID string) (*api.SessionStatus, error)
	Start(ctx context.Context, sessionID string) (*api.Ack, error)
	Answer(ctx context.Context, sessionID string, answers map[string]string) (*api.Ack, error)
	Delete(ctx context.Context, sessionID string) (*api.Ack, error)
}

// MarkerStore remembers per-session one-shot facts beyond the lifetime
// of a single view. *markers.SQLiteStore and *markers.MemoryStore
// implement it.
type MarkerStore interface {
	// Mark records name for the session and reports whether this call was
	// the first to do so. The marker is forgotten after expiresAt.
	Mark(ctx context.Context, sessionID, name string, expiresAt time.Time) (bool, error)

	// Forget drops every marker of the session.
	Forget(ctx context.Context, sessionID string) error
}

// MarkerCompletionNotified is the durable marker behind the one-time
// completion notification.
const MarkerCompletionNotified = "completion_notified"

// Session is the lifecycle coordinator for one session view. It polls the
// service, folds each status into a Machine, gates clarifying questions,
// runs the expiry countdown and deletes the session when it expires.
//
// All state is guarded by mu, which serializes timer callbacks, network
// completions and caller requests the way a single event loop would.
// Network calls run outside the lock. Events are published after the
// lock is released, so handlers may call back into the Session.
type Session struct {
	id       string
	svc      Service
	bus      *event.Bus
	clock    clock.Clock
	logger   *logging.Logger
	markers  MarkerStore
	deleter  *Deleter
	dispatch func(func())

	fast       time.Duration
	medium     time.Duration
	tick       time.Duration
	grace      time.Duration
	defaultTTL time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	started  bool
	mounted  bool
	machine  *Machine
	gate     Gate
	poll     pollState
	expiry   countdownState
	navigate timerSlot
	deleting bool
}

// New creates a session view for sessionID. Call Start to begin polling
// and Close to tear the view down.
//
// svc must be non-nil and sessionID non-empty; New panics otherwise to
// surface wiring bugs early.
func New(sessionID string, svc Service, opts ...Option) *Session {
	if sessionID == "" {
		panic("lifecycle: session ID must not be empty")
	}
	if svc == nil {
		panic("lifecycle: Service must not be nil")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = clock.Real()
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.bus == nil {
		cfg.bus = event.NewBus(cfg.logger)
	}

	logger := cfg.logger.WithSession(sessionID).WithComponent("lifecycle")
	s := &Session{
		id:         sessionID,
		svc:        svc,
		bus:        cfg.bus,
		clock:      cfg.clock,
		logger:     logger,
		markers:    cfg.markers,
		deleter:    NewDeleter(sessionID, svc, logger),
		dispatch:   cfg.dispatch,
		fast:       orDefault(cfg.fast, DefaultFastInterval),
		medium:     orDefault(cfg.medium, DefaultMediumInterval),
		tick:       orDefault(cfg.tick, DefaultCountdownTick),
		grace:      orDefault(cfg.grace, DefaultNotFoundGrace),
		defaultTTL: orDefault(cfg.defaultTTL, DefaultTTL),
		machine:    NewMachine(logger.WithComponent("state_machine")),
	}
	if s.dispatch == nil {
		s.dispatch = func(f func()) { go f() }
	}
	s.poll.slot.clock = cfg.clock
	s.expiry.slot.clock = cfg.clock
	s.navigate.clock = cfg.clock
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Bus returns the bus lifecycle events are published on.
func (s *Session) Bus() *event.Bus { return s.bus }

// Start mounts the view and issues the first status poll. The view's
// network calls use a context derived from ctx.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("lifecycle: session view already started")
	}
	s.started = true
	s.mounted = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("session view started")
	s.update(func(fx *effects) {
		s.pollLocked(fx, true)
	})
	return nil
}

// StartAnalysis asks the service to start the pipeline and polls right
// away so the uploading to processing move shows immediately.
func (s *Session) StartAnalysis(ctx context.Context) error {
	if !s.isMounted() {
		return lerrors.ErrSessionClosed
	}
	if _, err := s.svc.Start(ctx, s.id); err != nil {
		s.logger.Warn("start analysis failed", "error", err.Error())
		return err
	}
	s.logger.Info("analysis started")
	s.update(func(fx *effects) {
		s.pollLocked(fx, true)
	})
	return nil
}

// Refresh polls immediately. After a connectivity failure it restarts the
// poll loop; while questions are open it fetches once without resuming.
func (s *Session) Refresh() {
	s.update(func(fx *effects) {
		s.pollLocked(fx, true)
	})
}

// Close tears the view down: every timer is canceled, in-flight requests
// are canceled, and late responses are discarded. Close waits for
// dispatched round-trips to return, so it must not be called from an
// event handler. It is safe to call more than once.
func (s *Session) Close() {
	var fx effects
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.stopPollingLocked(&fx, event.StopClosed)
	s.mounted = false
	s.expiry.slot.cancel()
	s.navigate.cancel()
	cancel := s.cancel
	s.mu.Unlock()

	for _, e := range fx.events {
		s.bus.Publish(e)
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("session view closed")
}

// Snapshot is a point-in-time copy of the view's state.
type Snapshot struct {
	SessionID string
	Phase     Phase
	Status    api.SessionStatus
	Mounted   bool
	Polling   bool

	// Questions is the open question set, nil when the prompt is closed.
	Questions []api.Question

	// ExpiresAt and Remaining describe the countdown once it started.
	ExpiresAt time.Time
	Remaining time.Duration
	Counting  bool
	Expired   bool

	Deleting bool
}

// Snapshot returns the current state of the view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID: s.id,
		Phase:     s.machine.Phase(),
		Status:    s.machine.Status(),
		Mounted:   s.mounted,
		Polling:   s.poll.active,
		ExpiresAt: s.machine.ExpiresAt(),
		Counting:  s.expiry.started && !s.expiry.expired,
		Expired:   s.expiry.expired,
		Deleting:  s.deleting,
	}
	if s.gate.IsOpen() {
		snap.Questions = s.gate.Questions()
	}
	if s.expiry.started {
		snap.ExpiresAt = s.expiry.deadline
		snap.Remaining = max(s.expiry.deadline.Sub(s.clock.Now()), 0)
	}
	return snap
}

func (s *Session) isMounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// effects collects what a locked section wants done once the lock is
// released.
type effects struct {
	events []event.Event
	runs   []func()
}

func (fx *effects) publish(e event.Event) { fx.events = append(fx.events, e) }

func (fx *effects) run(f func()) { fx.runs = append(fx.runs, f) }

// update runs fn under the lock, then publishes the events it queued and
// dispatches its round-trips. Round-trips queued after teardown are
// dropped; the rest are counted in wg before the lock is released so
// Close can wait for them.
func (s *Session) update(fn func(fx *effects)) {
	var fx effects
	s.mu.Lock()
	fn(&fx)
	if !s.mounted {
		fx.runs = nil
	}
	s.wg.Add(len(fx.runs))
	s.mu.Unlock()

	for _, e := range fx.events {
		s.bus.Publish(e)
	}
	for _, f := range fx.runs {
		s.dispatch(func() {
			defer s.wg.Done()
			f()
		})
	}
}

// detached returns a context for bookkeeping that must finish even when
// the view is closed right after.
func (s *Session) detached() context.Context {
	return context.WithoutCancel(s.ctx)
}
