package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Iron-Ham/lance/internal/api"
	"github.com/Iron-Ham/lance/internal/clock"
	"github.com/Iron-Ham/lance/internal/event"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSessionID = "sess-1234"

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Fake service ---------------------------------------------------------

type statusResult struct {
	status *api.SessionStatus
	err    error
}

// fakeService answers status calls from a script. The last scripted
// result repeats once the script runs out.
type fakeService struct {
	mu          sync.Mutex
	script      []statusResult
	statusCalls int
	startCalls  int
	startErr    error
	answers     []map[string]string
	answerErr   error
	deleteCalls int
	deleteErr   error
	deleteHook  func()
}

func (f *fakeService) setStatuses(results ...statusResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = results
}

func (f *fakeService) Status(_ context.Context, sessionID string) (*api.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.script) == 0 {
		return nil, errors.New("fakeService: no status scripted")
	}
	r := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	cp := *r.status
	cp.SessionID = sessionID
	return &cp, nil
}

func (f *fakeService) Start(context.Context, string) (*api.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &api.Ack{Status: "processing"}, nil
}

func (f *fakeService) Answer(_ context.Context, _ string, answers map[string]string) (*api.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answers)
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return &api.Ack{Status: "processing"}, nil
}

func (f *fakeService) Delete(context.Context, string) (*api.Ack, error) {
	f.mu.Lock()
	f.deleteCalls++
	hook, err := f.deleteHook, f.deleteErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &api.Ack{Status: "deleted"}, nil
}

func (f *fakeService) calls() (status, start, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.startCalls, f.deleteCalls
}

func (f *fakeService) statusCount() int {
	s, _, _ := f.calls()
	return s
}

func (f *fakeService) deleteCount() int {
	_, _, d := f.calls()
	return d
}

// ok wraps a status for the script.
func ok(s *api.SessionStatus) statusResult { return statusResult{status: s} }

// fail wraps an error for the script.
func fail(err error) statusResult { return statusResult{err: err} }

// st builds a status payload.
func st(status string, mods ...func(*api.SessionStatus)) *api.SessionStatus {
	s := &api.SessionStatus{Status: status}
	for _, m := range mods {
		m(s)
	}
	return s
}

func withStepProgress(p int) func(*api.SessionStatus) {
	return func(s *api.SessionStatus) { s.StepProgress = p }
}

func withArtifacts(expiresAt time.Time, names ...string) func(*api.SessionStatus) {
	return func(s *api.SessionStatus) {
		s.ArtifactsReady = true
		s.ExpiresAt = api.Timestamp{Time: expiresAt}
		for _, n := range names {
			s.Artifacts = append(s.Artifacts, api.Artifact{Filename: n})
		}
	}
}

func withQuestions(qs ...api.Question) func(*api.SessionStatus) {
	return func(s *api.SessionStatus) { s.PendingQuestions = qs }
}

// --- Event recorder -------------------------------------------------------

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func newRecorder(bus *event.Bus) *recorder {
	r := &recorder{}
	bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(eventType string) int {
	n := 0
	for _, e := range r.all() {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

// ofType returns every recorded event of type T.
func ofType[T event.Event](r *recorder) []T {
	var out []T
	for _, e := range r.all() {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func lastOf[T event.Event](t *testing.T, r *recorder) T {
	t.Helper()
	all := ofType[T](r)
	require.NotEmpty(t, all, "no event of the requested type")
	return all[len(all)-1]
}

// --- Harness --------------------------------------------------------------

type harness struct {
	clock *clock.FakeClock
	svc   *fakeService
	sess  *Session
	rec   *recorder
}

// newHarness builds a session view on a fake clock whose round-trips run
// inline, so every Advance completes the whole poll cycle.
func newHarness(t *testing.T, svc *fakeService, opts ...Option) *harness {
	t.Helper()
	clk := clock.Fake(epoch)
	bus := event.NewBus(nil)
	base := []Option{
		WithClock(clk),
		WithBus(bus),
		WithDispatcher(func(f func()) { f() }),
	}
	sess := New(testSessionID, svc, append(base, opts...)...)
	h := &harness{clock: clk, svc: svc, sess: sess, rec: newRecorder(bus)}
	t.Cleanup(sess.Close)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sess.Start(context.Background()))
}

// queueDispatcher holds round-trips until the test runs them, so
// responses can be made to land in any order.
type queueDispatcher struct {
	mu    sync.Mutex
	queue []func()
}

func (q *queueDispatcher) dispatch(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, f)
}

func (q *queueDispatcher) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// run executes the i-th queued round-trip.
func (q *queueDispatcher) run(i int) {
	q.mu.Lock()
	f := q.queue[i]
	q.queue[i] = func() {}
	q.mu.Unlock()
	f()
}

// drain runs every queued round-trip, including ones queued while
// draining.
func (q *queueDispatcher) drain() {
	for i := 0; i < q.len(); i++ {
		q.run(i)
	}
}
