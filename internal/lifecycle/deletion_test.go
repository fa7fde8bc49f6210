package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/logging"
)

func TestDeleter_Outcomes(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		automatic    bool
		want         Outcome
		wantMessage  string
		wantInFlight bool
	}{
		{"success", nil, false, OutcomeDeleted, MessageDeleted, true},
		{"not found", lerrors.NewNotFoundError("session", testSessionID), false, OutcomeAlreadyGone, MessageAlreadyGone, true},
		{"server error", lerrors.NewServerError("delete session", 500, "boom"), false, OutcomeFatal, MessageDeleteFatal, true},
		{"rejected request", lerrors.NewRequestError("delete session", 400, "confirm required"), false, OutcomeFatal, MessageDeleteFatal, true},
		{"unclassified", errors.New("weird"), true, OutcomeFatal, MessageDeleteFatal, true},
		{"network manual", lerrors.NewNetworkError("delete session", errors.New("connection refused")), false, OutcomeTransient, MessageDeleteRetry, false},
		{"network automatic", lerrors.NewNetworkError("delete session", errors.New("connection refused")), true, OutcomeTransient, MessageAutoDeleteFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{deleteErr: tt.err}
			d := NewDeleter(testSessionID, svc, nil)

			res := d.Request(context.Background(), tt.automatic)
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, tt.wantMessage, res.Message)
			assert.Equal(t, tt.automatic, res.Automatic)
			assert.Equal(t, tt.wantInFlight, d.InFlight())
			assert.Equal(t, 1, svc.deleteCount())
		})
	}
}

func TestDeleter_FailureLogLevelFollowsSeverity(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"server error", lerrors.NewServerError("delete session", 500, "boom"), `"level":"ERROR"`},
		{"rejected request", lerrors.NewRequestError("delete session", 400, "confirm required"), `"level":"WARN"`},
		{"network", lerrors.NewNetworkError("delete session", errors.New("timeout")), `"level":"WARN"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			svc := &fakeService{deleteErr: tt.err}
			NewDeleter(testSessionID, svc, logging.NewWriterLogger(&buf, "debug")).Request(context.Background(), false)

			var failure string
			for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
				if bytes.Contains(line, []byte(`"error":`)) {
					failure = string(line)
				}
			}
			require.NotEmpty(t, failure, "the failure is logged")
			assert.Contains(t, failure, tt.level)
		})
	}
}

func TestDeleter_SettledGuardSkipsLaterRequests(t *testing.T) {
	svc := &fakeService{deleteErr: lerrors.NewServerError("delete session", 503, "unavailable")}
	d := NewDeleter(testSessionID, svc, nil)

	assert.Equal(t, OutcomeFatal, d.Request(context.Background(), true).Outcome)
	assert.Equal(t, OutcomeSkipped, d.Request(context.Background(), false).Outcome)
	assert.Equal(t, 1, svc.deleteCount(), "no retry against a failing service")
}

func TestDeleter_TransientAllowsRetry(t *testing.T) {
	svc := &fakeService{deleteErr: lerrors.NewNetworkError("delete session", errors.New("timeout"))}
	d := NewDeleter(testSessionID, svc, nil)

	assert.Equal(t, OutcomeTransient, d.Request(context.Background(), false).Outcome)

	svc.mu.Lock()
	svc.deleteErr = nil
	svc.mu.Unlock()

	assert.Equal(t, OutcomeDeleted, d.Request(context.Background(), false).Outcome)
	assert.Equal(t, 2, svc.deleteCount())
}

func TestDeleter_ConcurrentRequestsIssueOneCall(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeService{deleteHook: func() {
		close(entered)
		<-release
	}}
	d := NewDeleter(testSessionID, svc, nil)

	var first Result
	var wg sync.WaitGroup
	wg.Go(func() {
		first = d.Request(context.Background(), true)
	})

	<-entered
	// The automatic request is on the wire; a manual click must not race it.
	second := d.Request(context.Background(), false)
	close(release)
	wg.Wait()

	assert.Equal(t, OutcomeDeleted, first.Outcome)
	assert.Equal(t, OutcomeSkipped, second.Outcome)
	assert.Equal(t, 1, svc.deleteCount())
}

func TestOutcome_String(t *testing.T) {
	for o, want := range map[Outcome]string{
		OutcomeSkipped:     "skipped",
		OutcomeDeleted:     "deleted",
		OutcomeAlreadyGone: "already_gone",
		OutcomeFatal:       "fatal",
		OutcomeTransient:   "transient",
	} {
		require.Equal(t, want, o.String())
	}
	assert.True(t, OutcomeAlreadyGone.Navigates())
	assert.False(t, OutcomeTransient.Navigates())
}
