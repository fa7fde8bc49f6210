package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/Iron-Ham/lance/internal/errors"
)

// recorder captures requests seen by a test server.
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (r *recorder) record(req *http.Request) {
	data, _ := io.ReadAll(req.Body)
	req.Body = io.NopCloser(bytes.NewReader(data))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, string(data))
}

func (r *recorder) last() (*http.Request, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.requests)
	return r.requests[n-1], r.bodies[n-1]
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c, rec
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c, err = NewClient(Config{BaseURL: "https://svc.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://svc.example.com", c.BaseURL())

	for _, bad := range []string{"svc.example.com", "ftp://svc", "http://"} {
		_, err := NewClient(Config{BaseURL: bad})
		assert.Error(t, err, bad)
		assert.ErrorIs(t, err, lerrors.ErrInvalidInput)
	}
}

func TestStatus(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{
			"session_id": "s1",
			"status": "completed",
			"progress": 100,
			"step_progress": 140.4,
			"current_step": null,
			"current_stage": "report",
			"completed_stages": ["parse", "timeline"],
			"completed_steps": ["timeline", "report"],
			"artifacts_available": ["report.pdf", "timeline.csv"],
			"artifacts_ready": true,
			"clarifying_questions": [{"id": "q1", "agent": "analysis", "question": "When?"}],
			"expires_at": "2026-10-16T12:00:00.123456",
			"created_at": "2026-10-16T11:00:00Z"
		}`)
	})

	st, err := c.Status(context.Background(), "s1")
	require.NoError(t, err)

	req, _ := rec.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/session/s1/status", req.URL.Path)

	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, 100, st.StepProgress, "step progress is clamped")
	assert.Equal(t, "", st.CurrentStep)
	assert.Equal(t, "report", st.StepLabel())
	assert.Equal(t, []string{"timeline", "report", "parse"}, st.CompletedSteps)
	require.Len(t, st.Artifacts, 2)
	assert.Equal(t, "report.pdf", st.Artifacts[0].Filename)
	require.Len(t, st.PendingQuestions, 1)
	assert.Equal(t, "q1", st.PendingQuestions[0].ID)
	assert.Equal(t, time.Date(2026, 10, 16, 12, 0, 0, 123456000, time.UTC), st.ExpiresAt.Time)
	assert.Equal(t, time.Date(2026, 10, 16, 11, 0, 0, 0, time.UTC), st.CreatedAt.Time)
}

func TestStatusFillsMissingSessionID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status": "processing"}`)
	})
	st, err := c.Status(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", st.SessionID)
}

func TestRequestIDHeader(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status": "healthy", "version": "1.0.0"}`)
	})

	_, err := c.Health(context.Background())
	require.NoError(t, err)
	first, _ := rec.last()
	_, err = c.Health(context.Background())
	require.NoError(t, err)
	second, _ := rec.last()

	id1 := first.Header.Get(RequestIDHeader)
	id2 := second.Header.Get(RequestIDHeader)
	assert.Len(t, id1, 36)
	assert.NotEqual(t, id1, id2)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want lerrors.Kind
	}{
		{"plain 404", 404, `{"detail": "Session not found"}`, lerrors.KindNotFound},
		{"404 wrapped in 500", 500, `{"detail": "Failed to get status: 404: Session not found"}`, lerrors.KindNotFound},
		{"server error", 500, `{"detail": "Failed to get status: KeyError"}`, lerrors.KindServer},
		{"bad gateway text", 502, `upstream down`, lerrors.KindServer},
		{"bad request", 400, `{"detail": "Deletion not confirmed"}`, lerrors.KindRequest},
		{"validation detail", 422, `{"detail": [{"loc": ["body"], "msg": "field required"}]}`, lerrors.KindRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.code, tt.body)
			})

			_, err := c.Status(context.Background(), "s1")
			require.Error(t, err)
			assert.Equal(t, tt.want, lerrors.Classify(err), "err = %v", err)
		})
	}
}

func TestServerErrorKeepsDetailOutOfUserMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, `{"detail": "Traceback: secret internals"}`)
	})

	_, err := c.Status(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret internals")
	assert.Equal(t, lerrors.MessageServer, lerrors.UserMessage(err))
}

func TestNotFoundSessionSentinel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, `{"detail": "Session not found"}`)
	})

	_, err := c.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, lerrors.ErrSessionNotFound)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Status(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, lerrors.KindNetwork, lerrors.Classify(err))
	assert.True(t, lerrors.IsRetryable(err))
}

func TestCanceledContextIsNetworkFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Status(ctx, "s1")
	require.Error(t, err)
	assert.Equal(t, lerrors.KindNetwork, lerrors.Classify(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMalformedBodyIsServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status": `)
	})
	_, err := c.Status(context.Background(), "s1")
	assert.Equal(t, lerrors.KindServer, lerrors.Classify(err))
}

func TestDeleteSendsConfirmation(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status": "deleted", "message": "Session and all data permanently deleted"}`)
	})

	ack, err := c.Delete(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "deleted", ack.Status)

	req, body := rec.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/session/s1/delete", req.URL.Path)
	assert.JSONEq(t, `{"confirm": true}`, body)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestStartAndAnswer(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status": "ok", "message": "fine"}`)
	})

	_, err := c.Start(context.Background(), "s1")
	require.NoError(t, err)
	req, _ := rec.last()
	assert.Equal(t, "/api/session/s1/start", req.URL.Path)
	assert.Equal(t, http.MethodPost, req.Method)

	_, err = c.Answer(context.Background(), "s1", map[string]string{"general_response": "June 3rd"})
	require.NoError(t, err)
	req, body := rec.last()
	assert.Equal(t, "/api/session/s1/answer", req.URL.Path)
	assert.JSONEq(t, `{"general_response": "June 3rd"}`, body)
}

func TestArtifacts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"artifacts": [
			{"name": "report.pdf", "size": 2048, "created": "2026-10-16T11:30:00"},
			{"filename": "timeline.csv", "size": 10, "created_at": "2026-10-16T11:31:00Z"}
		]}`)
	})

	arts, err := c.Artifacts(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "report.pdf", arts[0].Filename)
	assert.EqualValues(t, 2048, arts[0].Size)
	assert.Equal(t, time.Date(2026, 10, 16, 11, 30, 0, 0, time.UTC), arts[0].CreatedAt.Time)
	assert.Equal(t, "timeline.csv", arts[1].Filename)
}

func TestDownload(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.pdf") {
			writeJSON(w, 404, `{"detail": "Artifact not found"}`)
			return
		}
		w.Header().Set("Content-Length", "5")
		_, _ = io.WriteString(w, "%PDF-")
	})

	rc, size, err := c.Download(context.Background(), "s1", "report final.pdf")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data))
	assert.EqualValues(t, 5, size)

	req, _ := rec.last()
	assert.Equal(t, "/api/session/s1/download/report final.pdf", req.URL.Path)

	_, _, err = c.Download(context.Background(), "s1", "missing.pdf")
	assert.ErrorIs(t, err, lerrors.ErrArtifactNotFound)
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("bravo"), 0o644))

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, 400, `{"detail": "bad form"}`)
			return
		}
		var names []string
		for _, fh := range r.MultipartForm.File["files"] {
			names = append(names, fh.Filename)
		}
		writeJSON(w, 200, `{"session_id": "new-1", "status": "created", "uploaded_files": 2, "message": "`+strings.Join(names, ",")+`"}`)
	})

	res, err := c.Upload(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, "new-1", res.SessionID)
	assert.Equal(t, 2, res.UploadedFiles)
	assert.Equal(t, "a.pdf,b.txt", res.Message)

	_, err = c.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, lerrors.ErrInvalidInput)

	_, err = c.Upload(context.Background(), []string{filepath.Join(dir, "nope")})
	assert.ErrorIs(t, err, lerrors.ErrInvalidInput)
}

func TestTimestampForms(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2026-10-16T12:00:00Z"`, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)},
		{`"2026-10-16T14:00:00+02:00"`, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)},
		{`"2026-10-16T12:00:00"`, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)},
		{`"2026-10-16 12:00:00.5"`, time.Date(2026, 10, 16, 12, 0, 0, 500000000, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v want %v", ts.Time, tt.want)
		})
	}

	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestQuestionKey(t *testing.T) {
	assert.Equal(t, "q7", Question{ID: "q7", Question: "x"}.Key())
	assert.Equal(t, "analysis|When?", Question{Agent: "analysis", Question: "When?"}.Key())
}
