package download

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/lance/internal/api"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
)

const sessionID = "3f2a9c1e-7b4d-4e0a-9a51-2f6c8d1b0e77"

var files = map[string]string{
	"report.md":   "# Findings\n",
	"summary.pdf": strings.Repeat("x", 4096),
	"data.json":   `{"ok":true}`,
}

// newServer serves the artifact listing and downloads for files. Names in
// broken answer with a 500.
func newServer(t *testing.T, broken ...string) (*api.Client, *atomic.Int32) {
	t.Helper()
	var active, peak atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/session/{id}/artifacts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"artifacts":[
			{"name":"report.md","size":11},
			{"name":"summary.pdf","size":4096},
			{"name":"data.json","size":11}]}`)
	})
	mux.HandleFunc("GET /api/session/{id}/download/{name}", func(w http.ResponseWriter, r *http.Request) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)

		name := r.PathValue("name")
		for _, b := range broken {
			if b == name {
				http.Error(w, `{"detail":"disk error"}`, http.StatusInternalServerError)
				return
			}
		}
		body, ok := files[name]
		if !ok {
			http.Error(w, `{"detail":"Artifact not found"}`, http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := api.NewClient(api.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c, &peak
}

func TestFetch_AllArtifacts(t *testing.T) {
	c, peak := newServer(t)
	dir := filepath.Join(t.TempDir(), "out")

	f := NewFetcher(c, Options{Dir: dir, Concurrency: 2})
	results, err := f.Fetch(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Zero(t, Failed(results))

	assert.Equal(t, []string{"report.md", "summary.pdf", "data.json"},
		[]string{results[0].Name, results[1].Name, results[2].Name}, "listing order is kept")
	for _, r := range results {
		data, err := os.ReadFile(r.Path)
		require.NoError(t, err)
		assert.Equal(t, files[r.Name], string(data))
		assert.EqualValues(t, len(files[r.Name]), r.Bytes)
	}
	assert.Equal(t, "4.1 kB", results[1].Size())
	assert.LessOrEqual(t, peak.Load(), int32(2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files are left behind")
}

func TestFetch_SelectedNames(t *testing.T) {
	c, _ := newServer(t)
	f := NewFetcher(c, Options{Dir: t.TempDir()})

	results, err := f.Fetch(context.Background(), sessionID, "data.json")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "data.json", results[0].Name)
	assert.True(t, results[0].OK())
}

func TestFetch_UnknownName(t *testing.T) {
	c, _ := newServer(t)
	f := NewFetcher(c, Options{Dir: t.TempDir()})

	_, err := f.Fetch(context.Background(), sessionID, "missing.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, lerrors.ErrArtifactNotFound)
}

func TestFetch_OneFailureDoesNotStopOthers(t *testing.T) {
	c, _ := newServer(t, "summary.pdf")
	dir := t.TempDir()
	f := NewFetcher(c, Options{Dir: dir})

	results, err := f.Fetch(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, Failed(results))

	assert.True(t, results[0].OK())
	assert.True(t, results[2].OK())
	assert.Equal(t, lerrors.KindServer, lerrors.Classify(results[1].Err))
	assert.NoFileExists(t, filepath.Join(dir, "summary.pdf"))
}

func TestFetch_CancelledContext(t *testing.T) {
	c, _ := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(c, Options{Dir: t.TempDir()}).Fetch(ctx, sessionID)
	assert.Error(t, err)
}

type stubSource struct {
	listed []api.Artifact
	body   string
	size   int64
}

func (s stubSource) Artifacts(context.Context, string) ([]api.Artifact, error) {
	return s.listed, nil
}

func (s stubSource) Download(context.Context, string, string) (io.ReadCloser, int64, error) {
	return io.NopCloser(strings.NewReader(s.body)), s.size, nil
}

func TestFetch_ShortBody(t *testing.T) {
	dir := t.TempDir()
	src := stubSource{listed: []api.Artifact{{Filename: "a.txt"}}, body: "abc", size: 10}

	results, err := NewFetcher(src, Options{Dir: dir}).Fetch(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, lerrors.KindNetwork, lerrors.Classify(results[0].Err))
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))
}

func TestFetch_ShortBodyKeepsExistingCopy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))
	src := stubSource{listed: []api.Artifact{{Filename: "a.txt"}}, body: "abc", size: 10}

	results, err := NewFetcher(src, Options{Dir: dir}).Fetch(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, lerrors.KindNetwork, lerrors.Classify(results[0].Err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data), "a truncated body must not replace a good copy")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the temp file is removed")
}

func TestFetch_RejectsUnsafeNames(t *testing.T) {
	dir := t.TempDir()
	src := stubSource{
		listed: []api.Artifact{{Filename: "../escape.txt"}, {Filename: ".."}, {Filename: "ok.txt"}},
		body:   "hi",
		size:   -1,
	}

	results, err := NewFetcher(src, Options{Dir: dir}).Fetch(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.ErrorIs(t, results[0].Err, lerrors.ErrInvalidInput)
	assert.ErrorIs(t, results[1].Err, lerrors.ErrInvalidInput)
	assert.True(t, results[2].OK())
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape.txt"))
}

func TestFetch_NothingListed(t *testing.T) {
	results, err := NewFetcher(stubSource{}, Options{Dir: t.TempDir()}).Fetch(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, results)
}
