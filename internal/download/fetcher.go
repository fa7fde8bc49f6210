// Package download copies a session's artifacts to local disk.
//
// Files are fetched in parallel under a concurrency limit and written
// atomically: a partially downloaded artifact never appears under its
// final name.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/lance/internal/api"
	lerrors "github.com/Iron-Ham/lance/internal/errors"
	"github.com/Iron-Ham/lance/internal/logging"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 4

// Source lists and streams artifacts. *api.Client satisfies it.
type Source interface {
	Artifacts(ctx context.Context, sessionID string) ([]api.Artifact, error)
	Download(ctx context.Context, sessionID, name string) (io.ReadCloser, int64, error)
}

// Options configures a Fetcher.
type Options struct {
	// Dir receives the files. Created if missing. Defaults to ".".
	Dir string
	// Concurrency bounds parallel downloads.
	Concurrency int
	// Logger defaults to NopLogger.
	Logger *logging.Logger
}

// Result is the outcome for one artifact.
type Result struct {
	Name  string
	Path  string
	Bytes int64
	Err   error
}

// OK reports whether the artifact was written.
func (r Result) OK() bool { return r.Err == nil }

// Size is the written size in human units, e.g. "1.2 MB".
func (r Result) Size() string {
	return humanize.Bytes(uint64(max(r.Bytes, 0)))
}

// Failed counts results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Fetcher downloads artifacts of a session.
type Fetcher struct {
	src         Source
	dir         string
	concurrency int
	logger      *logging.Logger
}

// NewFetcher creates a Fetcher reading from src.
func NewFetcher(src Source, opts Options) *Fetcher {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	conc := opts.Concurrency
	if conc <= 0 {
		conc = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Fetcher{src: src, dir: dir, concurrency: conc, logger: logger.WithComponent("download")}
}

// Dir returns the destination directory.
func (f *Fetcher) Dir() string { return f.dir }

// Fetch downloads the named artifacts, or every listed artifact when names
// is empty. A failure on one file does not stop the others; per-file
// errors are reported in the results, which keep the listing order. The
// returned error is non-nil only when the listing fails, a requested name
// is unknown, or ctx is cancelled.
func (f *Fetcher) Fetch(ctx context.Context, sessionID string, names ...string) ([]Result, error) {
	listed, err := f.src.Artifacts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	selected, err := selectArtifacts(listed, names)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	log := f.logger.WithSession(sessionID)
	results := make([]Result, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, a := range selected {
		g.Go(func() error {
			results[i] = f.fetchOne(gctx, sessionID, a)
			if r := results[i]; r.OK() {
				log.Info("artifact downloaded", "artifact", r.Name, "bytes", r.Bytes)
			} else {
				log.Warn("artifact download failed", "artifact", r.Name, "error", r.Err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, sessionID string, a api.Artifact) Result {
	res := Result{Name: a.Filename}

	local, err := localName(a.Filename)
	if err != nil {
		res.Err = err
		return res
	}
	res.Path = filepath.Join(f.dir, local)

	body, size, err := f.src.Download(ctx, sessionID, a.Filename)
	if err != nil {
		res.Err = err
		return res
	}
	defer func() { _ = body.Close() }()

	n, err := atomicWriteStream(res.Path, body, size, 0o644)
	res.Bytes = n
	res.Err = err
	return res
}

// selectArtifacts returns the listed artifacts matching names, in listing
// order. An empty names list selects everything.
func selectArtifacts(listed []api.Artifact, names []string) ([]api.Artifact, error) {
	if len(names) == 0 {
		return listed, nil
	}
	var out []api.Artifact
	for _, a := range listed {
		if slices.Contains(names, a.Filename) {
			out = append(out, a)
		}
	}
	for _, name := range names {
		if !slices.ContainsFunc(out, func(a api.Artifact) bool { return a.Filename == name }) {
			return nil, lerrors.NewNotFoundError("artifact", name)
		}
	}
	return out, nil
}

// localName rejects artifact names that would escape the destination
// directory.
func localName(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." || strings.ContainsAny(name, `/\`) {
		return "", lerrors.NewValidationError("artifact name is not a plain file name").
			WithField("artifact").WithValue(name)
	}
	return base, nil
}

// atomicWriteStream copies r into a temp file next to path and renames it
// into place once fully written and synced. When size is not negative a
// body of any other length is discarded and path is left untouched.
func atomicWriteStream(path string, r io.Reader, size int64, perm os.FileMode) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmpFile, r)
	if err != nil {
		_ = tmpFile.Close()
		return n, lerrors.NewNetworkError("download artifact", err)
	}
	if size >= 0 && n != size {
		_ = tmpFile.Close()
		return n, lerrors.NewNetworkError("download artifact",
			fmt.Errorf("short body for %s: got %d of %d bytes", filepath.Base(path), n, size))
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return n, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return n, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return n, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return n, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return n, nil
}
