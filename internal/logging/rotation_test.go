package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "nested", "dir", "test.log")

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
		if rw.FilePath() != logPath {
			t.Errorf("FilePath() = %q, want %q", rw.FilePath(), logPath)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "test.log")
		if err := os.WriteFile(logPath, []byte("initial\n"), 0o644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if rw.CurrentSize() != int64(len("initial\n")) {
			t.Errorf("CurrentSize() = %d, want %d", rw.CurrentSize(), len("initial\n"))
		}
		_, _ = rw.Write([]byte("more\n"))
		_ = rw.Close()

		data, _ := os.ReadFile(logPath)
		if string(data) != "initial\nmore\n" {
			t.Errorf("file content = %q", data)
		}
	})
}

// fill writes lines until the writer has rotated the requested number of times.
func fill(t *testing.T, rw *RotatingWriter, rotations int) {
	t.Helper()
	line := []byte(strings.Repeat("x", 1023) + "\n")
	// 1MB max size; 1025 lines of 1KB cross the boundary once.
	for i := 0; i < rotations*1025; i++ {
		if _, err := rw.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
}

func TestRotation(t *testing.T) {
	t.Run("rotates without compression", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "test.log")

		rw, err := NewRotatingWriter(logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		fill(t, rw, 1)
		if err := rw.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		if _, err := os.Stat(logPath + ".1"); err != nil {
			t.Errorf("expected backup %s.1: %v", logPath, err)
		}
	})

	t.Run("keeps at most MaxBackups", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "test.log")

		rw, err := NewRotatingWriter(logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: 1})
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		fill(t, rw, 3)
		_ = rw.Close()

		if _, err := os.Stat(logPath + ".2"); !os.IsNotExist(err) {
			t.Errorf("backup .2 should not exist, stat err = %v", err)
		}
	})

	t.Run("compresses backups", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "test.log")

		rw, err := NewRotatingWriter(logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: 2, Compress: true})
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		fill(t, rw, 1)
		// Close waits for the background compression.
		if err := rw.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		if _, err := os.Stat(logPath + ".1"); !os.IsNotExist(err) {
			t.Errorf("uncompressed backup should be removed, stat err = %v", err)
		}

		f, err := os.Open(logPath + ".1.gz")
		if err != nil {
			t.Fatalf("compressed backup missing: %v", err)
		}
		defer func() { _ = f.Close() }()
		zr, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("gzip.NewReader failed: %v", err)
		}
		data, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("reading gzip failed: %v", err)
		}
		if !strings.HasPrefix(string(data), "xxx") {
			t.Error("decompressed backup has unexpected content")
		}
	})
}

func TestRotatingWriterClosed(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "test.log"), DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	_ = rw.Close()

	if _, err := rw.Write([]byte("late")); err == nil {
		t.Error("expected error writing to closed writer")
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync on closed writer = %v, want nil", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestRotatingWriterConcurrentWrites(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "test.log"), DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = rw.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()

	if got, want := rw.CurrentSize(), int64(10*100*len("line\n")); got != want {
		t.Errorf("CurrentSize() = %d, want %d", got, want)
	}
}
