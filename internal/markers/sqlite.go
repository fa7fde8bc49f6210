package markers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Iron-Ham/lance/internal/clock"
)

const schema = `
CREATE TABLE IF NOT EXISTS markers (
	session_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, name)
);
CREATE INDEX IF NOT EXISTS idx_markers_expires_at ON markers(expires_at);
`

// SQLiteStore keeps markers in a SQLite database file so they survive
// restarts of the client. Expiry times are stored as Unix milliseconds.
type SQLiteStore struct {
	db    *sql.DB
	clock clock.Clock
	path  string
}

// OpenSQLite opens or creates the marker database at path. A nil clock
// uses the wall clock.
func OpenSQLite(path string, clk clock.Clock) (*SQLiteStore, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create marker directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open marker database: %w", err)
	}
	// One connection serializes writers; the client is a single process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create marker table: %w", err)
	}
	return &SQLiteStore{db: db, clock: clk, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Mark implements Store. The upsert only overwrites an expired row, so
// the affected-row count tells whether this call set the marker.
func (s *SQLiteStore) Mark(ctx context.Context, sessionID, name string, expiresAt time.Time) (bool, error) {
	now := s.clock.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO markers (session_id, name, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, name) DO UPDATE
			SET expires_at = excluded.expires_at, created_at = excluded.created_at
			WHERE markers.expires_at <= ?`,
		sessionID, name, expiresAt.UnixMilli(), now, now)
	if err != nil {
		return false, fmt.Errorf("failed to set marker %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to set marker %s: %w", name, err)
	}
	return n > 0, nil
}

// Has implements Store.
func (s *SQLiteStore) Has(ctx context.Context, sessionID, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM markers WHERE session_id = ? AND name = ? AND expires_at > ?`,
		sessionID, name, s.clock.Now().UnixMilli()).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to read marker %s: %w", name, err)
	}
	return true, nil
}

// Forget implements Store.
func (s *SQLiteStore) Forget(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM markers WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to forget session markers: %w", err)
	}
	return nil
}

// Purge implements Store.
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM markers WHERE expires_at <= ?`, s.clock.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge markers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge markers: %w", err)
	}
	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
