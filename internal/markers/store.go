// Package markers remembers one-shot facts about a session ("completion
// already notified") across separate runs of the client.
//
// Every marker carries an expiry no later than the session's own, so a
// marker never outlives the data it describes. Expired markers read as
// absent and are removed by Purge.
package markers

import (
	"context"
	"time"
)

// Store persists per-session markers.
type Store interface {
	// Mark records name for sessionID and reports whether this call was
	// the first to do so. An expired marker counts as absent.
	Mark(ctx context.Context, sessionID, name string, expiresAt time.Time) (first bool, err error)

	// Has reports whether an unexpired marker exists.
	Has(ctx context.Context, sessionID, name string) (bool, error)

	// Forget removes every marker of sessionID.
	Forget(ctx context.Context, sessionID string) error

	// Purge removes expired markers and returns how many were removed.
	Purge(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}

type key struct {
	sessionID string
	name      string
}
