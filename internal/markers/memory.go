package markers

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/lance/internal/clock"
)

// MemoryStore keeps markers in memory. It backs the client when durable
// markers are disabled, and tests.
type MemoryStore struct {
	clock clock.Clock

	mu      sync.Mutex
	markers map[key]time.Time
}

// NewMemoryStore returns an empty MemoryStore. A nil clock uses the wall
// clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{clock: clk, markers: make(map[key]time.Time)}
}

// Mark implements Store.
func (m *MemoryStore) Mark(_ context.Context, sessionID, name string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{sessionID, name}
	if exp, ok := m.markers[k]; ok && exp.After(m.clock.Now()) {
		return false, nil
	}
	m.markers[k] = expiresAt
	return true, nil
}

// Has implements Store.
func (m *MemoryStore) Has(_ context.Context, sessionID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.markers[key{sessionID, name}]
	return ok && exp.After(m.clock.Now()), nil
}

// Forget implements Store.
func (m *MemoryStore) Forget(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.markers {
		if k.sessionID == sessionID {
			delete(m.markers, k)
		}
	}
	return nil
}

// Purge implements Store.
func (m *MemoryStore) Purge(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	n := 0
	for k, exp := range m.markers {
		if !exp.After(now) {
			delete(m.markers, k)
			n++
		}
	}
	return n, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
