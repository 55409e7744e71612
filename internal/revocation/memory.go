// Package revocation provides server-side denylists for session IDs.
package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/hongminglow/dunes-blog/internal/auth"
)

var _ auth.RevocationList = (*Memory)(nil)

// Memory is an in-process denylist. Entries vanish on restart, so it only
// suits single-instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemory returns an empty in-process denylist.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke denylists sessionID for ttl.
func (m *Memory) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	m.entries[sessionID] = now.Add(ttl)
	return nil
}

// IsRevoked reports whether sessionID is still denylisted.
func (m *Memory) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.entries[sessionID]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.entries, sessionID)
		return false, nil
	}
	return true, nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())
	return len(m.entries)
}

func (m *Memory) sweep(now time.Time) {
	for id, until := range m.entries {
		if !now.Before(until) {
			delete(m.entries, id)
		}
	}
}
