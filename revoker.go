package auth

import (
	"context"
	"sync"
	"time"
)

// SessionRevoker remembers signed out session ids until every token of the
// session would have expired anyway.
type SessionRevoker interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// MemoryRevoker is a process local SessionRevoker
type MemoryRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	if until.After(m.now()) {
		m.entries[tokenID] = until
	}
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !until.After(m.now()) {
		delete(m.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// Len returns the number of live entries
func (m *MemoryRevoker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	return len(m.entries)
}

func (m *MemoryRevoker) sweep() {
	now := m.now()
	for id, until := range m.entries {
		if !until.After(now) {
			delete(m.entries, id)
		}
	}
}

type noopRevoker struct{}

func (noopRevoker) Revoke(context.Context, string, time.Time) error  { return nil }
func (noopRevoker) IsRevoked(context.Context, string) (bool, error) { return false, nil }
