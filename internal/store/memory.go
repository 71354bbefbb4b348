package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps sessions in a map. Entries older than ttl are invisible to
// Get and removed by Sweep.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Record
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates an in-memory store. A zero ttl disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		sessions: make(map[string]Record),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *Memory) expired(rec Record) bool {
	return m.ttl > 0 && m.now().Sub(rec.UpdatedAt) > m.ttl
}

func (m *Memory) Get(_ context.Context, sessionID string) (Record, error) {
	m.mu.RLock()
	rec, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok || m.expired(rec) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Put(_ context.Context, sessionID string, rec Record) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.UpdatedAt = m.now()

	m.mu.Lock()
	m.sessions[sessionID] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Sweep removes expired sessions.
func (m *Memory) Sweep(_ context.Context) (int, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, rec := range m.sessions {
		if m.expired(rec) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Memory) Close() error { return nil }
