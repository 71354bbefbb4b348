// Package store persists per-session cleaning state between requests.
//
// A session holds one serialized table and the name of the file it came
// from. Both are written together or not at all. Backends:
//
//   - Memory: process-local map, for development and tests.
//   - Badger: embedded key-value store with native entry TTLs.
//   - Postgres: shared table for multi-instance deployments.
//
// Cached wraps any backend with a ristretto read cache.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a session has no stored state.
var ErrNotFound = errors.New("session not found")

// ErrIncompleteRecord is returned by Put when the table or the filename
// is missing. A session never holds one without the other.
var ErrIncompleteRecord = errors.New("session record requires both table and filename")

// Record is the stored state of one session.
type Record struct {
	Payload   string    `json:"payload"`
	Filename  string    `json:"filename"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the both-or-neither invariant.
func (r Record) Validate() error {
	if r.Payload == "" || r.Filename == "" {
		return ErrIncompleteRecord
	}
	return nil
}

// Store reads and writes session records. Implementations must be safe for
// concurrent use; callers serialize access per session themselves.
type Store interface {
	Get(ctx context.Context, sessionID string) (Record, error)
	Put(ctx context.Context, sessionID string, rec Record) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// Sweeper is implemented by stores that need periodic removal of expired
// sessions. It returns the number of sessions removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Backend names accepted by SESSION_BACKEND.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// validateID rejects empty session identifiers before they reach a backend.
func validateID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}
	return nil
}
