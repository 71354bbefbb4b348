package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cleaning_sessions (
    session_id  TEXT PRIMARY KEY,
    payload     TEXT NOT NULL,
    filename    TEXT NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cleaning_sessions_updated_at_idx
    ON cleaning_sessions (updated_at);
`

const (
	getSessionSQL = `
SELECT payload, filename, updated_at
FROM cleaning_sessions
WHERE session_id = $1 AND ($2::timestamptz IS NULL OR updated_at > $2)`

	putSessionSQL = `
INSERT INTO cleaning_sessions (session_id, payload, filename, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (session_id) DO UPDATE
SET payload = EXCLUDED.payload,
    filename = EXCLUDED.filename,
    updated_at = EXCLUDED.updated_at`

	deleteSessionSQL = `DELETE FROM cleaning_sessions WHERE session_id = $1`

	sweepSessionsSQL = `DELETE FROM cleaning_sessions WHERE updated_at < $1`
)

// Postgres stores sessions in the cleaning_sessions table. Rows older than
// ttl are ignored by Get and deleted by Sweep.
type Postgres struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPostgres wraps a connection pool. Call EnsureSchema before first use.
func NewPostgres(pool *pgxpool.Pool, ttl time.Duration) *Postgres {
	return &Postgres{pool: pool, ttl: ttl}
}

// EnsureSchema creates the sessions table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create cleaning_sessions: %w", err)
	}
	return nil
}

// cutoff returns the oldest live updated_at, or nil when expiry is off.
func (p *Postgres) cutoff() *time.Time {
	if p.ttl <= 0 {
		return nil
	}
	c := time.Now().Add(-p.ttl)
	return &c
}

func (p *Postgres) Get(ctx context.Context, sessionID string) (Record, error) {
	var rec Record
	err := p.pool.QueryRow(ctx, getSessionSQL, sessionID, p.cutoff()).
		Scan(&rec.Payload, &rec.Filename, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return rec, nil
}

func (p *Postgres) Put(ctx context.Context, sessionID string, rec Record) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, putSessionSQL, sessionID, rec.Payload, rec.Filename); err != nil {
		return fmt.Errorf("put session %s: %w", sessionID, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, sessionID string) error {
	if _, err := p.pool.Exec(ctx, deleteSessionSQL, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// Sweep deletes expired sessions.
func (p *Postgres) Sweep(ctx context.Context) (int, error) {
	cutoff := p.cutoff()
	if cutoff == nil {
		return 0, nil
	}
	tag, err := p.pool.Exec(ctx, sweepSessionsSQL, *cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close is a no-op; the pool is owned by the caller.
func (p *Postgres) Close() error { return nil }
