package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
)

const badgerKeyPrefix = "session/"

// Badger stores sessions in an embedded badger database. Expiry uses
// badger's per-entry TTL; Sweep only reclaims disk space.
type Badger struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
}

// OpenBadger opens a database in dir. An empty dir opens an in-memory
// database, which is what the tests use.
func OpenBadger(dir string, ttl time.Duration) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	b := NewBadger(db, ttl)
	b.inMemory = dir == ""
	return b, nil
}

// NewBadger wraps an open database.
func NewBadger(db *badger.DB, ttl time.Duration) *Badger {
	return &Badger{db: db, ttl: ttl}
}

func badgerKey(sessionID string) []byte {
	return []byte(badgerKeyPrefix + sessionID)
}

func (b *Badger) Get(_ context.Context, sessionID string) (Record, error) {
	var rec Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("badger get %s: %w", sessionID, err)
	}
	return rec, nil
}

func (b *Badger) Put(_ context.Context, sessionID string, rec Record) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UTC()

	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(badgerKey(sessionID), val)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (b *Badger) Delete(_ context.Context, sessionID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(sessionID))
	})
}

// Sweep runs value log garbage collection so space held by expired and
// overwritten sessions is reclaimed. Expired keys are already invisible.
func (b *Badger) Sweep(_ context.Context) (int, error) {
	if b.inMemory {
		return 0, nil
	}
	err := b.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return 0, fmt.Errorf("badger value log gc: %w", err)
	}
	return 0, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
