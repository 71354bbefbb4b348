package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// cacheEntry is what the read cache holds. gen is the key's write
// generation at the time the entry was read from the backend.
type cacheEntry struct {
	rec Record
	gen uint64
}

// keyGen is the last write generation of a key and when it was written.
type keyGen struct {
	gen uint64
	at  time.Time
}

// Cached fronts a Store with a ristretto cache. Writes go straight to the
// backend and stamp the key with a fresh generation from a process-wide
// sequence; a cached entry from an older generation is never served, even
// if ristretto applies a buffered Set after the write. Entries older than
// ttl are treated as misses so the backend's expiry stays authoritative.
//
// Generations of keys not written for longer than ttl are dropped by Sweep.
// An entry stamped before such a key's last write can then only match
// generation zero, and its record is already older than ttl.
type Cached struct {
	inner Store
	cache *ristretto.Cache
	ttl   time.Duration
	now   func() time.Time

	mu   sync.Mutex
	seq  uint64
	gens map[string]keyGen
}

// NewCached wraps inner with a cache bounded to maxCost bytes of payload.
func NewCached(inner Store, maxCost int64, ttl time.Duration) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Cached{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
		gens:  make(map[string]keyGen),
	}, nil
}

func (c *Cached) generation(sessionID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[sessionID].gen
}

func (c *Cached) bump(sessionID string) {
	c.mu.Lock()
	c.seq++
	c.gens[sessionID] = keyGen{gen: c.seq, at: c.now()}
	c.mu.Unlock()
}

// pruneGenerations forgets keys idle for longer than ttl and returns how
// many were dropped.
func (c *Cached) pruneGenerations() int {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.ttl)
	n := 0
	for id, g := range c.gens {
		if g.at.Before(cutoff) {
			delete(c.gens, id)
			n++
		}
	}
	return n
}

func (c *Cached) stale(rec Record) bool {
	return c.ttl > 0 && c.now().Sub(rec.UpdatedAt) > c.ttl
}

func (c *Cached) Get(ctx context.Context, sessionID string) (Record, error) {
	gen := c.generation(sessionID)
	if v, ok := c.cache.Get(sessionID); ok {
		if e, ok := v.(cacheEntry); ok && e.gen == gen && !c.stale(e.rec) {
			return e.rec, nil
		}
	}

	rec, err := c.inner.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	c.cache.Set(sessionID, cacheEntry{rec: rec, gen: gen}, int64(len(rec.Payload)+len(rec.Filename)))
	return rec, nil
}

func (c *Cached) Put(ctx context.Context, sessionID string, rec Record) error {
	c.bump(sessionID)
	c.cache.Del(sessionID)
	return c.inner.Put(ctx, sessionID, rec)
}

func (c *Cached) Delete(ctx context.Context, sessionID string) error {
	c.bump(sessionID)
	c.cache.Del(sessionID)
	return c.inner.Delete(ctx, sessionID)
}

// Sweep forgets idle key generations and forwards to the backend when it
// supports sweeping.
func (c *Cached) Sweep(ctx context.Context) (int, error) {
	c.pruneGenerations()
	if s, ok := c.inner.(Sweeper); ok {
		return s.Sweep(ctx)
	}
	return 0, nil
}

// trackedKeys returns how many keys currently carry a write generation.
func (c *Cached) trackedKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.gens)
}

func (c *Cached) Close() error {
	c.cache.Close()
	return c.inner.Close()
}
