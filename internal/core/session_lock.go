package core

// session_lock.go serializes operations per session key.
//
// Every operation is a load-mutate-store cycle against the session store.
// Two requests for the same session running those cycles concurrently would
// lose one update, so each session key gets its own one-slot semaphore.
// Different sessions never contend. Entries are reference counted and
// removed when the last holder or waiter leaves, so idle sessions cost
// nothing.

import (
	"context"
	"sync"
)

type sessionLock struct {
	sem  chan struct{}
	refs int
}

// SessionLocks is a set of per-key mutexes whose acquisition honors
// context cancellation.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

// NewSessionLocks creates an empty lock set.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sessionLock)}
}

// Lock blocks until the key is held or ctx is done. The returned function
// releases the key and must be called exactly once.
func (l *SessionLocks) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &sessionLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		return func() {
			<-lk.sem
			l.release(key, lk)
		}, nil
	case <-ctx.Done():
		l.release(key, lk)
		return nil, ctx.Err()
	}
}

func (l *SessionLocks) release(key string, lk *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *SessionLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
