package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSessionLocks_SerializesSameKey(t *testing.T) {
	locks := NewSessionLocks()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(ctx, "s1")
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max holders of one key = %d, want 1", maxInside)
	}
	if got := locks.Len(); got != 0 {
		t.Errorf("Len after all released = %d, want 0", got)
	}
}

func TestSessionLocks_DifferentKeysDoNotContend(t *testing.T) {
	locks := NewSessionLocks()
	ctx := context.Background()

	unlockA, err := locks.Lock(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := locks.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestSessionLocks_ContextCancellation(t *testing.T) {
	locks := NewSessionLocks()

	unlock, err := locks.Lock(context.Background(), "s")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := locks.Lock(ctx, "s"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock error = %v, want context.DeadlineExceeded", err)
	}
	if got := locks.Len(); got != 1 {
		t.Errorf("Len while held = %d, want 1", got)
	}

	unlock()
	if got := locks.Len(); got != 0 {
		t.Errorf("Len after release = %d, want 0", got)
	}
}
