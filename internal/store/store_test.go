package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behavior every backend must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing session", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "s1", Record{Payload: `{"v":1}`, Filename: "data.csv"}))

		rec, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, `{"v":1}`, rec.Payload)
		assert.Equal(t, "data.csv", rec.Filename)
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("put replaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "s1", Record{Payload: "one", Filename: "a.csv"}))
		_, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, "s1", Record{Payload: "two", Filename: "b.xlsx"}))

		rec, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "two", rec.Payload)
		assert.Equal(t, "b.xlsx", rec.Filename)
	})

	t.Run("incomplete record rejected", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Put(ctx, "s1", Record{Payload: "x"}), ErrIncompleteRecord)
		assert.ErrorIs(t, s.Put(ctx, "s1", Record{Filename: "a.csv"}), ErrIncompleteRecord)

		_, err := s.Get(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "s1", Record{Payload: "x", Filename: "a.csv"}))
		require.NoError(t, s.Delete(ctx, "s1"))

		_, err := s.Get(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting an absent session is not an error.
		assert.NoError(t, s.Delete(ctx, "s1"))
	})

	t.Run("sessions are independent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "a", Record{Payload: "pa", Filename: "a.csv"}))
		require.NoError(t, s.Put(ctx, "b", Record{Payload: "pb", Filename: "b.csv"}))
		require.NoError(t, s.Delete(ctx, "a"))

		rec, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "pb", rec.Payload)
	})

	t.Run("concurrent writers on distinct sessions", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("s%d", i)
				assert.NoError(t, s.Put(ctx, id, Record{Payload: id, Filename: "f.csv"}))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 20; i++ {
			rec, err := s.Get(ctx, fmt.Sprintf("s%d", i))
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("s%d", i), rec.Payload)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, func(t *testing.T) Store { return NewMemory(time.Hour) })
}

func TestBadgerStore(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		b, err := OpenBadger("", time.Hour)
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestCachedStore(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		c, err := NewCached(NewMemory(time.Hour), 1<<20, time.Hour)
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		return c
	})
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runContract(t, func(t *testing.T) Store {
		p := NewPostgres(pool, time.Hour)
		require.NoError(t, p.EnsureSchema(ctx))
		_, err := pool.Exec(ctx, `TRUNCATE cleaning_sessions`)
		require.NoError(t, err)
		return p
	})
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, "old", Record{Payload: "x", Filename: "a.csv"}))
	now = now.Add(30 * time.Second)
	require.NoError(t, m.Put(ctx, "new", Record{Payload: "y", Filename: "b.csv"}))
	now = now.Add(45 * time.Second)

	_, err := m.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound, "expired session must be invisible")
	_, err = m.Get(ctx, "new")
	assert.NoError(t, err)

	removed, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryStoreNoTTL(t *testing.T) {
	m := NewMemory(0)
	require.NoError(t, m.Put(context.Background(), "s", Record{Payload: "x", Filename: "a.csv"}))

	removed, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

// countingStore counts backend reads so cache hits can be observed.
type countingStore struct {
	Store
	mu   sync.Mutex
	gets int
}

func (c *countingStore) Get(ctx context.Context, id string) (Record, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(ctx, id)
}

func TestCachedStoreNeverServesStaleWrite(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemory(time.Hour)}
	c, err := NewCached(inner, 1<<20, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 50; i++ {
		payload := fmt.Sprintf("v%d", i)
		require.NoError(t, c.Put(ctx, "s", Record{Payload: payload, Filename: "a.csv"}))
		rec, err := c.Get(ctx, "s")
		require.NoError(t, err)
		require.Equal(t, payload, rec.Payload)
	}
}

func TestCachedStoreDeleteHidesEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewCached(NewMemory(time.Hour), 1<<20, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "s", Record{Payload: "x", Filename: "a.csv"}))
	_, err = c.Get(ctx, "s")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond) // let ristretto apply the buffered Set

	require.NoError(t, c.Delete(ctx, "s"))
	_, err = c.Get(ctx, "s")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCachedStoreForwardsSweep(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }
	c, err := NewCached(m, 1<<20, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "s", Record{Payload: "x", Filename: "a.csv"}))
	now = now.Add(2 * time.Minute)

	removed, err := c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestCachedStoreSweepForgetsIdleKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }
	c, err := NewCached(m, 1<<20, time.Minute)
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	defer c.Close()

	require.NoError(t, c.Put(ctx, "gone", Record{Payload: "x", Filename: "a.csv"}))
	require.NoError(t, c.Put(ctx, "cleared", Record{Payload: "y", Filename: "b.csv"}))
	require.NoError(t, c.Delete(ctx, "cleared"))
	now = now.Add(45 * time.Second)
	require.NoError(t, c.Put(ctx, "live", Record{Payload: "z", Filename: "c.csv"}))
	assert.Equal(t, 3, c.trackedKeys())

	now = now.Add(30 * time.Second)
	_, err = c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.trackedKeys(), "only the recently written key keeps a generation")

	rec, err := c.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "z", rec.Payload)
	_, err = c.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}
