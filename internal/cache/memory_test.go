package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/hotel-radar/internal/cache"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(10)

	_, err := store.Get(ctx, "alpha")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, store.Set(ctx, "alpha", []byte("v1"), time.Minute))
	got, err := store.Get(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	require.NoError(t, store.Delete(ctx, "alpha"))
	_, err = store.Get(ctx, "alpha")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := cache.NewMemoryStore(10, cache.WithClock(clock.Now))

	require.NoError(t, store.Set(ctx, "geocode:paris", []byte("x"), 24*time.Hour))

	clock.Advance(24*time.Hour - time.Second)
	_, err := store.Get(ctx, "geocode:paris")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = store.Get(ctx, "geocode:paris")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemoryStoreCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(1)

	require.NoError(t, store.Set(ctx, "first", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "second", []byte("2"), time.Minute))

	_, err := store.Get(ctx, "first")
	require.ErrorIs(t, err, cache.ErrMiss)
	got, err := store.Get(ctx, "second")
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)
}

func TestMemoryStoreOverwriteKeepsLatest(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := cache.NewMemoryStore(2, cache.WithClock(clock.Now))

	require.NoError(t, store.Set(ctx, "k", []byte("old"), time.Minute))
	clock.Advance(time.Second)
	require.NoError(t, store.Set(ctx, "k", []byte("new"), time.Minute))
	require.NoError(t, store.Set(ctx, "other", []byte("o"), time.Minute))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
	require.Equal(t, 2, store.Len())
}
