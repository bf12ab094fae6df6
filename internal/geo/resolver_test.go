package geo_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/cache"
	"github.com/DeafMist/hotel-radar/internal/geo"
	"github.com/DeafMist/hotel-radar/internal/models"
	"github.com/DeafMist/hotel-radar/internal/retry"
)

type fakeGeocoder struct {
	calls   atomic.Int32
	gate    chan struct{}
	results map[string][]models.AddressInfo
	err     error
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) ([]models.AddressInfo, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[address], nil
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, c models.Coordinate) ([]models.AddressInfo, error) {
	f.calls.Add(1)
	return []models.AddressInfo{{FormattedAddress: "Somewhere", Coordinate: c}}, nil
}

var paris = models.AddressInfo{FormattedAddress: "Paris, France", Coordinate: models.Coordinate{Lat: 48.8566, Lng: 2.3522}}

func newResolver(g geo.Geocoder, store cache.Store) *geo.Resolver {
	exec := retry.New(retry.DefaultConfig(), nil, nil, retry.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return geo.NewResolver(g, cache.New(store, nil), exec, 0, nil)
}

func TestResolveCachesByNormalizedText(t *testing.T) {
	g := &fakeGeocoder{results: map[string][]models.AddressInfo{"Paris": {paris}, "paris": {paris}}}
	store := cache.NewMemoryStore(16)
	r := newResolver(g, store)
	ctx := context.Background()

	got, found, err := r.Resolve(ctx, "Paris")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, paris.Coordinate, got.Coordinate)

	got, found, err = r.Resolve(ctx, "  PARIS ")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, paris.Coordinate, got.Coordinate)
	require.Equal(t, int32(1), g.calls.Load())

	_, err = store.Get(ctx, "geocode:paris")
	require.NoError(t, err)
}

func TestResolveRejectsShortInput(t *testing.T) {
	g := &fakeGeocoder{}
	r := newResolver(g, cache.NewMemoryStore(4))

	_, _, err := r.Resolve(context.Background(), " a ")
	var gerr *apperr.GeocodingError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, apperr.StatusInvalidRequest, gerr.Status)
	require.Zero(t, g.calls.Load())
}

func TestResolveNotFoundIsNotCached(t *testing.T) {
	g := &fakeGeocoder{results: map[string][]models.AddressInfo{}}
	r := newResolver(g, cache.NewMemoryStore(4))

	for i := 0; i < 2; i++ {
		_, found, err := r.Resolve(context.Background(), "atlantis")
		require.NoError(t, err)
		require.False(t, found)
	}
	require.Equal(t, int32(2), g.calls.Load())
}

func TestResolveRetriesRateLimit(t *testing.T) {
	g := &fakeGeocoder{err: &apperr.RateLimitError{Service: apperr.ServiceGeocoding}}
	r := newResolver(g, cache.NewMemoryStore(4))

	_, _, err := r.Resolve(context.Background(), "paris")
	require.True(t, apperr.IsRateLimited(err))
	require.Equal(t, int32(3), g.calls.Load())
}

func TestResolveCollapsesConcurrentLookups(t *testing.T) {
	g := &fakeGeocoder{gate: make(chan struct{}), results: map[string][]models.AddressInfo{"rome": {paris}}}
	r := newResolver(g, cache.NewMemoryStore(4))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, found, err := r.Resolve(context.Background(), "rome")
			require.NoError(t, err)
			require.True(t, found)
		}()
	}

	require.Eventually(t, func() bool { return g.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(g.gate)
	wg.Wait()

	require.Equal(t, int32(1), g.calls.Load())
}

func TestCanceledLookupDoesNotFailOthers(t *testing.T) {
	g := &fakeGeocoder{gate: make(chan struct{}), results: map[string][]models.AddressInfo{"rome": {paris}}}
	store := cache.NewMemoryStore(4)
	r := newResolver(g, store)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, _, err := r.Resolve(ctxA, "rome")
		errA <- err
	}()
	require.Eventually(t, func() bool { return g.calls.Load() == 1 }, time.Second, time.Millisecond)

	foundB := make(chan bool, 1)
	errB := make(chan error, 1)
	go func() {
		_, found, err := r.Resolve(context.Background(), "rome")
		foundB <- found
		errB <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(g.gate)
	require.True(t, <-foundB)
	require.NoError(t, <-errB)
	require.Equal(t, int32(1), g.calls.Load())

	_, err := store.Get(context.Background(), "geocode:rome")
	require.NoError(t, err)
}

func TestReverseUsesCoordinateKey(t *testing.T) {
	g := &fakeGeocoder{}
	store := cache.NewMemoryStore(4)
	r := newResolver(g, store)
	ctx := context.Background()

	c := models.Coordinate{Lat: 48.8566, Lng: 2.3522}
	for i := 0; i < 2; i++ {
		info, found, err := r.Reverse(ctx, c)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "Somewhere", info.FormattedAddress)
	}
	require.Equal(t, int32(1), g.calls.Load())

	_, err := store.Get(ctx, "reverse_geocode:48.8566,2.3522")
	require.NoError(t, err)

	_, _, err = r.Reverse(ctx, models.Coordinate{Lat: 120})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
