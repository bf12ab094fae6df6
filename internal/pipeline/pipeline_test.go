package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/cache"
	"github.com/DeafMist/hotel-radar/internal/matching"
	"github.com/DeafMist/hotel-radar/internal/models"
	"github.com/DeafMist/hotel-radar/internal/pipeline"
)

type fakeGeocoder struct {
	info  models.AddressInfo
	found bool
	err   error
}

func (f fakeGeocoder) Resolve(context.Context, string) (models.AddressInfo, bool, error) {
	return f.info, f.found, f.err
}

type fakeDiscoverer struct {
	records []models.DiscoveryRecord
	err     error
}

func (f fakeDiscoverer) Search(context.Context, models.Coordinate, int) ([]models.DiscoveryRecord, error) {
	return f.records, f.err
}

type fakePricer struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
	offers []models.PricingRecord
}

func (f *fakePricer) Search(context.Context, models.Coordinate, string, string, int) ([]models.PricingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn[f.calls] {
		return nil, &apperr.ProviderError{Service: apperr.ServicePricing, Status: 503}
	}
	return f.offers, nil
}

func (f *fakePricer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// gatedPricer blocks every call until gate is closed or ctx ends.
type gatedPricer struct {
	calls  atomic.Int32
	gate   chan struct{}
	offers []models.PricingRecord
}

func (g *gatedPricer) Search(ctx context.Context, _ models.Coordinate, _, _ string, _ int) ([]models.PricingRecord, error) {
	g.calls.Add(1)
	select {
	case <-g.gate:
		return g.offers, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordingPublisher struct {
	events []models.SearchEvent
	err    error
}

func (p *recordingPublisher) PublishSearch(_ context.Context, e models.SearchEvent) error {
	p.events = append(p.events, e)
	return p.err
}

type sleeps struct {
	mu  sync.Mutex
	got []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, d)
	return nil
}

var query = models.SearchQuery{
	Coordinate: models.Coordinate{Lat: 40.7580, Lng: -73.9855},
	CheckIn:    "2025-06-01",
	CheckOut:   "2025-06-03",
	Guests:     2,
}

// fixture returns n discovery records and one exactly-named offer for each.
func fixture(n int) ([]models.DiscoveryRecord, []models.PricingRecord) {
	records := make([]models.DiscoveryRecord, 0, n)
	offers := make([]models.PricingRecord, 0, n)
	for i := 0; i < n; i++ {
		c := models.Coordinate{Lat: 40.75 + float64(i)*0.001, Lng: -73.98}
		name := fmt.Sprintf("Hotel %02d", i)
		records = append(records, models.DiscoveryRecord{ID: fmt.Sprintf("p%02d", i), Name: name, Address: "Street " + name, Rating: 4, Coordinate: c})
		offers = append(offers, models.PricingRecord{
			ID:         fmt.Sprintf("bk%02d", i),
			Name:       name,
			Coordinate: c,
			Rating:     4,
			Price:      models.SomePrice(models.Price{Amount: decimal.NewFromInt(int64(100 + i)), Currency: "USD", Period: models.PeriodTotal}),
		})
	}
	return records, offers
}

func newPipeline(g pipeline.Geocoder, d pipeline.Discoverer, p pipeline.Pricer, store cache.Store, opts ...pipeline.Option) *pipeline.Pipeline {
	cfg := pipeline.DefaultConfig()
	return pipeline.New(g, d, p, matching.New(matching.DefaultConfig()), cache.New(store, nil), cfg, nil, opts...)
}

func TestPartialPricingFailure(t *testing.T) {
	records, offers := fixture(25)
	pricer := &fakePricer{failOn: map[int]bool{2: true}, offers: offers}
	s := &sleeps{}
	pl := newPipeline(fakeGeocoder{}, fakeDiscoverer{records: records}, pricer, cache.NewMemoryStore(16), pipeline.WithSleeper(s.sleep))

	res, err := pl.Search(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, 3, pricer.Calls())
	require.Equal(t, []time.Duration{time.Second, time.Second}, s.got)

	require.Equal(t, models.Metadata{Total: 25, Available: 15, Unavailable: 10, WithPricing: 15}, res.Metadata)

	byID := map[string]models.MatchedHotel{}
	for _, h := range res.Hotels {
		byID[h.ID] = h
	}
	for i := 0; i < 25; i++ {
		h := byID[fmt.Sprintf("p%02d", i)]
		if i >= 10 && i < 20 {
			require.False(t, h.Available, h.ID)
			require.False(t, h.Price.Valid, h.ID)
			require.Nil(t, h.MatchScore, h.ID)
			require.Equal(t, models.ErrPricingUnavailable, h.Error, h.ID)
			continue
		}
		require.True(t, h.Available, h.ID)
		require.True(t, h.Price.Valid, h.ID)
		require.Equal(t, fmt.Sprintf("bk%02d", i), h.PricingID)
		require.NotNil(t, h.MatchScore)
		require.Empty(t, h.Error)
	}

	require.Equal(t, "p00", res.Hotels[0].ID)
	require.False(t, res.Hotels[len(res.Hotels)-1].Available)
	require.Equal(t, pipeline.CacheMiss, res.Cache)
	require.NotEmpty(t, res.SearchID)
}

func TestPriceHotelsServesFromCache(t *testing.T) {
	records, offers := fixture(3)
	pricer := &fakePricer{offers: offers}
	pl := newPipeline(fakeGeocoder{}, fakeDiscoverer{}, pricer, cache.NewMemoryStore(16))
	ctx := context.Background()

	first, err := pl.PriceHotels(ctx, query, records)
	require.NoError(t, err)
	require.Equal(t, pipeline.CacheMiss, first.Cache)

	reversed := []models.DiscoveryRecord{records[2], records[1], records[0]}
	second, err := pl.PriceHotels(ctx, query, reversed)
	require.NoError(t, err)
	require.Equal(t, pipeline.CacheHit, second.Cache)
	require.Equal(t, 1, pricer.Calls())
	require.Equal(t, first.Metadata, second.Metadata)
	require.Len(t, second.Hotels, 3)
	require.True(t, second.Hotels[0].Price.Price.Amount.Equal(decimal.NewFromInt(100)))
}

func TestPartialResultIsCached(t *testing.T) {
	records, offers := fixture(3)
	pricer := &fakePricer{failOn: map[int]bool{1: true}, offers: offers}
	pl := newPipeline(fakeGeocoder{}, fakeDiscoverer{}, pricer, cache.NewMemoryStore(16))

	_, err := pl.PriceHotels(context.Background(), query, records)
	require.NoError(t, err)
	res, err := pl.PriceHotels(context.Background(), query, records)
	require.NoError(t, err)
	require.Equal(t, pipeline.CacheHit, res.Cache)
	require.Equal(t, 0, res.Metadata.Available)
	require.Equal(t, 1, pricer.Calls())
}

func TestSearchDedupsDiscoveryRecords(t *testing.T) {
	records, offers := fixture(2)
	dup := records[0]
	dup.ID = "dup"
	records = append(records, dup)

	pl := newPipeline(fakeGeocoder{}, fakeDiscoverer{records: records}, &fakePricer{offers: offers}, cache.NewMemoryStore(16))
	res, err := pl.Search(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, 2, res.Metadata.Total)
	for _, h := range res.Hotels {
		require.NotEqual(t, "dup", h.ID)
	}
}

func TestSearchDiscoveryFailureIsFatal(t *testing.T) {
	boom := &apperr.ProviderError{Service: apperr.ServiceDiscovery, Status: 500}
	pricer := &fakePricer{}
	pl := newPipeline(fakeGeocoder{}, fakeDiscoverer{err: boom}, pricer, cache.NewMemoryStore(16))

	_, err := pl.Search(context.Background(), query)
	require.ErrorIs(t, err, boom)
	require.Zero(t, pricer.Calls())
}

func TestSearchLocation(t *testing.T) {
	records, offers := fixture(1)
	times := models.AddressInfo{FormattedAddress: "Times Square, New York", Coordinate: query.Coordinate}
	pub := &recordingPublisher{err: errors.New("broker down")}
	pl := newPipeline(fakeGeocoder{info: times, found: true}, fakeDiscoverer{records: records}, &fakePricer{offers: offers}, cache.NewMemoryStore(16), pipeline.WithPublisher(pub))

	res, err := pl.SearchLocation(context.Background(), "times square", query.CheckIn, query.CheckOut, query.Guests)
	require.NoError(t, err)
	require.Equal(t, "Times Square, New York", res.Location.FormattedAddress)
	require.Equal(t, 1, res.Metadata.Available)

	require.Len(t, pub.events, 1)
	require.Equal(t, res.SearchID, pub.events[0].SearchID)
	require.Equal(t, "times square", pub.events[0].Location)
	require.Equal(t, query, pub.events[0].Query)
}

func TestSearchLocationNotFound(t *testing.T) {
	pl := newPipeline(fakeGeocoder{found: false}, fakeDiscoverer{}, &fakePricer{}, cache.NewMemoryStore(16))

	_, err := pl.SearchLocation(context.Background(), "atlantis", query.CheckIn, query.CheckOut, query.Guests)
	var gerr *apperr.GeocodingError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, apperr.StatusZeroResults, gerr.Status)
}

func TestPriceHotelsCollapsesConcurrentCalls(t *testing.T) {
	records, offers := fixture(3)
	pricer := &gatedPricer{gate: make(chan struct{}), offers: offers}
	pl := newPipeline(fakeGeocoder{}, fakeDiscoverer{}, pricer, cache.NewMemoryStore(16))

	results := make(chan *pipeline.Result, 5)
	errs := make(chan error, 5)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := pl.PriceHotels(context.Background(), query, records)
			errs <- err
			results <- res
		}()
	}

	require.Eventually(t, func() bool { return pricer.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(pricer.gate)
	wg.Wait()
	close(errs)
	close(results)

	for err := range errs {
		require.NoError(t, err)
	}
	for res := range results {
		require.Equal(t, 3, res.Metadata.Available)
	}
	require.Equal(t, int32(1), pricer.calls.Load())
}

func TestCanceledCallerDoesNotFailSharedSearch(t *testing.T) {
	records, offers := fixture(3)
	store := cache.NewMemoryStore(16)
	pricer := &gatedPricer{gate: make(chan struct{}), offers: offers}
	pl := newPipeline(fakeGeocoder{}, fakeDiscoverer{}, pricer, store)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := pl.PriceHotels(ctxA, query, records)
		errA <- err
	}()
	require.Eventually(t, func() bool { return pricer.calls.Load() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		res *pipeline.Result
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := pl.PriceHotels(context.Background(), query, records)
		doneB <- outcome{res: res, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller still waiting")
	}

	close(pricer.gate)
	b := <-doneB
	require.NoError(t, b.err)
	require.Equal(t, pipeline.CacheMiss, b.res.Cache)
	require.Equal(t, 3, b.res.Metadata.Available)
	require.Equal(t, int32(1), pricer.calls.Load())

	_, err := store.Get(context.Background(), pipeline.CacheKey(query, records))
	require.NoError(t, err)
}

func TestTimedOutSearchIsNotCached(t *testing.T) {
	records, offers := fixture(15)
	store := cache.NewMemoryStore(16)
	wait := func(ctx context.Context, _ time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}
	cfg := pipeline.DefaultConfig()
	cfg.ComputeTimeout = 20 * time.Millisecond
	pl := pipeline.New(fakeGeocoder{}, fakeDiscoverer{}, &fakePricer{offers: offers}, matching.New(matching.DefaultConfig()),
		cache.New(store, nil), cfg, nil, pipeline.WithSleeper(wait))

	_, err := pl.PriceHotels(context.Background(), query, records)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = store.Get(context.Background(), pipeline.CacheKey(query, records))
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestRank(t *testing.T) {
	price := func(v int64) models.PriceInfo {
		return models.SomePrice(models.Price{Amount: decimal.NewFromInt(v), Currency: "USD", Period: models.PeriodTotal})
	}
	hotel := func(id string, available bool, p models.PriceInfo, rating float64) models.MatchedHotel {
		return models.MatchedHotel{DiscoveryRecord: models.DiscoveryRecord{ID: id, Rating: rating}, Available: available, Price: p}
	}

	hotels := []models.MatchedHotel{
		hotel("unavailable-high", false, models.PriceInfo{}, 5),
		hotel("unpriced", true, models.PriceInfo{}, 4.9),
		hotel("expensive", true, price(300), 3),
		hotel("cheap", true, price(100), 2),
		hotel("cheap-better", true, price(100), 4),
		hotel("unavailable-low", false, models.PriceInfo{}, 1),
	}
	pipeline.Rank(hotels)

	ids := make([]string, 0, len(hotels))
	for _, h := range hotels {
		ids = append(ids, h.ID)
	}
	require.Equal(t, []string{"cheap-better", "cheap", "expensive", "unpriced", "unavailable-high", "unavailable-low"}, ids)
}

func TestCacheKeySortsIDs(t *testing.T) {
	a := []models.DiscoveryRecord{{ID: "b"}, {ID: "a"}, {ID: "c"}}
	require.Equal(t, "hotel-pricing:2025-06-01:2025-06-03:2:a,b,c", pipeline.CacheKey(query, a))
}
