// Package pipeline merges discovery and pricing results into one ranked, cached hotel list.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/cache"
	"github.com/DeafMist/hotel-radar/internal/geo"
	"github.com/DeafMist/hotel-radar/internal/logger"
	"github.com/DeafMist/hotel-radar/internal/matching"
	"github.com/DeafMist/hotel-radar/internal/models"
	"github.com/DeafMist/hotel-radar/internal/processing"
)

// Geocoder resolves free-text locations.
type Geocoder interface {
	Resolve(ctx context.Context, text string) (models.AddressInfo, bool, error)
}

// Discoverer lists hotel candidates around a coordinate.
type Discoverer interface {
	Search(ctx context.Context, c models.Coordinate, radiusMeters int) ([]models.DiscoveryRecord, error)
}

// Pricer lists priced offers around a coordinate.
type Pricer interface {
	Search(ctx context.Context, c models.Coordinate, checkIn, checkOut string, guests int) ([]models.PricingRecord, error)
}

// Publisher receives an event for every freshly computed search.
type Publisher interface {
	PublishSearch(ctx context.Context, event models.SearchEvent) error
}

// Config tunes batching and caching. ComputeTimeout bounds one shared pricing
// run, which outlives any single caller.
type Config struct {
	BatchSize      int
	BatchDelay     time.Duration
	RadiusMeters   int
	ResultTTL      time.Duration
	PublishTimeout time.Duration
	ComputeTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:      10,
		BatchDelay:     time.Second,
		RadiusMeters:   50_000,
		ResultTTL:      30 * time.Minute,
		PublishTimeout: 2 * time.Second,
		ComputeTimeout: 90 * time.Second,
	}
}

// Cache outcomes reported in Result.Cache.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Result is a search result plus request-level details.
type Result struct {
	models.SearchResult
	SearchID string              `json:"searchId,omitempty"`
	Cache    string              `json:"cache"`
	Location *models.AddressInfo `json:"location,omitempty"`
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	geocoder  Geocoder
	discovery Discoverer
	pricing   Pricer
	matcher   *matching.Engine
	cache     *cache.Cache
	publisher Publisher
	cfg       Config
	log       *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	group     singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPublisher emits a SearchEvent after each computed search.
func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) {
		pl.publisher = p
	}
}

// WithSleeper replaces the wait between pricing batches.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(pl *Pipeline) {
		pl.sleep = sleep
	}
}

func New(g Geocoder, d Discoverer, p Pricer, m *matching.Engine, c *cache.Cache, cfg Config, log *slog.Logger, opts ...Option) *Pipeline {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = def.RadiusMeters
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = def.ResultTTL
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = def.ComputeTimeout
	}
	if log == nil {
		log = logger.Discard()
	}

	pl := &Pipeline{
		geocoder:  g,
		discovery: d,
		pricing:   p,
		matcher:   m,
		cache:     c,
		cfg:       cfg,
		log:       log,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// SearchLocation geocodes text and searches around the result.
// An unknown location fails the whole request.
func (p *Pipeline) SearchLocation(ctx context.Context, text, checkIn, checkOut string, guests int) (*Result, error) {
	p.step(ctx, stepGeocoding, slog.String("location", text))

	info, found, err := p.geocoder.Resolve(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("geocode location: %w", err)
	}
	if !found {
		return nil, &apperr.GeocodingError{Query: text, Status: apperr.StatusZeroResults}
	}

	q := models.SearchQuery{Coordinate: info.Coordinate, CheckIn: checkIn, CheckOut: checkOut, Guests: guests}
	res, err := p.search(ctx, q, text)
	if err != nil {
		return nil, err
	}
	res.Location = &info
	return res, nil
}

// Search discovers hotels around q.Coordinate and prices them.
// A discovery failure fails the whole request.
func (p *Pipeline) Search(ctx context.Context, q models.SearchQuery) (*Result, error) {
	return p.search(ctx, q, "")
}

func (p *Pipeline) search(ctx context.Context, q models.SearchQuery, location string) (*Result, error) {
	p.step(ctx, stepDiscovering)

	records, err := p.discovery.Search(ctx, q.Coordinate, p.cfg.RadiusMeters)
	if err != nil {
		return nil, fmt.Errorf("discover hotels: %w", err)
	}
	return p.priceHotels(ctx, q, processing.DedupRecords(records), location)
}

// PriceHotels matches records against pricing offers, serving from cache when
// the same stay and hotel set was priced recently. Pricing failures never fail
// the call; affected hotels come back unavailable.
func (p *Pipeline) PriceHotels(ctx context.Context, q models.SearchQuery, records []models.DiscoveryRecord) (*Result, error) {
	return p.priceHotels(ctx, q, processing.DedupRecords(records), "")
}

func (p *Pipeline) priceHotels(ctx context.Context, q models.SearchQuery, records []models.DiscoveryRecord, location string) (*Result, error) {
	key := CacheKey(q, records)

	var cached models.SearchResult
	if p.cache.GetJSON(ctx, key, &cached) {
		p.log.Debug("pricing served from cache", slog.String("key", key))
		return &Result{SearchResult: cached, Cache: CacheHit}, nil
	}

	// The shared run ignores caller cancellation. Each caller stops waiting on its own ctx.
	ch := p.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ComputeTimeout)
		defer cancel()

		var hit models.SearchResult
		if p.cache.GetJSON(fctx, key, &hit) {
			return Result{SearchResult: hit, Cache: CacheHit}, nil
		}
		return p.compute(fctx, key, q, records, location)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := r.Val.(Result)
		return &res, nil
	}
}

func (p *Pipeline) compute(ctx context.Context, key string, q models.SearchQuery, records []models.DiscoveryRecord, location string) (Result, error) {
	outcomes, err := p.priceBatches(ctx, q, records)
	if err != nil {
		return Result{}, err
	}

	hotels := make([]models.MatchedHotel, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
		}
		hotels = append(hotels, o.hotel)
	}
	p.step(ctx, stepMerging, slog.Int("hotels", len(hotels)), slog.Int("pricing_failures", failed))

	p.step(ctx, stepRanking)
	Rank(hotels)
	result := models.SearchResult{Hotels: hotels, Metadata: Summarize(hotels)}

	p.step(ctx, stepCaching, slog.String("key", key))
	p.cache.SetJSON(ctx, key, result, p.cfg.ResultTTL)

	searchID := uuid.NewString()
	p.publish(ctx, models.SearchEvent{
		SearchID:  searchID,
		Location:  location,
		Query:     q,
		Result:    result,
		Timestamp: time.Now().UTC(),
	})

	p.step(ctx, stepDone,
		slog.String("search_id", searchID),
		slog.Int("total", result.Metadata.Total),
		slog.Int("available", result.Metadata.Available),
	)
	return Result{SearchResult: result, SearchID: searchID, Cache: CacheMiss}, nil
}

// outcome is the per-record result of pricing. err is set when the record's batch failed.
type outcome struct {
	hotel models.MatchedHotel
	err   error
}

func (p *Pipeline) priceBatches(ctx context.Context, q models.SearchQuery, records []models.DiscoveryRecord) ([]outcome, error) {
	outcomes := make([]outcome, 0, len(records))

	for start, batchNo := 0, 1; start < len(records); start, batchNo = start+p.cfg.BatchSize, batchNo+1 {
		if start > 0 && p.cfg.BatchDelay > 0 {
			if err := p.sleep(ctx, p.cfg.BatchDelay); err != nil {
				return nil, fmt.Errorf("wait between pricing batches: %w", err)
			}
		}

		end := min(start+p.cfg.BatchSize, len(records))
		batch := records[start:end]
		p.step(ctx, stepBatching, slog.Int("batch", batchNo), slog.Int("size", len(batch)))

		points := make([]models.Coordinate, 0, len(batch))
		for _, r := range batch {
			points = append(points, r.Coordinate)
		}

		offers, err := p.pricing.Search(ctx, geo.Centroid(points), q.CheckIn, q.CheckOut, q.Guests)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("price batch %d: %w", batchNo, ctx.Err())
			}
			p.log.Warn("pricing batch failed, marking hotels unavailable",
				slog.Int("batch", batchNo),
				slog.Int("size", len(batch)),
				slog.Any("err", err),
			)
			for _, r := range batch {
				outcomes = append(outcomes, outcome{hotel: Unavailable(r, models.ErrPricingUnavailable), err: err})
			}
			continue
		}

		for _, r := range batch {
			m, ok := p.matcher.BestMatch(r, offers)
			outcomes = append(outcomes, outcome{hotel: Merge(r, m, ok)})
		}
	}
	return outcomes, nil
}

func (p *Pipeline) publish(ctx context.Context, event models.SearchEvent) {
	if p.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.PublishTimeout)
	defer cancel()

	if err := p.publisher.PublishSearch(pubCtx, event); err != nil {
		p.log.Warn("publish search event", slog.String("search_id", event.SearchID), slog.Any("err", err))
	}
}

// Merge builds the output record for r given the matcher's verdict.
func Merge(r models.DiscoveryRecord, m matching.Match, ok bool) models.MatchedHotel {
	if !ok {
		return Unavailable(r, "")
	}
	score := m.Score
	policies := m.Record.Policies
	return models.MatchedHotel{
		DiscoveryRecord: r,
		Available:       true,
		Price:           m.Record.Price,
		MatchScore:      &score,
		PricingID:       m.Record.ID,
		Facilities:      m.Record.Facilities,
		Policies:        &policies,
		BookingURL:      m.Record.BookingURL,
	}
}

// Unavailable builds an unpriced record with an optional soft error tag.
func Unavailable(r models.DiscoveryRecord, tag string) models.MatchedHotel {
	return models.MatchedHotel{DiscoveryRecord: r, Error: tag}
}

// Rank orders hotels in place: available first, then cheaper, then priced
// before unpriced, then higher rated. Equal hotels keep their order.
func Rank(hotels []models.MatchedHotel) {
	sort.SliceStable(hotels, func(i, j int) bool {
		a, b := hotels[i], hotels[j]
		if a.Available != b.Available {
			return a.Available
		}
		if a.Price.Valid && b.Price.Valid {
			if c := a.Price.Price.Amount.Cmp(b.Price.Price.Amount); c != 0 {
				return c < 0
			}
		} else if a.Price.Valid != b.Price.Valid {
			return a.Price.Valid
		}
		return a.Rating > b.Rating
	})
}

// Summarize counts availability and pricing over hotels.
func Summarize(hotels []models.MatchedHotel) models.Metadata {
	md := models.Metadata{Total: len(hotels)}
	for _, h := range hotels {
		if h.Available {
			md.Available++
		}
		if h.Price.Valid {
			md.WithPricing++
		}
	}
	md.Unavailable = md.Total - md.Available
	return md
}

// CacheKey identifies a priced result by stay window, guests and the sorted hotel ids.
func CacheKey(q models.SearchQuery, records []models.DiscoveryRecord) string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return "hotel-pricing:" + q.CheckIn + ":" + q.CheckOut + ":" + strconv.Itoa(q.Guests) + ":" + strings.Join(ids, ",")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
