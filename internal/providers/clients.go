package providers

import (
	"context"
	"time"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/cache"
	"github.com/DeafMist/hotel-radar/internal/models"
	"github.com/DeafMist/hotel-radar/internal/retry"
)

// DefaultRadiusMeters is the discovery search radius.
const DefaultRadiusMeters = 50_000

// PlacesAPI is the raw discovery upstream.
type PlacesAPI interface {
	NearbyLodging(ctx context.Context, c models.Coordinate, radiusMeters int) ([]models.DiscoveryRecord, error)
	PlaceReviews(ctx context.Context, placeID string) ([]models.Review, error)
}

// OffersAPI is the raw pricing upstream.
type OffersAPI interface {
	SearchByCoordinates(ctx context.Context, c models.Coordinate, checkIn, checkOut string, guests int) ([]models.PricingRecord, error)
}

// DiscoveryClient adds retries and review caching on top of a PlacesAPI.
type DiscoveryClient struct {
	api        PlacesAPI
	exec       *retry.Executor
	cache      *cache.Cache
	reviewsTTL time.Duration
}

func NewDiscoveryClient(api PlacesAPI, exec *retry.Executor, c *cache.Cache, reviewsTTL time.Duration) *DiscoveryClient {
	if reviewsTTL <= 0 {
		reviewsTTL = 12 * time.Hour
	}
	return &DiscoveryClient{api: api, exec: exec, cache: c, reviewsTTL: reviewsTTL}
}

// Search returns lodging candidates around c.
func (d *DiscoveryClient) Search(ctx context.Context, c models.Coordinate, radiusMeters int) ([]models.DiscoveryRecord, error) {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return retry.Do(ctx, d.exec, apperr.ServiceDiscovery, func(ctx context.Context) ([]models.DiscoveryRecord, error) {
		return d.api.NearbyLodging(ctx, c, radiusMeters)
	})
}

// Reviews returns the reviews for placeID, served from cache when possible.
func (d *DiscoveryClient) Reviews(ctx context.Context, placeID string) ([]models.Review, error) {
	if placeID == "" {
		return nil, &apperr.ValidationError{Field: "placeId", Message: "is required"}
	}

	key := "reviews:" + placeID
	var reviews []models.Review
	if d.cache.GetJSON(ctx, key, &reviews) {
		return reviews, nil
	}

	reviews, err := retry.Do(ctx, d.exec, apperr.ServiceDiscovery, func(ctx context.Context) ([]models.Review, error) {
		return d.api.PlaceReviews(ctx, placeID)
	})
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []models.Review{}
	}

	d.cache.SetJSON(ctx, key, reviews, d.reviewsTTL)
	return reviews, nil
}

// PricingClient adds retries on top of an OffersAPI.
type PricingClient struct {
	api  OffersAPI
	exec *retry.Executor
}

func NewPricingClient(api OffersAPI, exec *retry.Executor) *PricingClient {
	return &PricingClient{api: api, exec: exec}
}

// Search returns priced offers near c. Called once per pipeline batch.
func (p *PricingClient) Search(ctx context.Context, c models.Coordinate, checkIn, checkOut string, guests int) ([]models.PricingRecord, error) {
	return retry.Do(ctx, p.exec, apperr.ServicePricing, func(ctx context.Context) ([]models.PricingRecord, error) {
		return p.api.SearchByCoordinates(ctx, c, checkIn, checkOut, guests)
	})
}
