// Package geo turns free-text locations into coordinates and back.
package geo

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/cache"
	"github.com/DeafMist/hotel-radar/internal/logger"
	"github.com/DeafMist/hotel-radar/internal/models"
	"github.com/DeafMist/hotel-radar/internal/retry"
)

// DefaultTTL is how long geocoding answers stay cached.
const DefaultTTL = 24 * time.Hour

// lookupTimeout bounds one shared upstream lookup, retries included.
const lookupTimeout = time.Minute

// Geocoder is the upstream lookup. An empty result means nothing matched.
type Geocoder interface {
	Geocode(ctx context.Context, address string) ([]models.AddressInfo, error)
	ReverseGeocode(ctx context.Context, c models.Coordinate) ([]models.AddressInfo, error)
}

// Resolver caches geocoder answers and collapses concurrent identical lookups.
type Resolver struct {
	geocoder Geocoder
	cache    *cache.Cache
	exec     *retry.Executor
	ttl      time.Duration
	log      *slog.Logger
	group    singleflight.Group
}

func NewResolver(g Geocoder, c *cache.Cache, exec *retry.Executor, ttl time.Duration, log *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{geocoder: g, cache: c, exec: exec, ttl: ttl, log: log}
}

// NormalizeQuery lowercases, trims and collapses inner whitespace.
func NormalizeQuery(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

type lookup struct {
	Info  models.AddressInfo
	Found bool
}

// Resolve geocodes text. found is false when the geocoder has no match.
func (r *Resolver) Resolve(ctx context.Context, text string) (models.AddressInfo, bool, error) {
	normalized := NormalizeQuery(text)
	if len([]rune(normalized)) < 2 {
		return models.AddressInfo{}, false, &apperr.GeocodingError{Query: text, Status: apperr.StatusInvalidRequest}
	}

	key := "geocode:" + normalized
	return r.resolve(ctx, key, func(ctx context.Context) ([]models.AddressInfo, error) {
		return r.geocoder.Geocode(ctx, strings.TrimSpace(text))
	})
}

// Reverse finds the address closest to c.
func (r *Resolver) Reverse(ctx context.Context, c models.Coordinate) (models.AddressInfo, bool, error) {
	if err := c.Validate(); err != nil {
		return models.AddressInfo{}, false, err
	}

	key := "reverse_geocode:" + strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
	return r.resolve(ctx, key, func(ctx context.Context) ([]models.AddressInfo, error) {
		return r.geocoder.ReverseGeocode(ctx, c)
	})
}

func (r *Resolver) resolve(ctx context.Context, key string, fetch func(context.Context) ([]models.AddressInfo, error)) (models.AddressInfo, bool, error) {
	var info models.AddressInfo
	if r.cache.GetJSON(ctx, key, &info) {
		return info, true, nil
	}

	// The shared lookup ignores caller cancellation. Each caller stops waiting on its own ctx.
	ch := r.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		var cached models.AddressInfo
		if r.cache.GetJSON(lctx, key, &cached) {
			return lookup{Info: cached, Found: true}, nil
		}

		results, err := retry.Do(lctx, r.exec, apperr.ServiceGeocoding, fetch)
		if err != nil {
			return lookup{}, err
		}
		if len(results) == 0 {
			return lookup{}, nil
		}
		r.cache.SetJSON(lctx, key, results[0], r.ttl)
		return lookup{Info: results[0], Found: true}, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return models.AddressInfo{}, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return models.AddressInfo{}, false, res.Err
	}
	if res.Shared {
		r.log.Debug("geocode lookup shared", slog.String("key", key))
	}

	l := res.Val.(lookup)
	return l.Info, l.Found, nil
}
