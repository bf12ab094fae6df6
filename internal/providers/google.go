package providers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/models"
)

// GoogleConfig configures the Maps (geocoding + places) client.
type GoogleConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	RPS     float64

	// GeocodingRPS limits geocoding separately; RPS applies when zero.
	GeocodingRPS float64
}

// GoogleMaps talks to the Geocoding and Places web services. It makes exactly one
// HTTP call per method; retries belong to the caller.
type GoogleMaps struct {
	geocoding *httpClient
	places    *httpClient
	apiKey    string
}

func NewGoogleMaps(cfg GoogleConfig) *GoogleMaps {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://maps.googleapis.com/maps/api"
	}
	if cfg.GeocodingRPS <= 0 {
		cfg.GeocodingRPS = cfg.RPS
	}
	return &GoogleMaps{
		geocoding: newHTTPClient(apperr.ServiceGeocoding, cfg.BaseURL, cfg.Timeout, cfg.GeocodingRPS, nil),
		places:    newHTTPClient(apperr.ServiceDiscovery, cfg.BaseURL, cfg.Timeout, cfg.RPS, nil),
		apiKey:    cfg.APIKey,
	}
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress  string   `json:"formatted_address"`
		PlaceID           string   `json:"place_id"`
		Geometry          geometry `json:"geometry"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// Geocode resolves free text. ZERO_RESULTS yields an empty slice.
func (g *GoogleMaps) Geocode(ctx context.Context, address string) ([]models.AddressInfo, error) {
	q := url.Values{}
	q.Set("address", address)
	return g.geocode(ctx, address, q)
}

// ReverseGeocode resolves a coordinate to addresses, most specific first.
func (g *GoogleMaps) ReverseGeocode(ctx context.Context, c models.Coordinate) ([]models.AddressInfo, error) {
	latlng := formatCoordinate(c.Lat, c.Lng)
	q := url.Values{}
	q.Set("latlng", latlng)
	return g.geocode(ctx, latlng, q)
}

func (g *GoogleMaps) geocode(ctx context.Context, query string, q url.Values) ([]models.AddressInfo, error) {
	q.Set("key", g.apiKey)

	var resp geocodeResponse
	if err := g.geocoding.getJSON(ctx, "/geocode/json", q, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case apperr.StatusZeroResults:
		return nil, nil
	case apperr.StatusInvalidRequest:
		return nil, &apperr.GeocodingError{Query: query, Status: resp.Status}
	default:
		return nil, statusError(apperr.ServiceGeocoding, resp.Status, resp.ErrorMessage)
	}

	out := make([]models.AddressInfo, 0, len(resp.Results))
	for _, r := range resp.Results {
		info := models.AddressInfo{
			FormattedAddress: r.FormattedAddress,
			PlaceID:          r.PlaceID,
			Coordinate:       models.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		}
		for _, comp := range r.AddressComponents {
			for _, typ := range comp.Types {
				switch typ {
				case "locality":
					info.City = comp.LongName
				case "country":
					info.Country = comp.LongName
				}
			}
		}
		out = append(out, info)
	}
	return out, nil
}

type nearbyResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID  string   `json:"place_id"`
		Name     string   `json:"name"`
		Vicinity string   `json:"vicinity"`
		Rating   float64  `json:"rating"`
		Geometry geometry `json:"geometry"`
		Photos   []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"results"`
}

// NearbyLodging lists lodging places within radiusMeters of c.
func (g *GoogleMaps) NearbyLodging(ctx context.Context, c models.Coordinate, radiusMeters int) ([]models.DiscoveryRecord, error) {
	q := url.Values{}
	q.Set("location", formatCoordinate(c.Lat, c.Lng))
	q.Set("radius", strconv.Itoa(radiusMeters))
	q.Set("type", "lodging")
	q.Set("key", g.apiKey)

	var resp nearbyResponse
	if err := g.places.getJSON(ctx, "/place/nearbysearch/json", q, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case apperr.StatusZeroResults:
		return nil, nil
	default:
		return nil, statusError(apperr.ServiceDiscovery, resp.Status, resp.ErrorMessage)
	}

	out := make([]models.DiscoveryRecord, 0, len(resp.Results))
	for _, r := range resp.Results {
		rec := models.DiscoveryRecord{
			ID:         r.PlaceID,
			Name:       r.Name,
			Address:    r.Vicinity,
			Rating:     r.Rating,
			Coordinate: models.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		}
		for _, p := range r.Photos {
			if p.PhotoReference != "" {
				rec.Photos = append(rec.Photos, p.PhotoReference)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Reviews []struct {
			AuthorName string  `json:"author_name"`
			Rating     float64 `json:"rating"`
			Text       string  `json:"text"`
			Time       int64   `json:"time"`
		} `json:"reviews"`
	} `json:"result"`
}

// PlaceReviews returns the guest reviews attached to placeID.
func (g *GoogleMaps) PlaceReviews(ctx context.Context, placeID string) ([]models.Review, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "reviews")
	q.Set("key", g.apiKey)

	var resp detailsResponse
	if err := g.places.getJSON(ctx, "/place/details/json", q, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case apperr.StatusZeroResults, "NOT_FOUND":
		return nil, nil
	default:
		return nil, statusError(apperr.ServiceDiscovery, resp.Status, resp.ErrorMessage)
	}

	out := make([]models.Review, 0, len(resp.Result.Reviews))
	for _, r := range resp.Result.Reviews {
		out = append(out, models.Review{
			Author: r.AuthorName,
			Rating: r.Rating,
			Text:   r.Text,
			Time:   time.Unix(r.Time, 0).UTC(),
		})
	}
	return out, nil
}

// statusError maps a non-OK body status to the error taxonomy.
func statusError(service, status, message string) error {
	if message == "" {
		message = status
	}
	switch status {
	case apperr.StatusOverLimit:
		return &apperr.RateLimitError{Service: service}
	case apperr.StatusDenied:
		return &apperr.ProviderError{Service: service, Status: http.StatusForbidden, Err: errors.New(message)}
	case apperr.StatusInvalidRequest:
		return &apperr.ProviderError{Service: service, Status: http.StatusBadRequest, Err: errors.New(message)}
	default:
		return &apperr.ProviderError{Service: service, Status: http.StatusBadGateway, Err: errors.New(message)}
	}
}
