package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/config"
	"github.com/DeafMist/hotel-radar/internal/elasticsearch"
	"github.com/DeafMist/hotel-radar/internal/metrics"
	"github.com/DeafMist/hotel-radar/internal/models"
	"github.com/DeafMist/hotel-radar/internal/pipeline"
)

const defaultGuests = 2

type searcher interface {
	Search(ctx context.Context, q models.SearchQuery) (*pipeline.Result, error)
	SearchLocation(ctx context.Context, text, checkIn, checkOut string, guests int) (*pipeline.Result, error)
}

type geocoder interface {
	Resolve(ctx context.Context, text string) (models.AddressInfo, bool, error)
	Reverse(ctx context.Context, c models.Coordinate) (models.AddressInfo, bool, error)
}

type reviewer interface {
	Reviews(ctx context.Context, placeID string) ([]models.Review, error)
}

type historySearcher interface {
	SearchHotels(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
}

type healthReporter interface {
	Snapshots() map[string]metrics.Stats
}

type pinger interface {
	Ping(ctx context.Context) error
}

type server struct {
	log        *slog.Logger
	cfg        *config.API
	search     searcher
	geocoder   geocoder
	reviews    reviewer
	history    historySearcher
	health     healthReporter
	cache      pinger
	metrics    http.Handler
	middleware func(http.Handler) http.Handler
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.middleware != nil {
		r.Use(s.middleware)
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/geocode", s.handleGeocode)
	r.Get("/geocode/reverse", s.handleReverseGeocode)
	r.Route("/hotels", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/history", s.handleHistory)
		r.Get("/{placeID}/reviews", s.handleReviews)
	})
	return r
}

type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type healthResponse struct {
	Status    string                   `json:"status"`
	Providers map[string]metrics.Stats `json:"providers"`
	Cache     string                   `json:"cache,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshots := s.health.Snapshots()
	status, code := "ok", http.StatusOK
	for _, st := range snapshots {
		if st.Status == metrics.StatusCritical {
			status, code = "critical", http.StatusServiceUnavailable
			break
		}
		if st.Status == metrics.StatusDegraded {
			status = "degraded"
		}
	}

	resp := healthResponse{Providers: snapshots}
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		resp.Cache = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			// Reads fall through to providers, so a cache outage only degrades.
			s.log.Warn("cache ping failed", slog.Any("err", err))
			resp.Cache = "unavailable"
			if status == "ok" {
				status = "degraded"
			}
		}
	}
	resp.Status = status
	writeJSON(w, code, resp)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	checkIn := strings.TrimSpace(q.Get("checkin"))
	checkOut := strings.TrimSpace(q.Get("checkout"))

	guests := defaultGuests
	if raw := strings.TrimSpace(q.Get("guests")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, &apperr.ValidationError{Field: "guests", Message: "must be an integer"})
			return
		}
		guests = n
	}

	location := strings.TrimSpace(q.Get("location"))
	coord, hasCoord, err := parseCoordinate(q.Get("lat"), q.Get("lng"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if location == "" && !hasCoord {
		s.writeError(w, r, &apperr.ValidationError{Field: "location", Message: "location or lat/lng is required"})
		return
	}

	query := models.SearchQuery{Coordinate: coord, CheckIn: checkIn, CheckOut: checkOut, Guests: guests}
	if err := query.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	var res *pipeline.Result
	if hasCoord {
		res, err = s.search.Search(r.Context(), query)
	} else {
		res, err = s.search.SearchLocation(r.Context(), location, checkIn, checkOut, guests)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	info, found, err := s.geocoder.Resolve(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		s.writeError(w, r, &apperr.GeocodingError{Query: address, Status: apperr.StatusZeroResults})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	coord, ok, err := parseCoordinate(r.URL.Query().Get("lat"), r.URL.Query().Get("lng"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, &apperr.ValidationError{Field: "lat", Message: "lat and lng are required"})
		return
	}
	info, found, err := s.geocoder.Reverse(r.Context(), coord)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		s.writeError(w, r, &apperr.GeocodingError{
			Query:  r.URL.Query().Get("lat") + "," + r.URL.Query().Get("lng"),
			Status: apperr.StatusZeroResults,
		})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *server) handleReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.reviews.Reviews(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"placeId": chi.URLParam(r, "placeID"), "reviews": reviews})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:    strings.TrimSpace(q.Get("q")),
		PlaceID:  strings.TrimSpace(q.Get("placeId")),
		Currency: strings.ToUpper(strings.TrimSpace(q.Get("currency"))),
		From:     clampInt(q.Get("from"), 0, 10_000),
		Size:     clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:     strings.TrimSpace(q.Get("sort")),
		Start:    parseTime(q.Get("start")),
		End:      parseTime(q.Get("end")),
	}
	if raw := strings.TrimSpace(q.Get("available")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			params.Available = &v
		}
	}

	result, err := s.history.SearchHotels(ctx, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseCoordinate reports ok=false when both values are empty.
func parseCoordinate(rawLat, rawLng string) (models.Coordinate, bool, error) {
	rawLat, rawLng = strings.TrimSpace(rawLat), strings.TrimSpace(rawLng)
	if rawLat == "" && rawLng == "" {
		return models.Coordinate{}, false, nil
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return models.Coordinate{}, false, &apperr.ValidationError{Field: "lat", Message: "must be a number"}
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		return models.Coordinate{}, false, &apperr.ValidationError{Field: "lng", Message: "must be a number"}
	}
	c := models.Coordinate{Lat: lat, Lng: lng}
	if err := c.Validate(); err != nil {
		return models.Coordinate{}, false, err
	}
	return c, true, nil
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status, provider := apperr.Describe(err)
	attrs := []any{
		slog.Any("err", err),
		slog.String("code", code),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", attrs...)
	} else {
		s.log.Debug("request rejected", attrs...)
	}

	message := err.Error()
	if code == apperr.CodeInternal {
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message, Provider: provider}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
