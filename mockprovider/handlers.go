package main

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/DeafMist/hotel-radar/internal/models"
)

// Offers are searched in a wider circle than places so batch centroids still see their members.
const offerRadiusMeters = 20_000

type mockServer struct {
	log         *slog.Logger
	world       *world
	failureRate float64
	latency     time.Duration
	roll        func() float64
}

func (s *mockServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.chaos)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/geocode/json", s.handleGeocode)
	r.Get("/place/nearbysearch/json", s.handleNearby)
	r.Get("/place/details/json", s.handleDetails)
	r.Get("/v1/hotels/search-by-coordinates", s.handleOffers)
	return r
}

// chaos adds latency and injects upstream failures at the configured rate.
func (s *mockServer) chaos(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		if s.failureRate > 0 && s.roll() < s.failureRate {
			s.log.Debug("injecting failure", slog.String("path", r.URL.Path))
			if s.roll() < 0.5 {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "Too many requests"})
				return
			}
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "upstream unavailable"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type addressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

type geocodeResult struct {
	FormattedAddress  string             `json:"formatted_address"`
	PlaceID           string             `json:"place_id"`
	Geometry          geometry           `json:"geometry"`
	AddressComponents []addressComponent `json:"address_components"`
}

func (s *mockServer) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var info models.AddressInfo
	switch {
	case q.Get("latlng") != "":
		c, ok := parseLatLng(q.Get("latlng"))
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"status": "INVALID_REQUEST", "results": []any{}})
			return
		}
		info = s.world.reverse(c)
	case strings.TrimSpace(q.Get("address")) != "":
		address := q.Get("address")
		if strings.Contains(strings.ToLower(address), "nowhere") {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ZERO_RESULTS", "results": []any{}})
			return
		}
		info = s.world.place(address)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"status": "INVALID_REQUEST", "results": []any{}})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "OK",
		"results": []geocodeResult{{
			FormattedAddress: info.FormattedAddress,
			PlaceID:          info.PlaceID,
			Geometry:         geometry{Location: latLng{Lat: info.Coordinate.Lat, Lng: info.Coordinate.Lng}},
			AddressComponents: []addressComponent{
				{LongName: info.City, Types: []string{"locality", "political"}},
				{LongName: info.Country, Types: []string{"country", "political"}},
			},
		}},
	})
}

type photo struct {
	PhotoReference string `json:"photo_reference"`
}

type nearbyResult struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Rating   float64  `json:"rating"`
	Geometry geometry `json:"geometry"`
	Photos   []photo  `json:"photos,omitempty"`
	Types    []string `json:"types"`
}

func (s *mockServer) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, ok := parseLatLng(q.Get("location"))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "INVALID_REQUEST", "results": []any{}})
		return
	}
	radius, err := strconv.ParseFloat(q.Get("radius"), 64)
	if err != nil || radius <= 0 {
		radius = 50_000
	}

	hotels := s.world.around(c, radius, true)
	if len(hotels) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ZERO_RESULTS", "results": []any{}})
		return
	}

	results := make([]nearbyResult, 0, len(hotels))
	for _, h := range hotels {
		res := nearbyResult{
			PlaceID:  h.placeID,
			Name:     h.name,
			Vicinity: h.address,
			Rating:   h.rating,
			Geometry: geometry{Location: latLng{Lat: h.location.Lat, Lng: h.location.Lng}},
			Types:    []string{"lodging", "point_of_interest", "establishment"},
		}
		for _, ref := range h.photos {
			res.Photos = append(res.Photos, photo{PhotoReference: ref})
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "OK", "results": results})
}

type reviewResult struct {
	AuthorName string  `json:"author_name"`
	Rating     float64 `json:"rating"`
	Text       string  `json:"text"`
	Time       int64   `json:"time"`
}

func (s *mockServer) handleDetails(w http.ResponseWriter, r *http.Request) {
	placeID := strings.TrimSpace(r.URL.Query().Get("place_id"))
	if placeID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "INVALID_REQUEST"})
		return
	}

	reviews := s.world.reviews(placeID)
	out := make([]reviewResult, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, reviewResult{AuthorName: rv.Author, Rating: rv.Rating, Text: rv.Text, Time: rv.Time.Unix()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "OK",
		"result": map[string]any{"place_id": placeID, "reviews": out},
	})
}

type offer struct {
	HotelID           int64               `json:"hotel_id"`
	HotelName         string              `json:"hotel_name"`
	Latitude          float64             `json:"latitude"`
	Longitude         float64             `json:"longitude"`
	ReviewScore       float64             `json:"review_score"`
	MinTotalPrice     decimal.NullDecimal `json:"min_total_price"`
	CurrencyCode      string              `json:"currencycode"`
	HotelFacilities   string              `json:"hotel_facilities"`
	IsFreeCancellable int                 `json:"is_free_cancellable"`
	URL               string              `json:"url"`
	Checkin           map[string]string   `json:"checkin"`
	Checkout          map[string]string   `json:"checkout"`
}

func (s *mockServer) handleOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("latitude"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("longitude"), 64)
	if errLat != nil || errLng != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "latitude and longitude are required"})
		return
	}
	nights := stayNights(q.Get("checkin_date"), q.Get("checkout_date"))
	if nights <= 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "checkout_date must be after checkin_date"})
		return
	}
	currency := strings.ToUpper(q.Get("filter_by_currency"))
	if currency == "" {
		currency = "USD"
	}

	hotels := s.world.around(models.Coordinate{Lat: lat, Lng: lng}, offerRadiusMeters, false)
	result := make([]offer, 0, len(hotels))
	for _, h := range hotels {
		if !h.listed {
			continue
		}
		// Listings drift a few meters from the map position.
		o := offer{
			HotelID:         h.bookingID,
			HotelName:       h.name,
			Latitude:        h.location.Lat + float64(h.bookingID%7)*0.00005,
			Longitude:       h.location.Lng - float64(h.bookingID%5)*0.00005,
			ReviewScore:     h.rating * 2,
			CurrencyCode:    currency,
			HotelFacilities: strings.Join(h.facilities, ","),
			URL:             "https://www.booking.com/hotel/mock/" + strconv.FormatInt(h.bookingID, 10) + ".html",
			Checkin:         map[string]string{"from": "14:00"},
			Checkout:        map[string]string{"until": "11:00"},
		}
		if h.freeCancel {
			o.IsFreeCancellable = 1
		}
		if h.price.Valid {
			o.MinTotalPrice = decimal.NewNullDecimal(h.price.Decimal.Mul(decimal.NewFromInt(int64(nights))))
		}
		result = append(result, o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result, "count": len(result)})
}

func stayNights(checkIn, checkOut string) int {
	in, err := time.Parse(time.DateOnly, checkIn)
	if err != nil {
		return 0
	}
	out, err := time.Parse(time.DateOnly, checkOut)
	if err != nil {
		return 0
	}
	return int(out.Sub(in).Hours() / 24)
}

func parseLatLng(raw string) (models.Coordinate, bool) {
	lat, lng, ok := strings.Cut(raw, ",")
	if !ok {
		return models.Coordinate{}, false
	}
	c := models.Coordinate{}
	var err error
	if c.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return models.Coordinate{}, false
	}
	if c.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return models.Coordinate{}, false
	}
	return c, c.Validate() == nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func defaultRoll() float64 {
	return rand.Float64()
}
