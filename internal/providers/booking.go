package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/models"
)

// BookingConfig configures the RapidAPI booking client.
type BookingConfig struct {
	BaseURL  string
	APIKey   string
	APIHost  string
	Currency string
	Locale   string
	Timeout  time.Duration
	RPS      float64
}

// Booking fetches priced offers around a coordinate.
type Booking struct {
	http     *httpClient
	currency string
	locale   string
}

func NewBooking(cfg BookingConfig) *Booking {
	if cfg.APIHost == "" {
		cfg.APIHost = "booking-com.p.rapidapi.com"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.APIHost
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-gb"
	}

	headers := http.Header{}
	headers.Set("X-RapidAPI-Key", cfg.APIKey)
	headers.Set("X-RapidAPI-Host", cfg.APIHost)

	return &Booking{
		http:     newHTTPClient(apperr.ServicePricing, cfg.BaseURL, cfg.Timeout, cfg.RPS, headers),
		currency: cfg.Currency,
		locale:   cfg.Locale,
	}
}

type bookingHotel struct {
	HotelID           int64               `json:"hotel_id"`
	HotelName         string              `json:"hotel_name"`
	Latitude          float64             `json:"latitude"`
	Longitude         float64             `json:"longitude"`
	ReviewScore       *float64            `json:"review_score"`
	MinTotalPrice     decimal.NullDecimal `json:"min_total_price"`
	CurrencyCode      string              `json:"currencycode"`
	HotelFacilities   string              `json:"hotel_facilities"`
	IsFreeCancellable int                 `json:"is_free_cancellable"`
	URL               string              `json:"url"`
	Checkin           struct {
		From string `json:"from"`
	} `json:"checkin"`
	Checkout struct {
		Until string `json:"until"`
	} `json:"checkout"`
}

type bookingResponse struct {
	Result []bookingHotel `json:"result"`
}

// SearchByCoordinates lists offers near c for the stay window.
func (b *Booking) SearchByCoordinates(ctx context.Context, c models.Coordinate, checkIn, checkOut string, guests int) ([]models.PricingRecord, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.Lng, 'f', -1, 64))
	q.Set("checkin_date", checkIn)
	q.Set("checkout_date", checkOut)
	q.Set("adults_number", strconv.Itoa(guests))
	q.Set("room_number", "1")
	q.Set("units", "metric")
	q.Set("order_by", "popularity")
	q.Set("filter_by_currency", b.currency)
	q.Set("locale", b.locale)

	var resp bookingResponse
	if err := b.http.getJSON(ctx, "/v1/hotels/search-by-coordinates", q, &resp); err != nil {
		return nil, err
	}

	out := make([]models.PricingRecord, 0, len(resp.Result))
	for _, h := range resp.Result {
		out = append(out, toPricingRecord(h, b.currency))
	}
	return out, nil
}

func toPricingRecord(h bookingHotel, fallbackCurrency string) models.PricingRecord {
	rec := models.PricingRecord{
		ID:         strconv.FormatInt(h.HotelID, 10),
		Name:       h.HotelName,
		Coordinate: models.Coordinate{Lat: h.Latitude, Lng: h.Longitude},
		Facilities: splitFacilities(h.HotelFacilities),
		Policies: models.Policies{
			CheckInFrom:      h.Checkin.From,
			CheckOutUntil:    h.Checkout.Until,
			FreeCancellation: h.IsFreeCancellable == 1,
		},
		BookingURL: h.URL,
	}

	// Review scores are on a 0-10 scale.
	if h.ReviewScore != nil {
		rec.Rating = *h.ReviewScore / 2
	}

	if h.MinTotalPrice.Valid && !h.MinTotalPrice.Decimal.IsNegative() {
		currency := h.CurrencyCode
		if currency == "" {
			currency = fallbackCurrency
		}
		rec.Price = models.SomePrice(models.Price{
			Amount:   h.MinTotalPrice.Decimal.Round(2),
			Currency: currency,
			Period:   models.PeriodTotal,
		})
	}
	return rec
}

func splitFacilities(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
