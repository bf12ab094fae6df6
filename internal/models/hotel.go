package models

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Finite reports whether both components are real numbers.
func (c Coordinate) Finite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) && !math.IsNaN(c.Lng) && !math.IsInf(c.Lng, 0)
}

// SearchQuery is a coordinate search over a stay window.
type SearchQuery struct {
	Coordinate Coordinate `json:"coordinate"`
	CheckIn    string     `json:"checkIn" validate:"required,datetime=2006-01-02"`
	CheckOut   string     `json:"checkOut" validate:"required,datetime=2006-01-02"`
	Guests     int        `json:"guests" validate:"min=1,max=10"`
}

// DiscoveryRecord is a hotel candidate returned by the discovery provider.
type DiscoveryRecord struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	Rating     float64    `json:"rating"`
	Coordinate Coordinate `json:"location"`
	Photos     []string   `json:"photos,omitempty"`
}

// Policies are the stay rules advertised by the pricing provider.
type Policies struct {
	CheckInFrom      string `json:"checkInFrom,omitempty"`
	CheckOutUntil    string `json:"checkOutUntil,omitempty"`
	FreeCancellation bool   `json:"freeCancellation"`
}

// PricingRecord is a priced offer returned by the pricing provider.
type PricingRecord struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"location"`
	// Rating is normalized to the 0-5 scale.
	Rating     float64   `json:"rating"`
	Price      PriceInfo `json:"price"`
	Facilities []string  `json:"facilities,omitempty"`
	Policies   Policies  `json:"policies"`
	BookingURL string    `json:"bookingUrl,omitempty"`
}

const (
	PeriodTotal = "total"
	PeriodNight = "night"
)

// Price is a non-negative amount in a currency for a period.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Period   string          `json:"period"`
}

// PriceInfo is an optional Price. The zero value is "no price".
type PriceInfo struct {
	Price Price
	Valid bool
}

// SomePrice wraps p as a present price.
func SomePrice(p Price) PriceInfo {
	return PriceInfo{Price: p, Valid: true}
}

func (p PriceInfo) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Price)
}

func (p *PriceInfo) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = PriceInfo{}
		return nil
	}
	var price Price
	if err := json.Unmarshal(data, &price); err != nil {
		return err
	}
	*p = SomePrice(price)
	return nil
}

// Soft error tags attached to a MatchedHotel.
const ErrPricingUnavailable = "pricing_unavailable"

// MatchedHotel is a discovery record merged with at most one pricing record.
type MatchedHotel struct {
	DiscoveryRecord
	Available  bool      `json:"available"`
	Price      PriceInfo `json:"price"`
	MatchScore *float64  `json:"matchScore,omitempty"`
	PricingID  string    `json:"pricingId,omitempty"`
	Facilities []string  `json:"facilities,omitempty"`
	Policies   *Policies `json:"policies,omitempty"`
	BookingURL string    `json:"bookingUrl,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Metadata summarizes a result set.
type Metadata struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Unavailable int `json:"unavailable"`
	WithPricing int `json:"withPricing"`
}

// SearchResult is the merged, ranked output of one search.
type SearchResult struct {
	Hotels   []MatchedHotel `json:"hotels"`
	Metadata Metadata       `json:"metadata"`
}

// AddressInfo is the result of a reverse geocode.
type AddressInfo struct {
	FormattedAddress string     `json:"formattedAddress"`
	City             string     `json:"city,omitempty"`
	Country          string     `json:"country,omitempty"`
	PlaceID          string     `json:"placeId,omitempty"`
	Coordinate       Coordinate `json:"location"`
}

// Review is a guest review attached to a discovered place.
type Review struct {
	Author string    `json:"author"`
	Rating float64   `json:"rating"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}
