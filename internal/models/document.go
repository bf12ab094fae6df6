package models

import "time"

// GeoPoint uses the Elasticsearch geo_point field names.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HotelDocument is a snapshot of one matched hotel as stored in Elasticsearch.
type HotelDocument struct {
	ID         string    `json:"id"`
	SearchID   string    `json:"search_id"`
	PlaceID    string    `json:"place_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Location   GeoPoint  `json:"location"`
	Rating     float64   `json:"rating"`
	Available  bool      `json:"available"`
	Price      *float64  `json:"price,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	MatchScore *float64  `json:"match_score,omitempty"`
	Facilities []string  `json:"facilities,omitempty"`
	Keywords   []string  `json:"keywords,omitempty"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Guests     int       `json:"guests"`
	Timestamp  time.Time `json:"timestamp"`
}

// SearchEvent is published after a search is computed from the providers.
type SearchEvent struct {
	SearchID  string       `json:"search_id"`
	Location  string       `json:"location,omitempty"`
	Query     SearchQuery  `json:"query"`
	Result    SearchResult `json:"result"`
	Timestamp time.Time    `json:"timestamp"`
}
