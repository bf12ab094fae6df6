package matching_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/hotel-radar/internal/matching"
	"github.com/DeafMist/hotel-radar/internal/models"
)

var grandPlaza = models.DiscoveryRecord{
	ID:         "place-1",
	Name:       "Grand Plaza",
	Address:    "1 Times Square, New York",
	Rating:     4.5,
	Coordinate: models.Coordinate{Lat: 40.7589, Lng: -73.9851},
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{a: "", b: "", want: 0},
		{a: "abc", b: "", want: 3},
		{a: "kitten", b: "sitting", want: 3},
		{a: "grand plaza", b: "the grand plaza hotel", want: 10},
		{a: "отель", b: "отели", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			require.Equal(t, tt.want, matching.Levenshtein(tt.a, tt.b))
			require.Equal(t, tt.want, matching.Levenshtein(tt.b, tt.a))
		})
	}
}

func TestNameSimilarity(t *testing.T) {
	names := []string{"Grand Plaza", "The Grand Plaza Hotel", "Hôtel du Louvre", ""}
	for _, a := range names {
		require.Equal(t, 1.0, matching.NameSimilarity(a, a))
		for _, b := range names {
			require.Equal(t, matching.NameSimilarity(a, b), matching.NameSimilarity(b, a))
		}
	}

	require.Equal(t, 1.0, matching.NameSimilarity("GRAND plaza", "grand PLAZA"))
	require.InDelta(t, 1-10.0/21.0, matching.NameSimilarity("Grand Plaza", "The Grand Plaza Hotel"), 1e-9)
}

func TestScoreComponents(t *testing.T) {
	require.Equal(t, 1.0, matching.DistanceScore(0, 500))
	require.Equal(t, 0.5, matching.DistanceScore(250, 500))
	require.Equal(t, 0.0, matching.DistanceScore(2000, 500))

	require.InDelta(t, 0.98, matching.RatingSimilarity(4.5, 4.6), 1e-9)
	require.Equal(t, 0.0, matching.RatingSimilarity(0, 4.6))
}

func TestBestMatchAcceptsNearbySimilarHotel(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	offer := models.PricingRecord{
		ID:         "bk-77",
		Name:       "The Grand Plaza Hotel",
		Coordinate: models.Coordinate{Lat: 40.7590, Lng: -73.9850},
		Rating:     4.6,
	}

	m, ok := engine.BestMatch(grandPlaza, []models.PricingRecord{offer})
	require.True(t, ok)
	require.Equal(t, "bk-77", m.Record.ID)
	require.Greater(t, m.Score, 0.7)
	require.InDelta(t, 0.75, m.Score, 0.01)
}

func TestBestMatchRejectsDistantDifferentHotel(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	offer := models.PricingRecord{
		ID:         "bk-9",
		Name:       "Airport Budget Inn",
		Coordinate: models.Coordinate{Lat: 40.7769, Lng: -73.9851},
		Rating:     3.0,
	}

	score := engine.Score(grandPlaza, offer)
	require.Less(t, score, 0.7)

	_, ok := engine.BestMatch(grandPlaza, []models.PricingRecord{offer})
	require.False(t, ok)
}

func TestBestMatchExactNameShortCircuits(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	candidates := []models.PricingRecord{
		{ID: "near", Name: "Grand Plaza Hotel", Coordinate: grandPlaza.Coordinate, Rating: 4.5},
		{ID: "exact", Name: "GRAND PLAZA", Coordinate: models.Coordinate{Lat: 41, Lng: -74}},
	}

	m, ok := engine.BestMatch(grandPlaza, candidates)
	require.True(t, ok)
	require.Equal(t, "exact", m.Record.ID)
	require.Equal(t, 1.0, m.Score)
}

func TestBestMatchBlankNameDoesNotShortCircuit(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	nameless := models.DiscoveryRecord{ID: "place-2", Coordinate: grandPlaza.Coordinate}
	far := models.PricingRecord{ID: "far", Name: "  ", Coordinate: models.Coordinate{Lat: 41, Lng: -74}}

	_, ok := engine.BestMatch(nameless, []models.PricingRecord{far})
	require.False(t, ok)
}

func TestBestMatchIsDeterministic(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	twin := models.PricingRecord{Name: "Grand Plaza NYC", Coordinate: grandPlaza.Coordinate, Rating: 4.5}
	a, b := twin, twin
	a.ID, b.ID = "first", "second"
	candidates := []models.PricingRecord{a, b}

	first, ok := engine.BestMatch(grandPlaza, candidates)
	require.True(t, ok)
	require.Equal(t, "first", first.Record.ID)

	for i := 0; i < 20; i++ {
		again, ok := engine.BestMatch(grandPlaza, candidates)
		require.True(t, ok)
		require.Equal(t, first, again)
	}
}

func TestBestMatchEmptyCandidates(t *testing.T) {
	_, ok := matching.New(matching.DefaultConfig()).BestMatch(grandPlaza, nil)
	require.False(t, ok)
}

func TestThresholdIsConfigurable(t *testing.T) {
	cfg := matching.DefaultConfig()
	cfg.Threshold = 0.9
	engine := matching.New(cfg)

	offer := models.PricingRecord{Name: "The Grand Plaza Hotel", Coordinate: models.Coordinate{Lat: 40.7590, Lng: -73.9850}, Rating: 4.6}
	_, ok := engine.BestMatch(grandPlaza, []models.PricingRecord{offer})
	require.False(t, ok)
}
