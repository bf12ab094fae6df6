// Package matching pairs discovery records with pricing offers that describe the same property.
package matching

import (
	"math"
	"strings"

	"github.com/DeafMist/hotel-radar/internal/geo"
	"github.com/DeafMist/hotel-radar/internal/models"
)

// Config holds the score weights and acceptance threshold.
type Config struct {
	Threshold         float64
	NameWeight        float64
	DistanceWeight    float64
	RatingWeight      float64
	MaxDistanceMeters float64
}

func DefaultConfig() Config {
	return Config{
		Threshold:         0.7,
		NameWeight:        0.5,
		DistanceWeight:    0.3,
		RatingWeight:      0.2,
		MaxDistanceMeters: 500,
	}
}

// Match is an accepted pairing.
type Match struct {
	Record models.PricingRecord
	Score  float64
}

// Engine is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	if cfg.MaxDistanceMeters <= 0 {
		cfg.MaxDistanceMeters = DefaultConfig().MaxDistanceMeters
	}
	return &Engine{cfg: cfg}
}

// Score is the weighted similarity of d and p in [0, 1].
func (e *Engine) Score(d models.DiscoveryRecord, p models.PricingRecord) float64 {
	name := NameSimilarity(d.Name, p.Name)
	dist := DistanceScore(geo.Distance(d.Coordinate, p.Coordinate), e.cfg.MaxDistanceMeters)
	rating := RatingSimilarity(d.Rating, p.Rating)

	return e.cfg.NameWeight*name + e.cfg.DistanceWeight*dist + e.cfg.RatingWeight*rating
}

// BestMatch returns the highest-scoring candidate when it clears the threshold.
// A case-insensitive exact name wins immediately unless the name is blank.
// Ties keep the earlier candidate.
func (e *Engine) BestMatch(d models.DiscoveryRecord, candidates []models.PricingRecord) (Match, bool) {
	if name := strings.ToLower(strings.TrimSpace(d.Name)); name != "" {
		for _, c := range candidates {
			if strings.ToLower(strings.TrimSpace(c.Name)) == name {
				return Match{Record: c, Score: 1}, true
			}
		}
	}

	best := -1
	bestScore := math.Inf(-1)
	for i, c := range candidates {
		if s := e.Score(d, c); s > bestScore {
			best, bestScore = i, s
		}
	}

	if best < 0 || bestScore <= e.cfg.Threshold {
		return Match{}, false
	}
	return Match{Record: candidates[best], Score: bestScore}, true
}

// NameSimilarity is one minus the normalized edit distance of the lowercased names.
func NameSimilarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// DistanceScore decays linearly from 1 at zero meters to 0 at horizon.
func DistanceScore(meters, horizon float64) float64 {
	return math.Max(0, 1-meters/horizon)
}

// RatingSimilarity compares two 0-5 ratings. Missing ratings contribute nothing.
func RatingSimilarity(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return 1 - math.Abs(a-b)/5
}

// Levenshtein is the unit-cost edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	return levenshtein([]rune(a), []rune(b))
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
