package main

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/DeafMist/hotel-radar/internal/geo"
	"github.com/DeafMist/hotel-radar/internal/models"
)

// Generated hotels sit within this distance of the point they were generated for.
const spreadMeters = 3000

var facilityPool = []string{
	"Free WiFi", "Parking", "Swimming pool", "Fitness centre", "Spa",
	"Restaurant", "Bar", "Airport shuttle", "Room service", "Pets allowed",
}

type fakeHotel struct {
	placeID    string
	bookingID  int64
	name       string
	address    string
	rating     float64
	location   models.Coordinate
	photos     []string
	price      decimal.NullDecimal
	currency   string
	facilities []string
	freeCancel bool
	listed     bool
}

// world is a lazily grown catalog of hotels shared by the fake discovery and
// pricing endpoints, so offers line up with discovered places.
type world struct {
	mu      sync.Mutex
	seed    uint64
	perArea int
	areas   map[string]bool
	hotels  []*fakeHotel
	nextID  int64
}

func newWorld(seed int64, perArea int) *world {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &world{
		seed:    uint64(seed),
		perArea: perArea,
		areas:   make(map[string]bool),
		nextID:  100000,
	}
}

// areaKey buckets coordinates into roughly 1km cells.
func areaKey(c models.Coordinate) string {
	return fmt.Sprintf("%.2f,%.2f", c.Lat, c.Lng)
}

func (w *world) faker(parts ...string) *gofakeit.Faker {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
	}
	return gofakeit.New(w.seed ^ h.Sum64())
}

// around returns every known hotel within radius of c. With grow set, an
// unseen area is populated first.
func (w *world) around(c models.Coordinate, radiusMeters float64, grow bool) []*fakeHotel {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := areaKey(c)
	if grow && !w.areas[key] {
		w.areas[key] = true
		w.generate(c, w.faker("area", key))
	}

	out := make([]*fakeHotel, 0, w.perArea)
	for _, h := range w.hotels {
		if geo.Distance(c, h.location) <= radiusMeters {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return geo.Distance(c, out[i].location) < geo.Distance(c, out[j].location)
	})
	return out
}

func (w *world) generate(center models.Coordinate, f *gofakeit.Faker) {
	for range w.perArea {
		w.nextID++
		h := &fakeHotel{
			placeID:    "mock_" + strings.ReplaceAll(f.UUID(), "-", "")[:20],
			bookingID:  w.nextID,
			name:       hotelName(f),
			address:    fmt.Sprintf("%s, %s", f.Street(), f.City()),
			rating:     math.Round(f.Float64Range(2.5, 5)*10) / 10,
			location:   offset(center, f.Float64Range(0, spreadMeters), f.Float64Range(0, 2*math.Pi)),
			currency:   "USD",
			freeCancel: f.Bool(),
		}
		// Roughly one hotel in six has no offer at all.
		h.listed = f.Number(1, 6) != 1
		for range f.Number(1, 3) {
			h.photos = append(h.photos, f.LetterN(32))
		}
		h.facilities = append([]string(nil), facilityPool...)
		f.ShuffleStrings(h.facilities)
		h.facilities = h.facilities[:f.Number(2, 5)]
		if f.Number(1, 10) > 1 {
			h.price = decimal.NewNullDecimal(decimal.NewFromFloat(f.Price(60, 900)).Round(2))
		}
		w.hotels = append(w.hotels, h)
	}
}

func hotelName(f *gofakeit.Faker) string {
	kinds := []string{"Hotel", "Inn", "Suites", "Resort", "Lodge", "Residence"}
	return fmt.Sprintf("%s %s %s", f.Adjective(), f.LastName(), kinds[f.Number(0, len(kinds)-1)])
}

// offset moves c by meters along bearing (radians) on a flat-earth approximation.
func offset(c models.Coordinate, meters, bearing float64) models.Coordinate {
	const metersPerDegree = 111_320.0
	dLat := meters * math.Cos(bearing) / metersPerDegree
	dLng := meters * math.Sin(bearing) / (metersPerDegree * math.Cos(c.Lat*math.Pi/180))
	return models.Coordinate{Lat: c.Lat + dLat, Lng: c.Lng + dLng}
}

// place resolves a free-text address to a stable fake location.
func (w *world) place(address string) models.AddressInfo {
	f := w.faker("geocode", strings.ToLower(strings.TrimSpace(address)))
	city := strings.TrimSpace(address)
	country := f.Country()
	return models.AddressInfo{
		FormattedAddress: fmt.Sprintf("%s, %s", city, country),
		City:             city,
		Country:          country,
		PlaceID:          "mock_geo_" + f.LetterN(12),
		Coordinate:       models.Coordinate{Lat: f.Float64Range(-60, 60), Lng: f.Float64Range(-170, 170)},
	}
}

func (w *world) reverse(c models.Coordinate) models.AddressInfo {
	f := w.faker("reverse", areaKey(c))
	city, country := f.City(), f.Country()
	return models.AddressInfo{
		FormattedAddress: fmt.Sprintf("%s, %s, %s", f.Street(), city, country),
		City:             city,
		Country:          country,
		PlaceID:          "mock_geo_" + f.LetterN(12),
		Coordinate:       c,
	}
}

func (w *world) reviews(placeID string) []models.Review {
	f := w.faker("reviews", placeID)
	out := make([]models.Review, 0, 5)
	for range f.Number(0, 5) {
		out = append(out, models.Review{
			Author: f.Name(),
			Rating: float64(f.Number(1, 5)),
			Text:   f.Sentence(12),
			Time:   f.DateRange(time.Now().AddDate(-2, 0, 0), time.Now()).UTC().Truncate(time.Second),
		})
	}
	return out
}
