package geo

import (
	"math"

	"github.com/DeafMist/hotel-radar/internal/models"
)

// EarthRadiusMeters is the mean earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b models.Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Centroid averages points. Longitudes are averaged as offsets from the first
// point so a set straddling the antimeridian stays on its side of the globe.
// It returns the zero coordinate for an empty slice.
func Centroid(points []models.Coordinate) models.Coordinate {
	if len(points) == 0 {
		return models.Coordinate{}
	}
	ref := points[0].Lng
	var lat, offset float64
	for _, p := range points {
		lat += p.Lat
		offset += wrapLongitude(p.Lng - ref)
	}
	n := float64(len(points))
	return models.Coordinate{Lat: lat / n, Lng: wrapLongitude(ref + offset/n)}
}

// wrapLongitude maps deg into (-180, 180].
func wrapLongitude(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
