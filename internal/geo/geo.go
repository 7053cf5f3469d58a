// Package geo resolves city names to coordinates and measures great-circle distances.
package geo

import (
	"context"
	"math"
	"strings"

	"blooddoc-api-server/internal/models"
)

const earthRadiusKm = 6371.0

// Resolver turns a free-form city name into a point.
type Resolver interface {
	Resolve(ctx context.Context, city string) (models.GeoPoint, bool)
}

// StaticResolver looks cities up in a fixed table.
type StaticResolver struct {
	cities map[string]models.GeoPoint
}

// DefaultCities holds [lng, lat] for the supported cities.
var DefaultCities = map[string][2]float64{
	"chennai":   {80.2707, 13.0827},
	"bengaluru": {77.5946, 12.9716},
	"mumbai":    {72.8777, 19.0760},
	"delhi":     {77.2167, 28.6448},
	"hyderabad": {78.4867, 17.3850},
}

func NewStaticResolver(table map[string][2]float64) *StaticResolver {
	if table == nil {
		table = DefaultCities
	}
	cities := make(map[string]models.GeoPoint, len(table))
	for name, c := range table {
		cities[normalize(name)] = models.NewGeoPoint(c[0], c[1])
	}
	return &StaticResolver{cities: cities}
}

func (r *StaticResolver) Resolve(_ context.Context, city string) (models.GeoPoint, bool) {
	p, ok := r.cities[normalize(city)]
	return p, ok
}

// Cities returns the known city names.
func (r *StaticResolver) Cities() []string {
	names := make([]string, 0, len(r.cities))
	for n := range r.cities {
		names = append(names, n)
	}
	return names
}

func normalize(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// DistanceKm is the haversine distance between two points.
func DistanceKm(a, b models.GeoPoint) float64 {
	lat1 := toRad(a.Lat())
	lat2 := toRad(b.Lat())
	dLat := lat2 - lat1
	dLng := toRad(b.Lng() - a.Lng())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
