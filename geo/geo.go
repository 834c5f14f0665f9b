// Package geo resolves city names to coordinates and precomputes the
// nearby-city filters used by matching.
package geo

import (
	"math"
	"strings"

	"leadmarket/models"
)

// EarthRadiusMiles is the mean earth radius used for haversine distances.
const EarthRadiusMiles = 3959.0

// Coordinates is a lat/lng pair in degrees.
type Coordinates struct {
	Lat float64
	Lng float64
}

// City is an entry of the city database.
type City struct {
	Name  string
	State string
	Coordinates
}

// HaversineMiles returns the great-circle distance between a and b.
func HaversineMiles(a, b Coordinates) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusMiles * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Contains reports whether c lies inside box, edges included.
func Contains(box *models.BoundingBox, c Coordinates) bool {
	if box == nil {
		return false
	}
	return c.Lat >= box.MinLat && c.Lat <= box.MaxLat &&
		c.Lng >= box.MinLng && c.Lng <= box.MaxLng
}

// BoundingBoxOf returns the envelope of the given points, or nil for none.
func BoundingBoxOf(points ...Coordinates) *models.BoundingBox {
	if len(points) == 0 {
		return nil
	}
	box := &models.BoundingBox{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLng: points[0].Lng, MaxLng: points[0].Lng,
	}
	for _, p := range points[1:] {
		box.MinLat = math.Min(box.MinLat, p.Lat)
		box.MaxLat = math.Max(box.MaxLat, p.Lat)
		box.MinLng = math.Min(box.MinLng, p.Lng)
		box.MaxLng = math.Max(box.MaxLng, p.Lng)
	}
	return box
}

const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Geohash encodes a coordinate at the given precision. Three characters
// cover roughly a 78 km cell.
func Geohash(lat, lng float64, precision int) string {
	var sb strings.Builder
	latMin, latMax := -90.0, 90.0
	lngMin, lngMax := -180.0, 180.0
	bit, ch := 0, 0

	for sb.Len() < precision {
		if bit%2 == 0 {
			mid := (lngMin + lngMax) / 2
			if lng > mid {
				ch |= 1 << (4 - bit%5)
				lngMin = mid
			} else {
				lngMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat > mid {
				ch |= 1 << (4 - bit%5)
				latMin = mid
			} else {
				latMax = mid
			}
		}
		bit++
		if bit%5 == 0 {
			sb.WriteByte(geohashBase32[ch])
			ch = 0
		}
	}
	return sb.String()
}

// CoordinatesOf returns the coordinates behind a pair of optional fields.
func CoordinatesOf(lat, lng *float64) (Coordinates, bool) {
	if lat == nil || lng == nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *lat, Lng: *lng}, true
}
