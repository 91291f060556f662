// Package geo provides the planar and great-circle math used by zone
// placement and the trigger engine. All distances are meters.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// ErrMalformedPolyline is returned when an encoded polyline terminates
// mid-codeword or decodes to out-of-range coordinates.
var ErrMalformedPolyline = errors.New("malformed polyline")

const earthRadiusMeters = 6371000

// Valid reports whether p is a finite coordinate within latitude [-90, 90]
// and longitude [-180, 180].
func Valid(p Point) bool {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) ||
		math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// Haversine returns the great-circle distance between a and b in meters.
// Symmetric; zero iff the points are identical.
func Haversine(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Offset shifts origin by the given meters north and east using a local
// equirectangular approximation. Accurate enough for offsets under a few
// kilometers, which covers every synthesized point in this system.
func Offset(origin Point, northMeters, eastMeters float64) Point {
	dLat := northMeters / earthRadiusMeters * (180 / math.Pi)
	dLng := eastMeters / (earthRadiusMeters * math.Cos(toRadians(origin.Latitude))) * (180 / math.Pi)
	return Point{
		Latitude:  origin.Latitude + dLat,
		Longitude: origin.Longitude + dLng,
	}
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// DecodePolyline decodes a Google-encoded polyline (1e5 scale) into an
// ordered point sequence. An empty string decodes to an empty route.
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolyline, err)
	}
	points := make([]Point, len(coords))
	for i, c := range coords {
		points[i] = Point{Latitude: c[0], Longitude: c[1]}
		if !Valid(points[i]) {
			return nil, fmt.Errorf("%w: point %d out of range", ErrMalformedPolyline, i)
		}
	}
	return points, nil
}

// EncodePolyline is the inverse of DecodePolyline; used by the simulator
// tooling to script routes without a directions backend.
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
