package zones

import (
	"github.com/kawanjalan/guidance/internal/lib/catalog"
	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// RouteZone is a circular geofence bound to one advisory. Created once per
// route and immutable afterwards; discarded when the route or mode changes.
type RouteZone struct {
	ID           string           `json:"id"`
	Center       geo.Point        `json:"center"`
	RadiusMeters float64          `json:"radius_meters"`
	Template     catalog.Template `json:"template"`
}

// Contains reports whether p falls inside the zone.
func (z RouteZone) Contains(p geo.Point) bool {
	return geo.Haversine(p, z.Center) <= z.RadiusMeters
}

// Firing is the result of a trigger evaluation: the zone that matched and
// the sample that matched it.
type Firing struct {
	Zone   RouteZone
	Sample geo.PositionSample
}
