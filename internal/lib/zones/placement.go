// Package zones places advisory geofences along a route and evaluates
// position samples against them.
package zones

import (
	"github.com/google/uuid"

	"github.com/kawanjalan/guidance/internal/lib/catalog"
	"github.com/kawanjalan/guidance/internal/lib/geo"
)

const (
	// MinDistanceFromStart drops candidate points near the origin so the
	// first advisory does not fire the moment the trip starts.
	MinDistanceFromStart = 300.0

	// MinDistanceFromEnd keeps advisories away from the destination.
	MinDistanceFromEnd = 300.0

	// MinDistanceBetweenZones is the preferred spacing between zone centers.
	MinDistanceBetweenZones = 350.0

	baseRadiusMeters = 120.0
	radiusStepMeters = 20.0
)

// HazardRadiusMeters is the fixed radius for zones built from hazard-feed
// points, which carry no index-based radius growth.
const HazardRadiusMeters = 150.0

// Place selects zone centers along route and binds one catalog template to
// each. Placement degrades in three passes so that any route with candidate
// points yields exactly min(#templates, #candidates) zones:
//
//  1. stride through candidates, honoring the spacing rule
//  2. dense scan of every candidate, same spacing rule
//  3. force-fill by index, spacing rule waived
//
// The candidate list drops points closer than the start/end margins; if that
// leaves fewer points than templates, the full route is used instead.
func Place(route []geo.Point, origin, destination geo.Point, mode catalog.VehicleMode, cat *catalog.Catalog) []RouteZone {
	templates := cat.ForMode(mode)
	if len(templates) == 0 || len(route) == 0 {
		return nil
	}

	candidates := eligibleCandidates(route, origin, destination)
	if len(candidates) < len(templates) {
		candidates = route
	}

	n := len(templates)
	if len(candidates) < n {
		n = len(candidates)
	}

	selected := selectCenters(candidates, n)

	result := make([]RouteZone, len(selected))
	for i, center := range selected {
		result[i] = RouteZone{
			ID:           uuid.NewString(),
			Center:       center,
			RadiusMeters: baseRadiusMeters + radiusStepMeters*float64(i),
			Template:     templates[i],
		}
	}
	return result
}

// Synthetic builds one zone per template for feeds that have no route to
// place against. The countdown trigger mode ignores containment, so the
// shared center and radius are nominal.
func Synthetic(center geo.Point, templates []catalog.Template) []RouteZone {
	result := make([]RouteZone, len(templates))
	for i, t := range templates {
		result[i] = RouteZone{
			ID:           uuid.NewString(),
			Center:       center,
			RadiusMeters: baseRadiusMeters,
			Template:     t,
		}
	}
	return result
}

// FromHazards converts externally reported hazard points into extra zones
// bound to a single template. Appended after placed zones so they are
// evaluated last.
func FromHazards(points []geo.Point, template catalog.Template) []RouteZone {
	result := make([]RouteZone, 0, len(points))
	for _, p := range points {
		if !geo.Valid(p) {
			continue
		}
		result = append(result, RouteZone{
			ID:           uuid.NewString(),
			Center:       p,
			RadiusMeters: HazardRadiusMeters,
			Template:     template,
		})
	}
	return result
}

func eligibleCandidates(route []geo.Point, origin, destination geo.Point) []geo.Point {
	var out []geo.Point
	for _, p := range route {
		if geo.Haversine(p, origin) < MinDistanceFromStart {
			continue
		}
		if geo.Haversine(p, destination) < MinDistanceFromEnd {
			continue
		}
		out = append(out, p)
	}
	return out
}

func selectCenters(candidates []geo.Point, n int) []geo.Point {
	selected := make([]geo.Point, 0, n)
	used := make([]bool, len(candidates))

	accept := func(i int, enforceSpacing bool) bool {
		if used[i] || len(selected) >= n {
			return false
		}
		if enforceSpacing {
			for _, s := range selected {
				if geo.Haversine(candidates[i], s) < MinDistanceBetweenZones {
					return false
				}
			}
		}
		used[i] = true
		selected = append(selected, candidates[i])
		return true
	}

	// Pass one: stride for an even spread along the route.
	step := len(candidates) / n
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(candidates) && len(selected) < n; i += step {
		accept(i, true)
	}

	// Pass two: dense scan with the spacing rule still in force.
	for i := 0; i < len(candidates) && len(selected) < n; i++ {
		accept(i, true)
	}

	// Pass three: spacing waived. Only reachable when strict placement is
	// infeasible for the remaining slots.
	for i := 0; i < len(candidates) && len(selected) < n; i++ {
		accept(i, false)
	}

	return selected
}
