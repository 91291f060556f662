package zones

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kawanjalan/guidance/internal/lib/catalog"
	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// straightRoute builds n points heading north from origin, spacingMeters apart.
func straightRoute(origin geo.Point, n int, spacingMeters float64) []geo.Point {
	route := make([]geo.Point, n)
	for i := 0; i < n; i++ {
		route[i] = geo.Offset(origin, spacingMeters*float64(i), 0)
	}
	return route
}

func testCatalog(n int) *catalog.Catalog {
	templates := make([]catalog.Template, n)
	for i := range templates {
		templates[i] = catalog.Template{
			ID:      string(rune('a' + i)),
			Order:   i + 1,
			Message: "advisory " + string(rune('a'+i)),
			Modes:   []catalog.VehicleMode{catalog.ModeMotor},
		}
	}
	return catalog.New(templates)
}

func TestPlace_LongRoute_SpacingHolds(t *testing.T) {
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	route := straightRoute(origin, 50, 101) // ~5km
	dest := route[len(route)-1]

	placed := Place(route, origin, dest, catalog.ModeMotor, testCatalog(3))
	require.Len(t, placed, 3)

	// Margins: no zone center within 300m of the endpoints.
	for _, z := range placed {
		assert.GreaterOrEqual(t, geo.Haversine(z.Center, origin), MinDistanceFromStart)
		assert.GreaterOrEqual(t, geo.Haversine(z.Center, dest), MinDistanceFromEnd)
	}

	// Spacing rule between every pair: the route is long enough that the
	// last-resort relaxation must not engage.
	for i := 0; i < len(placed); i++ {
		for j := i + 1; j < len(placed); j++ {
			assert.GreaterOrEqual(t,
				geo.Haversine(placed[i].Center, placed[j].Center),
				MinDistanceBetweenZones,
				"zones %d and %d too close", i, j)
		}
	}
}

func TestPlace_RadiusGrowsWithIndex(t *testing.T) {
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	route := straightRoute(origin, 50, 101)

	placed := Place(route, origin, route[len(route)-1], catalog.ModeMotor, testCatalog(3))
	require.Len(t, placed, 3)
	assert.Equal(t, 120.0, placed[0].RadiusMeters)
	assert.Equal(t, 140.0, placed[1].RadiusMeters)
	assert.Equal(t, 160.0, placed[2].RadiusMeters)
}

func TestPlace_TemplatesBoundInCatalogOrder(t *testing.T) {
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	route := straightRoute(origin, 50, 101)

	placed := Place(route, origin, route[len(route)-1], catalog.ModeMotor, testCatalog(3))
	require.Len(t, placed, 3)
	assert.Equal(t, "a", placed[0].Template.ID)
	assert.Equal(t, "b", placed[1].Template.ID)
	assert.Equal(t, "c", placed[2].Template.ID)
}

func TestPlace_ShortRoute_ForceFillStillYieldsN(t *testing.T) {
	// 10 points ~100m apart: after the 300m margins only points 3..6 remain,
	// and the 350m rule admits a single strict pick from them. Force-fill
	// must top up to exactly 3 zones.
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	route := straightRoute(origin, 10, 101)
	dest := route[len(route)-1]

	placed := Place(route, origin, dest, catalog.ModeMotor, testCatalog(3))
	require.Len(t, placed, 3)

	for _, z := range placed {
		d := geo.Haversine(z.Center, origin)
		assert.GreaterOrEqual(t, d, 299.0, "zone center inside start margin")
		assert.LessOrEqual(t, d, 620.0, "zone center inside end margin")
	}
}

func TestPlace_TinyRoute_MarginRelaxation(t *testing.T) {
	// Route shorter than the combined margins: every point is dropped, so
	// placement falls back to the full point list.
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	route := straightRoute(origin, 5, 50) // 200m total
	dest := route[len(route)-1]

	placed := Place(route, origin, dest, catalog.ModeMotor, testCatalog(3))
	assert.Len(t, placed, 3)
}

func TestPlace_FewerCandidatesThanTemplates(t *testing.T) {
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	route := straightRoute(origin, 2, 101)

	placed := Place(route, origin, route[1], catalog.ModeMotor, testCatalog(5))
	assert.Len(t, placed, 2, "zone count capped by candidate count")
}

func TestPlace_EmptyInputs(t *testing.T) {
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}

	assert.Nil(t, Place(nil, origin, origin, catalog.ModeMotor, testCatalog(3)))

	route := straightRoute(origin, 10, 101)
	assert.Nil(t, Place(route, origin, route[9], catalog.ModeAngkutanUmum, testCatalog(3)),
		"no eligible templates for mode")
}

func TestSynthetic_OneZonePerTemplate(t *testing.T) {
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	templates := testCatalog(3).ForMode(catalog.ModeMotor)

	synth := Synthetic(origin, templates)
	require.Len(t, synth, 3)
	for i, z := range synth {
		assert.Equal(t, templates[i].ID, z.Template.ID)
		assert.Equal(t, origin, z.Center)
		assert.NotEmpty(t, z.ID)
	}

	assert.Empty(t, Synthetic(origin, nil))
}

func TestCountdownEngine_FiresSyntheticZonesInOrder(t *testing.T) {
	origin := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	engine := NewCountdownEngine(Synthetic(origin, testCatalog(2).ForMode(catalog.ModeMotor)), 2)

	// Samples far from the nominal center still fire on the step count.
	far := geo.PositionSample{Point: geo.Offset(origin, 50000, 50000)}

	_, fired := engine.Evaluate(far)
	assert.False(t, fired)
	firing, fired := engine.Evaluate(far)
	require.True(t, fired)
	assert.Equal(t, "a", firing.Zone.Template.ID)

	_, fired = engine.Evaluate(far)
	assert.False(t, fired)
	firing, fired = engine.Evaluate(far)
	require.True(t, fired)
	assert.Equal(t, "b", firing.Zone.Template.ID)
}

func TestFromHazards(t *testing.T) {
	tpl := catalog.Template{ID: "hazard", Message: "Hati-hati, ada laporan kecelakaan di depan."}
	points := []geo.Point{
		{Latitude: -6.21, Longitude: 106.85},
		{Latitude: 200, Longitude: 0}, // invalid, skipped
	}

	hz := FromHazards(points, tpl)
	require.Len(t, hz, 1)
	assert.Equal(t, HazardRadiusMeters, hz[0].RadiusMeters)
	assert.Equal(t, "hazard", hz[0].Template.ID)
	assert.NotEmpty(t, hz[0].ID)
}
