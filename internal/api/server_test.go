package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/cache"
	"github.com/kawanjalan/guidance/internal/clients/directions"
	"github.com/kawanjalan/guidance/internal/config"
	"github.com/kawanjalan/guidance/internal/lib/catalog"
	"github.com/kawanjalan/guidance/internal/lib/geo"
	"github.com/kawanjalan/guidance/internal/lib/overlay"
	"github.com/kawanjalan/guidance/internal/services"
)

var jakarta = geo.Point{Latitude: -6.2088, Longitude: 106.8456}

type stubRoutes struct {
	route *directions.Route
}

func (s *stubRoutes) ComputeRoute(_ context.Context, origin, destination geo.Point, mode catalog.VehicleMode) (*directions.Route, error) {
	if s.route == nil {
		return nil, directions.ErrRouteUnavailable
	}
	return s.route, nil
}

func newTestServer(t *testing.T) (*Server, *services.GuidanceService) {
	t.Helper()

	route := make([]geo.Point, 10)
	for i := range route {
		route[i] = geo.Offset(jakarta, float64(i)*101, 0)
	}

	cfg := config.Default()
	cfg.Simulation.Modes = nil // no feed during API tests

	arb := overlay.New(overlay.DefaultConfig(), nil, nil, zap.NewNop())
	svc := services.NewGuidanceService(cfg, &stubRoutes{route: &directions.Route{
		EncodedPolyline: geo.EncodePolyline(route),
	}}, cache.New(), arb, jakarta, catalog.ModeMotor, zap.NewNop())
	t.Cleanup(svc.Close)

	return NewServer(svc, zap.NewNop()), svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status services.SessionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Zero(t, status.ZoneCount)
	assert.Nil(t, status.Destination)

	dest := geo.Offset(jakarta, 909, 0)
	rec = doJSON(t, router, http.MethodPost, "/api/v1/session/destination",
		map[string]float64{"lat": dest.Latitude, "lng": dest.Longitude})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.NotZero(t, status.ZoneCount)
	require.NotNil(t, status.Destination)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var zonesResp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &zonesResp))
	assert.Equal(t, status.ZoneCount, zonesResp.Count)
}

func TestSetModeValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/session/mode", map[string]string{"mode": "pesawat"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/session/mode", map[string]string{"mode": "mobil"})
	require.Equal(t, http.StatusOK, rec.Code)
	var status services.SessionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, catalog.ModeMobil, status.Mode)
}

func TestSilentToggle(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/session/silent", map[string]bool{"silent": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var status services.SessionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Silent)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/session/silent", map[string]bool{"silent": false})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Silent)
}

func TestDestinationRequiresCoordinatesOrPlace(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/session/destination", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidDestinationRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/session/destination",
		map[string]float64{"lat": 99, "lng": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlaceSearchRequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/places/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDismissEndpoint(t *testing.T) {
	srv, svc := newTestServer(t)
	router := srv.Router()

	svc.SetSilent(true)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/session/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status services.SessionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Overlay.Active)
}
