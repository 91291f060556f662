package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

func TestAutocomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/autocomplete/json", r.URL.Path)
		assert.Equal(t, "stasiun gambir", r.URL.Query().Get("input"))
		assert.NotEmpty(t, r.URL.Query().Get("location"), "location bias forwarded")

		_, _ = w.Write([]byte(`{"status":"OK","predictions":[
			{"place_id":"p1","description":"Stasiun Gambir, Jakarta"},
			{"place_id":"p2","description":"Stasiun Gambir Parkir"}]}`))
	}))
	defer server.Close()

	client := NewClient("k", server.URL)
	near := geo.Point{Latitude: -6.2088, Longitude: 106.8456}
	suggestions, err := client.Autocomplete(context.Background(), "stasiun gambir", &near)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "p1", suggestions[0].PlaceID)
}

func TestAutocomplete_ZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","predictions":[]}`))
	}))
	defer server.Close()

	suggestions, err := NewClient("k", server.URL).Autocomplete(context.Background(), "xyzzy", nil)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/json", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("place_id"))

		_, _ = w.Write([]byte(`{"status":"OK","result":{"name":"Stasiun Gambir",
			"geometry":{"location":{"lat":-6.1767,"lng":106.8306}}}}`))
	}))
	defer server.Close()

	detail, err := NewClient("k", server.URL).Details(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Stasiun Gambir", detail.Name)
	assert.InDelta(t, -6.1767, detail.Location.Latitude, 1e-6)
}

func TestDetails_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND"}`))
	}))
	defer server.Close()

	_, err := NewClient("k", server.URL).Details(context.Background(), "nope")
	assert.Error(t, err)
}
