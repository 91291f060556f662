// Package directions wraps a Routes-style directions API. The guidance
// session only needs the encoded polyline between two points; absence of a
// route is a degraded-but-valid outcome, not a crash.
package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kawanjalan/guidance/internal/lib/catalog"
	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// ErrRouteUnavailable means the backend returned no usable route. Callers
// degrade to an empty zone set.
var ErrRouteUnavailable = errors.New("route unavailable")

// Route is the processed directions response.
type Route struct {
	EncodedPolyline string `json:"encoded_polyline"`
	DistanceMeters  int    `json:"distance_meters"`
	DurationSecs    int    `json:"duration_secs"`
}

// Client calls the directions backend.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the given backend. baseURL without trailing
// slash; empty means the Google Routes endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://routes.googleapis.com"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// travelModes maps vehicle modes onto the API's travel modes.
var travelModes = map[catalog.VehicleMode]string{
	catalog.ModeMotor:        "TWO_WHEELER",
	catalog.ModeMobil:        "DRIVE",
	catalog.ModeSepeda:       "BICYCLE",
	catalog.ModeJalanKaki:    "WALK",
	catalog.ModeAngkutanUmum: "TRANSIT",
}

// ComputeRoute requests a route between origin and destination. Any backend
// failure, rate limit, or empty result maps to ErrRouteUnavailable.
func (c *Client) ComputeRoute(ctx context.Context, origin, destination geo.Point, mode catalog.VehicleMode) (*Route, error) {
	travelMode, ok := travelModes[mode]
	if !ok {
		travelMode = "DRIVE"
	}

	requestBody := map[string]interface{}{
		"origin": map[string]interface{}{
			"location": map[string]interface{}{
				"latLng": map[string]interface{}{
					"latitude":  origin.Latitude,
					"longitude": origin.Longitude,
				},
			},
		},
		"destination": map[string]interface{}{
			"location": map[string]interface{}{
				"latLng": map[string]interface{}{
					"latitude":  destination.Latitude,
					"longitude": destination.Longitude,
				},
			},
		},
		"travelMode": travelMode,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/directions/v2:computeRoutes", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("build directions request: %w", err)
	}

	// The API rejects requests without an explicit field mask.
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRouteUnavailable, resp.StatusCode, string(body))
	}

	var parsed routesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRouteUnavailable, err)
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("%w: no routes in response", ErrRouteUnavailable)
	}

	r := parsed.Routes[0]
	duration, err := parseSeconds(r.Duration)
	if err != nil {
		duration = 0
	}
	return &Route{
		EncodedPolyline: r.Polyline.EncodedPolyline,
		DistanceMeters:  r.DistanceMeters,
		DurationSecs:    duration,
	}, nil
}

type routesResponse struct {
	Routes []struct {
		Duration       string `json:"duration"`
		DistanceMeters int    `json:"distanceMeters"`
		Polyline       struct {
			EncodedPolyline string `json:"encodedPolyline"`
		} `json:"polyline"`
	} `json:"routes"`
}

// parseSeconds parses the API's "450s" duration format.
func parseSeconds(s string) (int, error) {
	if len(s) < 2 || s[len(s)-1] != 's' {
		return 0, fmt.Errorf("unexpected duration format %q", s)
	}
	var secs int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &secs); err != nil {
		return 0, err
	}
	return secs, nil
}
