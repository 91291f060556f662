// Package places wraps a places autocomplete/details API for destination
// resolution. Failures surface as error strings to the caller and never
// touch trigger-engine state.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// Suggestion is one autocomplete result.
type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// Detail resolves a place id to a coordinate.
type Detail struct {
	PlaceID  string    `json:"place_id"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
}

// Client calls the places backend.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a places client. Empty baseURL means the Google Places
// endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/place"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Autocomplete returns suggestions for a partial query, biased around the
// given location when provided.
func (c *Client) Autocomplete(ctx context.Context, query string, near *geo.Point) ([]Suggestion, error) {
	params := url.Values{}
	params.Set("input", query)
	params.Set("key", c.apiKey)
	if near != nil {
		params.Set("location", fmt.Sprintf("%f,%f", near.Latitude, near.Longitude))
		params.Set("radius", "50000")
	}

	var parsed struct {
		Status      string `json:"status"`
		Predictions []struct {
			PlaceID     string `json:"place_id"`
			Description string `json:"description"`
		} `json:"predictions"`
	}
	if err := c.getJSON(ctx, "/autocomplete/json", params, &parsed); err != nil {
		return nil, err
	}
	if parsed.Status != "OK" && parsed.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places autocomplete status %s", parsed.Status)
	}

	out := make([]Suggestion, len(parsed.Predictions))
	for i, p := range parsed.Predictions {
		out[i] = Suggestion{PlaceID: p.PlaceID, Description: p.Description}
	}
	return out, nil
}

// Details resolves a place id to its coordinate.
func (c *Client) Details(ctx context.Context, placeID string) (*Detail, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "name,geometry/location")
	params.Set("key", c.apiKey)

	var parsed struct {
		Status string `json:"status"`
		Result struct {
			Name     string `json:"name"`
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, "/details/json", params, &parsed); err != nil {
		return nil, err
	}
	if parsed.Status != "OK" {
		return nil, fmt.Errorf("places details status %s", parsed.Status)
	}

	location := geo.Point{
		Latitude:  parsed.Result.Geometry.Location.Lat,
		Longitude: parsed.Result.Geometry.Location.Lng,
	}
	if !geo.Valid(location) {
		return nil, fmt.Errorf("places details returned invalid location")
	}
	return &Detail{PlaceID: placeID, Name: parsed.Result.Name, Location: location}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build places request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("places API error: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode places response: %w", err)
	}
	return nil
}
