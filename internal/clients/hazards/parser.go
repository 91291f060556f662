// Package hazards pulls a KML feed of reported road hazards (accidents,
// floods, closures) and filters them to the vicinity of the active route.
// Hazards near the route become extra advisory zones.
package hazards

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// Hazard is one parsed placemark.
type Hazard struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    geo.Point `json:"location"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// FeedParser downloads and parses a hazard KML feed.
type FeedParser struct {
	feedURL    string
	httpClient *http.Client
}

// NewFeedParser builds a parser for the given feed URL.
func NewFeedParser(feedURL string) *FeedParser {
	return &FeedParser{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// kmlDocument mirrors the subset of KML the feed carries. Placemarks may sit
// directly under the document or inside folders.
type kmlDocument struct {
	XMLName  xml.Name `xml:"kml"`
	Document struct {
		Placemarks []kmlPlacemark `xml:"Placemark"`
		Folders    []struct {
			Placemarks []kmlPlacemark `xml:"Placemark"`
		} `xml:"Folder"`
	} `xml:"Document"`
}

type kmlPlacemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Point       struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
}

// Fetch downloads and parses the feed.
func (p *FeedParser) Fetch(ctx context.Context) ([]Hazard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build hazard feed request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download hazard feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hazard feed returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read hazard feed: %w", err)
	}
	return p.parse(data)
}

// FetchNearRoute downloads the feed and keeps only hazards within
// radiusMeters of any route point.
func (p *FeedParser) FetchNearRoute(ctx context.Context, route []geo.Point, radiusMeters float64) ([]Hazard, error) {
	all, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	var near []Hazard
	for _, h := range all {
		for _, point := range route {
			if geo.Haversine(h.Location, point) <= radiusMeters {
				near = append(near, h)
				break
			}
		}
	}
	return near, nil
}

func (p *FeedParser) parse(data []byte) ([]Hazard, error) {
	var doc kmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse hazard KML: %w", err)
	}

	now := time.Now()
	placemarks := doc.Document.Placemarks
	for _, folder := range doc.Document.Folders {
		placemarks = append(placemarks, folder.Placemarks...)
	}

	var hazards []Hazard
	for _, pm := range placemarks {
		location, ok := parseCoordinates(pm.Point.Coordinates)
		if !ok {
			continue
		}
		hazards = append(hazards, Hazard{
			Name:        strings.TrimSpace(pm.Name),
			Description: stripHTML(pm.Description),
			Location:    location,
			FetchedAt:   now,
		})
	}
	return hazards, nil
}

// parseCoordinates reads the first "lon,lat[,alt]" tuple of a KML
// coordinates string.
func parseCoordinates(s string) (geo.Point, bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return geo.Point{}, false
	}
	var lon, lat float64
	n, err := fmt.Sscanf(strings.ReplaceAll(fields[0], ",", " "), "%f %f", &lon, &lat)
	if err != nil || n != 2 {
		return geo.Point{}, false
	}
	point := geo.Point{Latitude: lat, Longitude: lon}
	if !geo.Valid(point) {
		return geo.Point{}, false
	}
	return point, true
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML flattens a CDATA description to plain text.
func stripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
