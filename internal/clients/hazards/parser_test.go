package hazards

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-kml/v2"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// fixtureFeed builds a small hazard feed the way the upstream service would.
func fixtureFeed(t *testing.T) []byte {
	t.Helper()
	doc := kml.KML(
		kml.Document(
			kml.Placemark(
				kml.Name("Kecelakaan di Jalan Sudirman"),
				kml.Description("<b>Kecelakaan</b> &amp; antrian panjang"),
				kml.Point(kml.Coordinates(kml.Coordinate{Lon: 106.8456, Lat: -6.2088})),
			),
			kml.Folder(
				kml.Placemark(
					kml.Name("Banjir di Kemang"),
					kml.Description("Genangan air ~40cm"),
					kml.Point(kml.Coordinates(kml.Coordinate{Lon: 106.8133, Lat: -6.2600})),
				),
				kml.Placemark(
					kml.Name("Tanpa koordinat"),
				),
			),
		),
	)

	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))
	return buf.Bytes()
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	payload := fixtureFeed(t)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
		_, _ = w.Write(payload)
	}))
}

func TestFetch(t *testing.T) {
	server := feedServer(t)
	defer server.Close()

	hazards, err := NewFeedParser(server.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, hazards, 2, "placemark without coordinates skipped")

	assert.Equal(t, "Kecelakaan di Jalan Sudirman", hazards[0].Name)
	assert.Equal(t, "Kecelakaan & antrian panjang", hazards[0].Description,
		"HTML stripped, entities decoded")
	assert.InDelta(t, -6.2088, hazards[0].Location.Latitude, 1e-6)
	assert.InDelta(t, 106.8456, hazards[0].Location.Longitude, 1e-6)

	assert.Equal(t, "Banjir di Kemang", hazards[1].Name)
}

func TestFetchNearRoute(t *testing.T) {
	server := feedServer(t)
	defer server.Close()

	// Route passes close to the Sudirman hazard only.
	route := []geo.Point{
		{Latitude: -6.2080, Longitude: 106.8450},
		{Latitude: -6.2100, Longitude: 106.8470},
	}

	near, err := NewFeedParser(server.URL).FetchNearRoute(context.Background(), route, 500)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, "Kecelakaan di Jalan Sudirman", near[0].Name)
}

func TestFetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFeedParser(server.URL).Fetch(context.Background())
	assert.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	_, err := NewFeedParser("http://unused").parse([]byte("not xml at all <"))
	assert.Error(t, err)
}
