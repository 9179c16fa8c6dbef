package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func reportRows() []domain.MasterRow {
	nice := &domain.CityWeatherSummary{City: "Nice", Latitude: 43.7, Longitude: 7.26, AvgTemp: 24, WeatherScore: 92, ClimateIndex: 48}
	lyon := &domain.CityWeatherSummary{City: "Lyon", Latitude: 45.76, Longitude: 4.83, AvgTemp: 18, TotalRainMM: 3, WeatherScore: 61, ClimateIndex: 37}
	return []domain.MasterRow{
		{CityID: ptr(7), Listing: domain.HotelListing{City: "Nice", HotelName: "Azur", Score: "9.0", HotelLat: ptr(43.69), HotelLon: ptr(7.25)}, Score: ptr(9.0), Weather: nice},
		{CityID: ptr(7), Listing: domain.HotelListing{City: "Nice", HotelName: "Mer", Score: "N/A"}, Weather: nice},
		{CityID: ptr(17), Listing: domain.HotelListing{City: "Lyon", HotelName: "Soie", Score: "8.0"}, Score: ptr(8.0), Weather: lyon},
		{Listing: domain.HotelListing{City: "Gotham", HotelName: "Wayne"}},
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, reportRows(), reportOptions{topCities: 1, perCity: 20}))
	out := buf.String()
	lower := strings.ToLower(out)

	assert.Contains(t, lower, "destinations by weather score")
	assert.Less(t, strings.Index(out, "Nice"), strings.Index(out, "Lyon"), "ranked by weather score")
	assert.NotContains(t, out, "Gotham", "cities without weather are not ranked")
	assert.Contains(t, lower, "top hotels")
	assert.Contains(t, out, "Azur")
	assert.Contains(t, out, "(near centre)", "Mer has no coordinates")
	assert.NotContains(t, out, "Soie", "only the top city's hotels are listed")
}

func TestWriteReport_NoHotels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, reportRows(), reportOptions{topCities: 5, perCity: 20, noHotels: true}))

	assert.Contains(t, buf.String(), "Lyon")
	assert.NotContains(t, strings.ToLower(buf.String()), "top hotels")
}

func TestWriteReport_GeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.geojson")

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, reportRows(), reportOptions{topCities: 5, perCity: 20, noHotels: true, geojsonOut: path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 5, "two cities and three hotels")
	assert.Contains(t, buf.String(), path)
}
