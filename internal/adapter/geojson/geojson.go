// Package geojson exports the city ranking and top hotels as GeoJSON feature
// collections that map tools (kepler.gl, QGIS, geojson.io) can load directly.
package geojson

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/couchcryptid/destination-etl/internal/adapter/atomicfile"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

// FeatureCollection is a GeoJSON root object.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON point with free-form properties.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Point          `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Point holds [longitude, latitude] as GeoJSON requires.
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func point(lat, lon float64) Point {
	return Point{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// Build turns a ranking and hotel pins into one collection. City features
// carry layer=city and their rank; hotel features carry layer=hotel.
func Build(ranking []domain.CityRanking, pins []domain.HotelPin) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(ranking)+len(pins))}
	for i, c := range ranking {
		props := map[string]any{
			"layer":         "city",
			"rank":          i + 1,
			"city":          c.City,
			"avg_temp":      c.AvgTemp,
			"total_rain_mm": c.TotalRainMM,
			"climate_index": c.ClimateIndex,
			"weather_score": c.WeatherScore,
			"hotels":        c.Hotels,
		}
		if c.CityID != nil {
			props["city_id"] = *c.CityID
		}
		fc.Features = append(fc.Features, Feature{Type: "Feature", Geometry: point(c.Latitude, c.Longitude), Properties: props})
	}
	for _, p := range pins {
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: point(p.Latitude, p.Longitude),
			Properties: map[string]any{
				"layer":       "hotel",
				"city":        p.City,
				"hotel_name":  p.HotelName,
				"score":       p.Score,
				"description": p.Description,
				"exact":       p.Exact,
			},
		})
	}
	return fc
}

// Encode writes fc as indented JSON.
func Encode(w io.Writer, fc FeatureCollection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

// WriteFile replaces path with the collection.
func WriteFile(path string, fc FeatureCollection) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return Encode(w, fc)
	})
}

// Writer is the pipeline sink exporting the latest ranking to a file.
type Writer struct {
	path          string
	topCities     int
	hotelsPerCity int
}

// NewWriter exports the full ranking plus the best hotelsPerCity hotels of the
// topCities best cities.
func NewWriter(path string, topCities, hotelsPerCity int) *Writer {
	return &Writer{path: path, topCities: topCities, hotelsPerCity: hotelsPerCity}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "geojson" }

// Publish derives the map layers from ranked rows and writes them.
func (w *Writer) Publish(_ context.Context, rows []domain.MasterRow, _ string, _ time.Time) error {
	fc := Build(domain.RankCities(rows), domain.TopHotels(rows, w.topCities, w.hotelsPerCity))
	return WriteFile(w.path, fc)
}
