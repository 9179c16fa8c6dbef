package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DailyForecast is one city's forecast for one day, as recorded by the weather
// collector. Rain and humidity default to 0 when the API omits them.
type DailyForecast struct {
	City               string    `json:"city"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	DayOffset          int       `json:"day_offset"`
	Date               time.Time `json:"date"`
	TempDay            float64   `json:"temp_day"`
	TempMin            float64   `json:"temp_min"`
	TempMax            float64   `json:"temp_max"`
	WeatherMain        string    `json:"weather_main"`
	WeatherDescription string    `json:"weather_description"`
	Pop                float64   `json:"pop"`
	Rain               float64   `json:"rain"`
	Humidity           float64   `json:"humidity"`
}

// HotelListing is one scraped hotel. Optional fields are nil when the scraper
// or the enrichment stage could not fill them.
type HotelListing struct {
	City        string   `json:"city"`
	HotelName   string   `json:"hotel_name"`
	URL         *string  `json:"url,omitempty"`
	Score       string   `json:"score"`
	Description *string  `json:"description,omitempty"`
	HotelLat    *float64 `json:"hotel_lat,omitempty"`
	HotelLon    *float64 `json:"hotel_lon,omitempty"`
}

// ReviewScore returns the numeric review score, or nil when the scraped text
// is missing or not a finite decimal number ("N/A", "Inf", "0x1p3").
func (h HotelListing) ReviewScore() *float64 {
	s := strings.TrimSpace(h.Score)
	if s == "" || strings.ContainsAny(s, "xX") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// HotelDetails is what a hotel page adds to a listing. Lat and Lon are nil
// when the page carries no coordinates.
type HotelDetails struct {
	Lat         *float64
	Lon         *float64
	Description string
}

// DescriptionUnavailable marks a listing whose hotel page had no description.
const DescriptionUnavailable = "Description not available"

// NeedsEnrichment reports whether a hotel page visit could still add
// coordinates or a description.
func (h HotelListing) NeedsEnrichment() bool {
	hasDescription := h.Description != nil && *h.Description != DescriptionUnavailable
	return !h.HasCoordinates() || !hasDescription
}

// HasCoordinates reports whether both hotel coordinates are known.
func (h HotelListing) HasCoordinates() bool {
	return h.HotelLat != nil && h.HotelLon != nil
}

// CityWeatherSummary aggregates the planning-window days of one city.
type CityWeatherSummary struct {
	City         string  `json:"city"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	AvgTemp      float64 `json:"avg_temp"`
	TotalRainMM  float64 `json:"total_rain_mm"`
	ClimateIndex float64 `json:"climate_index"`
	WeatherScore float64 `json:"weather_score"`
	Days         int     `json:"days"`
}

// MasterRow is a listing joined with its city's weather summary. Weather is nil
// when the city had no forecast in the planning window; CityID is nil when the
// city is not in the canonical list.
type MasterRow struct {
	CityID  *int                `json:"city_id"`
	Listing HotelListing        `json:"listing"`
	Score   *float64            `json:"score"`
	Weather *CityWeatherSummary `json:"weather"`
}

// WeatherScore returns the city weather score, nil when unmatched.
func (r MasterRow) WeatherScore() *float64 {
	if r.Weather == nil {
		return nil
	}
	v := r.Weather.WeatherScore
	return &v
}
