package domain

import (
	"cmp"
	"hash/fnv"
	"slices"
	"strings"
)

const (
	// defaultPinScore stands in for a missing review score when sizing pins.
	defaultPinScore = 5.0
	// pinJitter is the max offset (degrees) applied to hotels placed on their
	// city centre, so they do not stack on one point.
	pinJitter = 0.015
)

// CityRanking is one city on the ranking map.
type CityRanking struct {
	CityID       *int    `json:"city_id,omitempty"`
	City         string  `json:"city"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	AvgTemp      float64 `json:"avg_temp"`
	TotalRainMM  float64 `json:"total_rain_mm"`
	ClimateIndex float64 `json:"climate_index"`
	WeatherScore float64 `json:"weather_score"`
	Hotels       int     `json:"hotels"`
}

// HotelPin is one hotel on the top-hotels map.
type HotelPin struct {
	City        string  `json:"city"`
	HotelName   string  `json:"hotel_name"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	// Exact is false when the pin sits on the jittered city centre.
	Exact bool `json:"exact"`
}

// RankCities collapses master rows to one entry per city, taking the first
// row's weather, ordered by weather score descending then city name. Cities
// without weather are left out since they cannot be placed on a map.
func RankCities(rows []MasterRow) []CityRanking {
	index := make(map[string]int)
	var out []CityRanking
	for _, r := range rows {
		if i, ok := index[r.Listing.City]; ok {
			out[i].Hotels++
			continue
		}
		if r.Weather == nil {
			continue
		}
		index[r.Listing.City] = len(out)
		out = append(out, CityRanking{
			CityID:       r.CityID,
			City:         r.Listing.City,
			Latitude:     r.Weather.Latitude,
			Longitude:    r.Weather.Longitude,
			AvgTemp:      r.Weather.AvgTemp,
			TotalRainMM:  r.Weather.TotalRainMM,
			ClimateIndex: r.Weather.ClimateIndex,
			WeatherScore: r.Weather.WeatherScore,
			Hotels:       1,
		})
	}
	slices.SortStableFunc(out, func(a, b CityRanking) int {
		if c := cmp.Compare(b.WeatherScore, a.WeatherScore); c != 0 {
			return c
		}
		return strings.Compare(a.City, b.City)
	})
	return out
}

// TopHotels picks the best hotels in the topCities best-ranked cities, at most
// perCity each, ordered by city then score. Missing scores count as 5.0 and
// hotels without coordinates are pinned near their city centre.
func TopHotels(rows []MasterRow, topCities, perCity int) []HotelPin {
	ranking := RankCities(rows)
	if len(ranking) > topCities {
		ranking = ranking[:topCities]
	}
	selected := make(map[string]struct{}, len(ranking))
	for _, c := range ranking {
		selected[c.City] = struct{}{}
	}

	var pins []HotelPin
	for _, r := range rows {
		if _, ok := selected[r.Listing.City]; !ok || r.Weather == nil {
			continue
		}
		pin := HotelPin{
			City:      r.Listing.City,
			HotelName: r.Listing.HotelName,
			Score:     defaultPinScore,
		}
		if r.Score != nil {
			pin.Score = *r.Score
		}
		if r.Listing.Description != nil {
			pin.Description = *r.Listing.Description
		}
		if r.Listing.HasCoordinates() {
			pin.Latitude, pin.Longitude, pin.Exact = *r.Listing.HotelLat, *r.Listing.HotelLon, true
		} else {
			dLat, dLon := jitter(r.Listing.City + "|" + r.Listing.HotelName)
			pin.Latitude = r.Weather.Latitude + dLat
			pin.Longitude = r.Weather.Longitude + dLon
		}
		pins = append(pins, pin)
	}

	slices.SortStableFunc(pins, func(a, b HotelPin) int {
		if c := strings.Compare(a.City, b.City); c != 0 {
			return c
		}
		return cmp.Compare(b.Score, a.Score)
	})

	out := pins[:0]
	counts := make(map[string]int)
	for _, p := range pins {
		if counts[p.City] >= perCity {
			continue
		}
		counts[p.City]++
		out = append(out, p)
	}
	return out
}

// jitter derives a stable offset in [-pinJitter, pinJitter] for both axes, so
// re-rendering the same data gives the same map.
func jitter(key string) (float64, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum64()
	lat := float64(sum&0xffffffff) / float64(0xffffffff)
	lon := float64(sum>>32) / float64(0xffffffff)
	return (lat*2 - 1) * pinJitter, (lon*2 - 1) * pinJitter
}
