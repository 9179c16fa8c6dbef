package domain

import (
	"cmp"
	"slices"
	"strings"
)

// Join left-joins listings onto city summaries by exact city name and attaches
// the canonical city id. The output has exactly one row per listing, in input
// order.
func Join(listings []HotelListing, summaries []CityWeatherSummary, cities Cities) []MasterRow {
	byCity := make(map[string]*CityWeatherSummary, len(summaries))
	for i := range summaries {
		byCity[summaries[i].City] = &summaries[i]
	}

	rows := make([]MasterRow, len(listings))
	for i, l := range listings {
		row := MasterRow{Listing: l, Score: l.ReviewScore()}
		if s, ok := byCity[l.City]; ok {
			w := *s
			row.Weather = &w
		}
		if id, ok := cities.ID(l.City); ok {
			row.CityID = &id
		}
		rows[i] = row
	}
	return rows
}

// Rank sorts rows in place: weather score descending, city ascending, review
// score descending. Missing values sort last for every key and the sort is
// stable, so remaining ties keep input order.
func Rank(rows []MasterRow) {
	slices.SortStableFunc(rows, compareRows)
}

func compareRows(a, b MasterRow) int {
	if c := compareDescNullsLast(a.WeatherScore(), b.WeatherScore()); c != 0 {
		return c
	}
	if c := strings.Compare(a.Listing.City, b.Listing.City); c != 0 {
		return c
	}
	return compareDescNullsLast(a.Score, b.Score)
}

func compareDescNullsLast(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*b, *a)
}

// IsRanked reports whether rows already satisfy the ranking order.
func IsRanked(rows []MasterRow) bool {
	return slices.IsSortedFunc(rows, compareRows)
}
