package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(city, hotel, score string) HotelListing {
	return HotelListing{City: city, HotelName: hotel, Score: score}
}

func testCities(t *testing.T, names ...string) Cities {
	t.Helper()
	c, err := NewCities(names)
	require.NoError(t, err)
	return c
}

func TestJoin_PreservesListings(t *testing.T) {
	cities := testCities(t, "Nice", "Arles")
	listings := []HotelListing{
		listing("Nice", "A", "8.1"),
		listing("Atlantis", "B", "9.9"),
		listing("Arles", "C", "N/A"),
		listing("Nice", "D", ""),
	}
	summaries := []CityWeatherSummary{{City: "Nice", WeatherScore: 80}}

	rows := Join(listings, summaries, cities)

	require.Len(t, rows, len(listings))
	for i := range listings {
		assert.Equal(t, listings[i], rows[i].Listing, "row %d keeps its listing", i)
	}

	require.NotNil(t, rows[0].CityID)
	assert.Equal(t, 1, *rows[0].CityID)
	require.NotNil(t, rows[0].Weather)
	assert.Equal(t, 80.0, rows[0].Weather.WeatherScore)
	require.NotNil(t, rows[0].Score)
	assert.Equal(t, 8.1, *rows[0].Score)

	assert.Nil(t, rows[1].CityID, "unknown city has no id")
	assert.Nil(t, rows[1].Weather)

	require.NotNil(t, rows[2].CityID)
	assert.Equal(t, 2, *rows[2].CityID)
	assert.Nil(t, rows[2].Weather, "city without forecasts keeps null weather")
	assert.Nil(t, rows[2].Score, "N/A score is null")

	assert.Nil(t, rows[3].Score)
}

func TestJoin_DoesNotAliasSummaries(t *testing.T) {
	summaries := []CityWeatherSummary{{City: "Nice", WeatherScore: 80}}
	rows := Join([]HotelListing{listing("Nice", "A", "8")}, summaries, testCities(t, "Nice"))

	rows[0].Weather.WeatherScore = 0

	assert.Equal(t, 80.0, summaries[0].WeatherScore)
}

func TestRank_Scenario(t *testing.T) {
	cities := testCities(t, "Nice", "Arles")
	summaries := []CityWeatherSummary{
		{City: "Nice", WeatherScore: 80},
		{City: "Arles", WeatherScore: 85},
	}
	rows := Join([]HotelListing{
		listing("Nice", "Nice seven", "7.0"),
		listing("Nice", "Nice nine", "9.0"),
		listing("Arles", "Arles hotel", "8.0"),
	}, summaries, cities)

	Rank(rows)

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Listing.HotelName
	}
	assert.Equal(t, []string{"Arles hotel", "Nice nine", "Nice seven"}, names)
	assert.True(t, IsRanked(rows))
}

func TestRank_NullsLast(t *testing.T) {
	cities := testCities(t, "Nice", "Arles", "Lyon")
	summaries := []CityWeatherSummary{
		{City: "Nice", WeatherScore: 40},
		{City: "Arles", WeatherScore: 40},
	}
	rows := Join([]HotelListing{
		listing("Lyon", "no weather", "9.5"),
		listing("Nice", "nice unscored", "N/A"),
		listing("Nice", "nice scored", "6.0"),
		listing("Arles", "arles", "5.0"),
	}, summaries, cities)

	Rank(rows)

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Listing.HotelName
	}
	assert.Equal(t, []string{"arles", "nice scored", "nice unscored", "no weather"}, names)
}

func TestRank_StableTies(t *testing.T) {
	cities := testCities(t, "Nice")
	summaries := []CityWeatherSummary{{City: "Nice", WeatherScore: 70}}
	rows := Join([]HotelListing{
		listing("Nice", "first", "8.0"),
		listing("Nice", "second", "8.0"),
		listing("Nice", "third", "8.0"),
	}, summaries, cities)

	Rank(rows)

	assert.Equal(t, "first", rows[0].Listing.HotelName)
	assert.Equal(t, "second", rows[1].Listing.HotelName)
	assert.Equal(t, "third", rows[2].Listing.HotelName)
}

func TestIsRanked(t *testing.T) {
	rows := Join([]HotelListing{
		listing("Nice", "low", "5.0"),
		listing("Nice", "high", "9.0"),
	}, []CityWeatherSummary{{City: "Nice", WeatherScore: 70}}, testCities(t, "Nice"))

	assert.False(t, IsRanked(rows))
	Rank(rows)
	assert.True(t, IsRanked(rows))
}
