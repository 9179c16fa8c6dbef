package csvfile

import (
	"context"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

// Source reads the engine inputs from local files on every call, so edits
// between scheduled runs are picked up.
type Source struct {
	CitiesFile   string
	ForecastFile string
	ListingFile  string
}

// LoadCities reads the canonical city list.
func (s Source) LoadCities(_ context.Context) (domain.Cities, error) {
	return ReadCities(s.CitiesFile)
}

// LoadForecasts reads the forecast table.
func (s Source) LoadForecasts(_ context.Context) ([]domain.DailyForecast, error) {
	return ReadForecasts(s.ForecastFile)
}

// LoadListings reads the listing table the master is built from.
func (s Source) LoadListings(_ context.Context) ([]domain.HotelListing, error) {
	return ReadListings(s.ListingFile)
}
