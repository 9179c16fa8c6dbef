package domain

import (
	"fmt"
	"sort"
	"time"
)

// Result is the output of one engine run.
type Result struct {
	Rows      []MasterRow
	Summaries []CityWeatherSummary

	// UnknownCities lists listing cities absent from the canonical list; their
	// rows carry a nil CityID.
	UnknownCities []string
	// CitiesWithoutWeather lists listing cities with no planning-window
	// forecast; their rows carry nil weather.
	CitiesWithoutWeather []string

	ForecastsRetained int
	GeneratedAt       time.Time
}

// Engine scores forecasts and merges them with listings. It holds only
// immutable configuration and is safe for concurrent use.
type Engine struct {
	cities Cities
	params Params
}

// NewEngine validates params and binds them to the canonical city list.
func NewEngine(cities Cities, params Params) (*Engine, error) {
	if cities.Len() == 0 {
		return nil, fmt.Errorf("engine requires a non-empty city list")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring params: %w", err)
	}
	return &Engine{cities: cities, params: params}, nil
}

// Cities returns the canonical list the engine was built with.
func (e *Engine) Cities() Cities { return e.cities }

// Params returns the scoring constants.
func (e *Engine) Params() Params { return e.params }

// Build filters the planning window, scores each day, aggregates per city,
// joins the listings and ranks the result. Inputs are not modified.
func (e *Engine) Build(forecasts []DailyForecast, listings []HotelListing) Result {
	window := FilterPlanningWindow(e.params, forecasts)
	summaries := Summarize(ScoreDays(e.params, window))
	rows := Join(listings, summaries, e.cities)
	Rank(rows)

	var unknown, noWeather []string
	seenUnknown := make(map[string]struct{})
	seenNoWeather := make(map[string]struct{})
	for _, r := range rows {
		city := r.Listing.City
		if r.CityID == nil {
			if _, ok := seenUnknown[city]; !ok {
				seenUnknown[city] = struct{}{}
				unknown = append(unknown, city)
			}
		}
		if r.Weather == nil {
			if _, ok := seenNoWeather[city]; !ok {
				seenNoWeather[city] = struct{}{}
				noWeather = append(noWeather, city)
			}
		}
	}
	sort.Strings(unknown)
	sort.Strings(noWeather)

	return Result{
		Rows:                 rows,
		Summaries:            summaries,
		UnknownCities:        unknown,
		CitiesWithoutWeather: noWeather,
		ForecastsRetained:    len(window),
		GeneratedAt:          Now(),
	}
}
