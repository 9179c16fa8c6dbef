// Command validate checks a produced master table against its inputs. It
// re-derives the table from the city list, the forecast table and the
// listing table with the same engine the pipeline uses, then verifies row
// counts, city ids, ranking order, score ranges and the per-city aggregates.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -cities data/cities.txt \
//	  -forecasts data/raw/weather_data.csv \
//	  -listings data/processed/booking_data_enriched.csv \
//	  -master data/processed/kayak_master.csv
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/destination-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/destination-etl/internal/config"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

// tolerance absorbs the float formatting of the CSV round trip.
const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// inputs is everything a validation run reads.
type inputs struct {
	cities    domain.Cities
	forecasts []domain.DailyForecast
	listings  []domain.HotelListing
	master    []domain.MasterRow
	params    domain.Params
}

func main() {
	citiesPath := flag.String("cities", "data/cities.txt", "canonical city list")
	forecastPath := flag.String("forecasts", "data/raw/weather_data.csv", "forecast table")
	listingPath := flag.String("listings", "data/processed/booking_data_enriched.csv", "listing table the master was built from")
	masterPath := flag.String("master", "data/processed/kayak_master.csv", "master table to check")
	scoringPath := flag.String("scoring", "", "optional YAML scoring constants used for the build")
	flag.Parse()

	in, err := load(*citiesPath, *forecastPath, *listingPath, *masterPath, *scoringPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Destination Master Table Validation ===")
	fmt.Println()
	fmt.Printf("  cities:    %d\n", in.cities.Len())
	fmt.Printf("  forecasts: %d\n", len(in.forecasts))
	fmt.Printf("  listings:  %d\n", len(in.listings))
	fmt.Printf("  master:    %d\n", len(in.master))

	phases, err := validate(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	if !report(phases) {
		os.Exit(1)
	}
}

func load(citiesPath, forecastPath, listingPath, masterPath, scoringPath string) (inputs, error) {
	var in inputs
	var err error
	if in.cities, err = csvfile.ReadCities(citiesPath); err != nil {
		return in, fmt.Errorf("load cities: %w", err)
	}
	if in.forecasts, err = csvfile.ReadForecasts(forecastPath); err != nil {
		return in, fmt.Errorf("load forecasts: %w", err)
	}
	if in.listings, err = csvfile.ReadListings(listingPath); err != nil {
		return in, fmt.Errorf("load listings: %w", err)
	}
	if in.master, err = csvfile.ReadMaster(masterPath); err != nil {
		return in, fmt.Errorf("load master: %w", err)
	}
	if in.params, err = config.LoadParams(scoringPath); err != nil {
		return in, err
	}
	return in, nil
}

// validate runs every phase. The error is only set when the expected table
// cannot be derived at all.
func validate(in inputs) ([]*phase, error) {
	engine, err := domain.NewEngine(in.cities, in.params)
	if err != nil {
		return nil, err
	}
	expected := engine.Build(in.forecasts, in.listings)

	return []*phase{
		validateInputs(in),
		validateShape(in, expected),
		validateRanking(in.master),
		validateRanges(in.master),
		validateAggregates(in.master, expected),
	}, nil
}

func validateInputs(in inputs) *phase {
	p := &phase{name: "Input Integrity"}
	if in.cities.Len() != domain.CanonicalCityCount {
		p.errorf("city list has %d entries, want %d", in.cities.Len(), domain.CanonicalCityCount)
	}
	for i, f := range in.forecasts {
		if f.DayOffset < 0 {
			p.errorf("forecast row %d (%s): negative day_offset %d", i+1, f.City, f.DayOffset)
		}
		if f.Rain < 0 {
			p.errorf("forecast row %d (%s): negative rain %g", i+1, f.City, f.Rain)
		}
		if f.Humidity < 0 || f.Humidity > 100 {
			p.errorf("forecast row %d (%s): humidity %g out of [0, 100]", i+1, f.City, f.Humidity)
		}
	}
	return p
}

func validateShape(in inputs, expected domain.Result) *phase {
	p := &phase{name: "Row Count and City IDs"}
	if len(in.master) != len(in.listings) {
		p.errorf("master has %d rows, listings have %d", len(in.master), len(in.listings))
	}
	for i, r := range in.master {
		id, known := in.cities.ID(r.Listing.City)
		switch {
		case known && r.CityID == nil:
			p.errorf("row %d (%s): missing city_id, want %d", i+1, r.Listing.City, id)
		case known && *r.CityID != id:
			p.errorf("row %d (%s): city_id %d, want %d", i+1, r.Listing.City, *r.CityID, id)
		case !known && r.CityID != nil:
			p.errorf("row %d (%s): city_id %d for a city outside the list", i+1, r.Listing.City, *r.CityID)
		}
	}

	if len(in.master) != len(expected.Rows) {
		return p
	}
	for i, r := range in.master {
		want := expected.Rows[i].Listing
		if r.Listing.City != want.City || r.Listing.HotelName != want.HotelName {
			p.errorf("row %d: got %s / %s, want %s / %s", i+1, r.Listing.City, r.Listing.HotelName, want.City, want.HotelName)
		}
	}
	return p
}

func validateRanking(rows []domain.MasterRow) *phase {
	p := &phase{name: "Ranking Order"}
	if !domain.IsRanked(rows) {
		p.errorf("rows are not ordered by weather score desc, city asc, review score desc")
	}
	return p
}

func validateRanges(rows []domain.MasterRow) *phase {
	p := &phase{name: "Score Ranges"}
	for i, r := range rows {
		if r.Weather == nil {
			continue
		}
		if v := r.Weather.WeatherScore; v < 0 || v > 100 {
			p.errorf("row %d (%s): weather_score %g out of [0, 100]", i+1, r.Listing.City, v)
		}
		if v := r.Weather.ClimateIndex; v < 0 || v > 100 {
			p.errorf("row %d (%s): climate_index %g out of [0, 100]", i+1, r.Listing.City, v)
		}
		if r.Weather.TotalRainMM < 0 {
			p.errorf("row %d (%s): negative total_rain_mm", i+1, r.Listing.City)
		}
	}
	return p
}

func validateAggregates(rows []domain.MasterRow, expected domain.Result) *phase {
	p := &phase{name: "Recomputed Aggregates"}
	byCity := make(map[string]domain.CityWeatherSummary, len(expected.Summaries))
	for _, s := range expected.Summaries {
		byCity[s.City] = s
	}

	for i, r := range rows {
		want, ok := byCity[r.Listing.City]
		switch {
		case !ok && r.Weather != nil:
			p.errorf("row %d (%s): has weather but the city has no planning-window forecast", i+1, r.Listing.City)
			continue
		case ok && r.Weather == nil:
			p.errorf("row %d (%s): missing weather", i+1, r.Listing.City)
			continue
		case !ok:
			continue
		}
		got := *r.Weather
		for _, c := range []struct {
			col       string
			got, want float64
		}{
			{"weather_score", got.WeatherScore, want.WeatherScore},
			{"climate_index", got.ClimateIndex, want.ClimateIndex},
			{"avg_temp", got.AvgTemp, want.AvgTemp},
			{"total_rain_mm", got.TotalRainMM, want.TotalRainMM},
			{"latitude", got.Latitude, want.Latitude},
			{"longitude", got.Longitude, want.Longitude},
		} {
			if math.Abs(c.got-c.want) > tolerance {
				p.errorf("row %d (%s): %s %g, want %g", i+1, r.Listing.City, c.col, c.got, c.want)
			}
		}
	}
	return p
}

func report(phases []*phase) bool {
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		allPassed = false
		fmt.Printf("FAIL  %s (%d errors)\n", p.name, len(p.errors))
		for i, e := range p.errors {
			if i == 10 {
				fmt.Printf("      ... and %d more\n", len(p.errors)-10)
				break
			}
			fmt.Printf("      %s\n", e)
		}
	}
	fmt.Println()
	if allPassed {
		fmt.Println("All validation phases passed.")
	} else {
		fmt.Println("Validation FAILED.")
	}
	return allPassed
}
