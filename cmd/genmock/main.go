// Command genmock writes deterministic synthetic input tables for the
// destination pipeline: the city list, a daily forecast table and both the raw
// and the enriched hotel listing tables. The same seed always produces the
// same files, so the output can be checked in as test fixtures.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data/mock -days 8 -hotels 5
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/destination-etl/internal/adapter/atomicfile"
	"github.com/couchcryptid/destination-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

// baseDate is day_offset 0 of every generated forecast.
var baseDate = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

var hotelKinds = []string{"Hotel", "Residence", "Auberge", "Villa", "Le Relais", "Maison", "Chateau"}

var skies = []struct{ main, description string }{
	{"Clear", "clear sky"},
	{"Clouds", "few clouds"},
	{"Clouds", "overcast clouds"},
	{"Rain", "light rain"},
	{"Rain", "moderate rain"},
}

type options struct {
	outDir string
	days   int
	hotels int
	seed   uint64
	typos  bool
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var opts options
	flag.StringVar(&opts.outDir, "out-dir", "data/mock", "directory receiving the generated tables")
	flag.IntVar(&opts.days, "days", 8, "forecast days per city (day_offset 0..days-1)")
	flag.IntVar(&opts.hotels, "hotels", 5, "listings per city")
	flag.Uint64Var(&opts.seed, "seed", 42, "random seed")
	flag.BoolVar(&opts.typos, "typos", true, "add listings whose city is misspelled")
	flag.Parse()

	if opts.days < 1 || opts.hotels < 1 {
		flag.Usage()
		return fmt.Errorf("-days and -hotels must be positive")
	}

	names := domain.DefaultCityNames()
	fx := generate(names, opts)

	if err := writeCities(filepath.Join(opts.outDir, "cities.txt"), names); err != nil {
		return fmt.Errorf("writing cities: %w", err)
	}
	forecastPath := filepath.Join(opts.outDir, "weather_data.csv")
	if err := csvfile.WriteForecasts(forecastPath, fx.forecasts); err != nil {
		return fmt.Errorf("writing forecasts: %w", err)
	}
	rawPath := filepath.Join(opts.outDir, "booking_data.csv")
	if err := csvfile.WriteListings(rawPath, fx.raw); err != nil {
		return fmt.Errorf("writing raw listings: %w", err)
	}
	enrichedPath := filepath.Join(opts.outDir, "booking_data_enriched.csv")
	if err := csvfile.WriteListings(enrichedPath, fx.enriched); err != nil {
		return fmt.Errorf("writing enriched listings: %w", err)
	}

	log.Printf("cities: %d", len(names))
	log.Printf("wrote %s: %d rows", forecastPath, len(fx.forecasts))
	log.Printf("wrote %s: %d rows", rawPath, len(fx.raw))
	log.Printf("wrote %s: %d rows", enrichedPath, len(fx.enriched))
	printStats(fx)
	return nil
}

type fixtures struct {
	forecasts []domain.DailyForecast
	raw       []domain.HotelListing
	enriched  []domain.HotelListing
}

func generate(names []string, opts options) fixtures {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	var fx fixtures

	for _, city := range names {
		// Mainland France, roughly.
		lat := round(42.5+rng.Float64()*8.5, 4)
		lon := round(-4.5+rng.Float64()*12.5, 4)
		fx.forecasts = append(fx.forecasts, cityForecasts(rng, city, lat, lon, opts.days)...)

		for n := range opts.hotels {
			raw, enriched := hotel(rng, city, lat, lon, n)
			fx.raw = append(fx.raw, raw)
			fx.enriched = append(fx.enriched, enriched)
		}
	}

	if opts.typos {
		for _, city := range []string{"Marseile", "St-Malo"} {
			raw, enriched := hotel(rng, city, 0, 0, 0)
			enriched.HotelLat, enriched.HotelLon = nil, nil
			fx.raw = append(fx.raw, raw)
			fx.enriched = append(fx.enriched, enriched)
		}
	}
	return fx
}

func cityForecasts(rng *rand.Rand, city string, lat, lon float64, days int) []domain.DailyForecast {
	// Warmer in the south.
	base := 31 - (lat-42.5)*1.2
	out := make([]domain.DailyForecast, 0, days)
	for offset := range days {
		day := round(base+rng.NormFloat64()*3, 2)
		sky := skies[rng.IntN(len(skies))]
		f := domain.DailyForecast{
			City:               city,
			Latitude:           lat,
			Longitude:          lon,
			DayOffset:          offset,
			Date:               baseDate.AddDate(0, 0, offset),
			TempDay:            day,
			TempMin:            round(day-3-rng.Float64()*4, 2),
			TempMax:            round(day+1+rng.Float64()*3, 2),
			WeatherMain:        sky.main,
			WeatherDescription: sky.description,
			Humidity:           float64(35 + rng.IntN(60)),
		}
		if sky.main == "Rain" {
			f.Pop = round(0.4+rng.Float64()*0.6, 2)
			f.Rain = round(rng.Float64()*8, 2)
		} else {
			f.Pop = round(rng.Float64()*0.3, 2)
		}
		out = append(out, f)
	}
	return out
}

// hotel returns a listing as the search page would give it and the same
// listing after a hotel page visit.
func hotel(rng *rand.Rand, city string, lat, lon float64, n int) (raw, enriched domain.HotelListing) {
	name := fmt.Sprintf("%s %s %d", hotelKinds[rng.IntN(len(hotelKinds))], city, n+1)
	url := fmt.Sprintf("https://www.booking.com/hotel/fr/%s.html", slug(name))
	searchDesc := fmt.Sprintf("%s centre - %d m from centre", city, 100+rng.IntN(30)*50)

	raw = domain.HotelListing{
		City:        city,
		HotelName:   name,
		URL:         &url,
		Score:       "N/A",
		Description: &searchDesc,
	}
	// One listing in five has no review score yet.
	if rng.IntN(5) != 0 {
		raw.Score = fmt.Sprintf("%.1f", 6+rng.Float64()*3.8)
	}

	enriched = raw
	pageDesc := domain.DescriptionUnavailable
	if rng.IntN(10) != 0 {
		pageDesc = fmt.Sprintf("%s in %s. Rooms with %s.", name, city, []string{"a balcony", "a garden view", "air conditioning"}[rng.IntN(3)])
	}
	enriched.Description = &pageDesc
	// Some pages carry no coordinates.
	if rng.IntN(5) != 0 {
		hLat := round(lat+(rng.Float64()-0.5)*0.06, 6)
		hLon := round(lon+(rng.Float64()-0.5)*0.06, 6)
		enriched.HotelLat, enriched.HotelLon = &hLat, &hLon
	}
	return raw, enriched
}

func writeCities(path string, names []string) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		_, err := io.WriteString(w, strings.Join(names, "\n")+"\n")
		return err
	})
}

func slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func printStats(fx fixtures) {
	var rainy, noScore, noCoords int
	for _, f := range fx.forecasts {
		if f.Rain > 0 {
			rainy++
		}
	}
	for _, l := range fx.enriched {
		if l.ReviewScore() == nil {
			noScore++
		}
		if !l.HasCoordinates() {
			noCoords++
		}
	}
	fmt.Println()
	fmt.Println("=== Fixture Stats ===")
	fmt.Printf("  forecasts:              %d (%d rainy days)\n", len(fx.forecasts), rainy)
	fmt.Printf("  listings:               %d\n", len(fx.enriched))
	fmt.Printf("  without review score:   %d\n", noScore)
	fmt.Printf("  without coordinates:    %d\n", noCoords)
}
