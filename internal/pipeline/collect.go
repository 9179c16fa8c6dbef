package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/observability"
)

// ErrNothingCollected is returned when every city failed, so that an outage
// never replaces a previous table with an empty one.
var ErrNothingCollected = errors.New("no rows collected")

// checkpointEvery is how many hotel pages are fetched between saves.
const checkpointEvery = 10

// ForecastFetcher returns the daily forecasts for a coordinate.
type ForecastFetcher interface {
	DailyForecasts(ctx context.Context, city string, lat, lon float64, days int) ([]domain.DailyForecast, error)
}

// ListingSearcher returns the listings of a city's search results page.
type ListingSearcher interface {
	SearchCity(ctx context.Context, city string, limit int) ([]domain.HotelListing, error)
}

// DetailFetcher reads a hotel page.
type DetailFetcher interface {
	HotelDetails(ctx context.Context, pageURL string) (domain.HotelDetails, error)
}

// WeatherCollector geocodes each city and records its daily forecasts.
type WeatherCollector struct {
	geocoder domain.Geocoder
	fetcher  ForecastFetcher
	country  string
	days     int
	logger   *slog.Logger
}

// NewWeatherCollector collects days forecasts per city, geocoding names
// within country.
func NewWeatherCollector(geocoder domain.Geocoder, fetcher ForecastFetcher, country string, days int, logger *slog.Logger) *WeatherCollector {
	return &WeatherCollector{geocoder: geocoder, fetcher: fetcher, country: country, days: days, logger: logger}
}

// Collect returns the forecasts of every city in list order. Cities that
// cannot be geocoded or have no forecast are logged and skipped.
func (c *WeatherCollector) Collect(ctx context.Context, cities domain.Cities) ([]domain.DailyForecast, error) {
	ctx, span := observability.Tracer().Start(ctx, "collect.weather")
	defer span.End()

	var out []domain.DailyForecast
	skipped := 0
	for _, city := range cities.Names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc, err := c.geocoder.ForwardGeocode(ctx, city, c.country)
		if err != nil {
			c.logger.Warn("geocoding failed, skipping city", "city", city, "error", err)
			skipped++
			continue
		}
		if !loc.Found() {
			c.logger.Warn("city not found by geocoder, skipping", "city", city)
			skipped++
			continue
		}

		days, err := c.fetcher.DailyForecasts(ctx, city, loc.Lat, loc.Lon, c.days)
		if err != nil {
			c.logger.Warn("forecast request failed, skipping city", "city", city, "error", err)
			skipped++
			continue
		}
		if len(days) == 0 {
			c.logger.Warn("no forecast returned, skipping city", "city", city)
			skipped++
			continue
		}
		c.logger.Debug("forecast collected", "city", city, "lat", loc.Lat, "lon", loc.Lon, "days", len(days))
		out = append(out, days...)
	}

	span.SetAttributes(attribute.Int("rows", len(out)), attribute.Int("skipped_cities", skipped))
	if len(out) == 0 {
		return nil, fmt.Errorf("weather: %w", ErrNothingCollected)
	}
	c.logger.Info("weather collected", "rows", len(out), "cities", cities.Len()-skipped, "skipped", skipped)
	return out, nil
}

// HotelScraper collects the first listings of every city's search page.
type HotelScraper struct {
	searcher ListingSearcher
	perCity  int
	delay    time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewHotelScraper keeps perCity listings per city and waits delay between
// cities.
func NewHotelScraper(searcher ListingSearcher, perCity int, delay time.Duration, clock clockwork.Clock, logger *slog.Logger) *HotelScraper {
	return &HotelScraper{searcher: searcher, perCity: perCity, delay: delay, clock: clock, logger: logger}
}

// Collect returns listings grouped by city in list order. A failed city is
// logged and skipped.
func (s *HotelScraper) Collect(ctx context.Context, cities domain.Cities) ([]domain.HotelListing, error) {
	ctx, span := observability.Tracer().Start(ctx, "collect.hotels")
	defer span.End()

	var out []domain.HotelListing
	for i, city := range cities.Names() {
		if i > 0 && !sleepClock(ctx, s.clock, s.delay) {
			return nil, ctx.Err()
		}
		listings, err := s.searcher.SearchCity(ctx, city, s.perCity)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("search failed, skipping city", "city", city, "error", err)
			continue
		}
		if len(listings) > s.perCity {
			listings = listings[:s.perCity]
		}
		s.logger.Info("hotels scraped", "city", city, "hotels", len(listings))
		out = append(out, listings...)
	}

	span.SetAttributes(attribute.Int("rows", len(out)))
	if len(out) == 0 {
		return nil, fmt.Errorf("hotels: %w", ErrNothingCollected)
	}
	return out, nil
}

// EnrichStats summarizes one enrichment pass.
type EnrichStats struct {
	Complete int // already had coordinates and a description
	NoURL    int
	Enriched int
	Failed   int
}

// Enricher visits hotel pages to fill coordinates and descriptions.
type Enricher struct {
	fetcher DetailFetcher
	save    func([]domain.HotelListing) error
	delay   time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewEnricher calls save with the whole table every few fetched pages and
// once at the end, so an interrupted pass can be resumed.
func NewEnricher(fetcher DetailFetcher, save func([]domain.HotelListing) error, delay time.Duration, clock clockwork.Clock, logger *slog.Logger) *Enricher {
	return &Enricher{fetcher: fetcher, save: save, delay: delay, clock: clock, logger: logger}
}

// Enrich returns a copy of listings with page details applied. Coordinates are
// only replaced when the page had both; the description is always replaced.
// A failed page is logged and left unchanged. The final save happens even
// when ctx is cancelled.
func (e *Enricher) Enrich(ctx context.Context, listings []domain.HotelListing) ([]domain.HotelListing, EnrichStats, error) {
	ctx, span := observability.Tracer().Start(ctx, "collect.enrich")
	defer span.End()

	out := slices.Clone(listings)
	var stats EnrichStats
	fetched := 0

	var runErr error
	for i := range out {
		l := &out[i]
		if !l.NeedsEnrichment() {
			stats.Complete++
			continue
		}
		if l.URL == nil || *l.URL == "" {
			stats.NoURL++
			continue
		}
		if fetched > 0 && !sleepClock(ctx, e.clock, e.delay) {
			runErr = ctx.Err()
			break
		}

		details, err := e.fetcher.HotelDetails(ctx, *l.URL)
		fetched++
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			stats.Failed++
			e.logger.Warn("hotel page failed", "index", i, "hotel", l.HotelName, "error", err)
		} else {
			applyDetails(l, details)
			stats.Enriched++
			e.logger.Debug("hotel enriched", "index", i, "hotel", l.HotelName,
				"has_coordinates", l.HasCoordinates(),
				"has_description", details.Description != domain.DescriptionUnavailable,
			)
		}

		if fetched%checkpointEvery == 0 {
			if err := e.save(out); err != nil {
				return out, stats, fmt.Errorf("checkpoint: %w", err)
			}
		}
	}

	span.SetAttributes(attribute.Int("enriched", stats.Enriched), attribute.Int("failed", stats.Failed))
	if err := e.save(out); err != nil {
		return out, stats, errors.Join(runErr, fmt.Errorf("final save: %w", err))
	}
	e.logger.Info("enrichment finished",
		"listings", len(out),
		"enriched", stats.Enriched,
		"failed", stats.Failed,
		"complete", stats.Complete,
		"no_url", stats.NoURL,
	)
	return out, stats, runErr
}

func applyDetails(l *domain.HotelListing, d domain.HotelDetails) {
	if d.Lat != nil && d.Lon != nil {
		lat, lon := *d.Lat, *d.Lon
		l.HotelLat, l.HotelLon = &lat, &lon
	}
	desc := d.Description
	l.Description = &desc
}

func sleepClock(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
