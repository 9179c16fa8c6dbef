package main

import (
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/destination-etl/internal/adapter/booking"
	"github.com/couchcryptid/destination-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/destination-etl/internal/adapter/openweather"
	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/pipeline"
)

func newWeatherCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "weather",
		Short: "Geocode every city and write the daily forecast table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.OpenWeatherAPIKey == "" {
				return errMissingAPIKey
			}
			ctx := cmd.Context()
			cities, err := a.cities()
			if err != nil {
				return err
			}

			weather := openweather.NewClient(a.cfg.OpenWeatherBaseURL, a.cfg.OpenWeatherAPIKey, a.cfg.HTTPTimeout, a.metrics, a.logger)
			collector := pipeline.NewWeatherCollector(a.geocoder(ctx), weather, a.cfg.GeocodeCountry, a.cfg.ForecastDays, a.logger)
			forecasts, err := collector.Collect(ctx, cities)
			if err != nil {
				return err
			}
			if err := csvfile.WriteForecasts(a.cfg.ForecastFile, forecasts); err != nil {
				return err
			}
			a.logger.Info("forecast table written", "path", a.cfg.ForecastFile, "rows", len(forecasts))
			return nil
		},
	}
}

func (a *app) bookingClient() (*booking.Client, error) {
	return booking.NewClient(a.cfg.BookingBaseURL, a.cfg.ScrapeUserAgent, a.cfg.HTTPTimeout, a.metrics, a.logger)
}

func newHotelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hotels",
		Short: "Scrape the first search results page of every city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cities, err := a.cities()
			if err != nil {
				return err
			}
			client, err := a.bookingClient()
			if err != nil {
				return err
			}

			scraper := pipeline.NewHotelScraper(client, a.cfg.HotelsPerCity, a.cfg.ScrapeDelay, clockwork.NewRealClock(), a.logger)
			listings, err := scraper.Collect(cmd.Context(), cities)
			if err != nil {
				return err
			}
			if err := csvfile.WriteListings(a.cfg.RawListingFile, listings); err != nil {
				return err
			}
			a.logger.Info("listing table written", "path", a.cfg.RawListingFile, "rows", len(listings))
			return nil
		},
	}
}

func newEnrichCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Add hotel coordinates and descriptions from the hotel pages",
		Long: `enrich visits the page of every listing that still lacks coordinates or a
description. Progress is saved to the enriched table every few pages, and a
later run resumes from that table instead of the raw one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listings, resumed, err := csvfile.ReadListingsResume(a.cfg.ListingFile, a.cfg.RawListingFile)
			if err != nil {
				return err
			}
			a.logger.Info("listings loaded", "rows", len(listings), "resumed", resumed)

			client, err := a.bookingClient()
			if err != nil {
				return err
			}
			save := func(l []domain.HotelListing) error {
				return csvfile.WriteListings(a.cfg.ListingFile, l)
			}
			enricher := pipeline.NewEnricher(client, save, a.cfg.ScrapeDelay, clockwork.NewRealClock(), a.logger)
			_, _, err = enricher.Enrich(cmd.Context(), listings)
			return err
		},
	}
}
