package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/destination-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/destination-etl/internal/adapter/gcs"
	"github.com/couchcryptid/destination-etl/internal/adapter/geocache"
	"github.com/couchcryptid/destination-etl/internal/adapter/geojson"
	kafkaadapter "github.com/couchcryptid/destination-etl/internal/adapter/kafka"
	"github.com/couchcryptid/destination-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/destination-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/destination-etl/internal/adapter/parquetfile"
	"github.com/couchcryptid/destination-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/destination-etl/internal/config"
	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/observability"
	"github.com/couchcryptid/destination-etl/internal/pipeline"
)

const (
	serviceName = "destination-etl"

	// Map layers exported alongside the master table.
	mapTopCities     = 5
	mapHotelsPerCity = 20
)

// app holds what every subcommand shares. It is filled by the root command's
// PersistentPreRunE, once flags are parsed.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	closers []func() error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "etl",
		Short: "Rank French destinations by upcoming weather and attach hotel listings",
		Long: `etl runs the destination pipeline stages:

  weather   geocode the cities and fetch daily forecasts
  hotels    scrape the first search results page of every city
  enrich    visit hotel pages for coordinates and descriptions
  process   score, join and rank into the master table
  serve     run process on a schedule behind an HTTP API
  report    print the city ranking and the top hotels`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}
	root.AddCommand(
		newWeatherCmd(a),
		newHotelsCmd(a),
		newEnrichCmd(a),
		newProcessCmd(a),
		newServeCmd(a),
		newReportCmd(a),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg)
	a.metrics = observability.NewMetrics()

	if cfg.OTelEnabled {
		shutdown, err := observability.InitTracing(ctx, serviceName, a.logger)
		if err != nil {
			return err
		}
		a.onClose(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(ctx)
		})
	}
	return nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Error("close failed", "error", err)
		}
	}
	a.closers = nil
}

func closer(c io.Closer) func() error { return c.Close }

func (a *app) cities() (domain.Cities, error) {
	cities, err := csvfile.ReadCities(a.cfg.CitiesFile)
	if err != nil {
		return domain.Cities{}, err
	}
	if cities.Len() != domain.CanonicalCityCount {
		a.logger.Warn("unexpected city count", "cities", cities.Len(), "expected", domain.CanonicalCityCount)
	}
	return cities, nil
}

// geocoder builds provider -> redis (optional) -> in-memory LRU. An
// unreachable redis only disables that tier.
func (a *app) geocoder(ctx context.Context) domain.Geocoder {
	var g domain.Geocoder
	switch a.cfg.Geocoder {
	case config.GeocoderMapbox:
		g = mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.metrics, a.logger)
	default:
		g = nominatim.NewClient(a.cfg.NominatimBaseURL, a.cfg.NominatimUserAgent, a.cfg.NominatimRPS, a.cfg.HTTPTimeout, a.metrics, a.logger)
	}
	a.logger.Info("geocoder configured", "provider", a.cfg.Geocoder, "cache_size", a.cfg.MapboxCacheSize)

	if a.cfg.RedisAddr != "" {
		client, err := geocache.Dial(ctx, a.cfg.RedisAddr)
		if err != nil {
			a.logger.Warn("redis geocode cache disabled", "addr", a.cfg.RedisAddr, "error", err)
		} else {
			a.onClose(closer(client))
			g = geocache.NewRedisGeocoder(g, client, a.cfg.GeocodeCacheTTL, a.metrics, a.logger)
			a.logger.Info("redis geocode cache enabled", "addr", a.cfg.RedisAddr, "ttl", a.cfg.GeocodeCacheTTL)
		}
	}
	return geocache.NewMemoryGeocoder(g, a.cfg.MapboxCacheSize, a.metrics)
}

func (a *app) source() csvfile.Source {
	return csvfile.Source{
		CitiesFile:   a.cfg.CitiesFile,
		ForecastFile: a.cfg.ForecastFile,
		ListingFile:  a.cfg.ListingFile,
	}
}

// secondarySinks opens every configured optional output. Sinks are only
// enabled when their target is set.
func (a *app) secondarySinks(ctx context.Context) ([]pipeline.Sink, error) {
	var sinks []pipeline.Sink

	if a.cfg.ParquetFile != "" {
		w, err := parquetfile.NewWriter(a.cfg.ParquetFile, a.cfg.ParquetCompression)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
	}
	if a.cfg.GeoJSONFile != "" {
		sinks = append(sinks, geojson.NewWriter(a.cfg.GeoJSONFile, mapTopCities, mapHotelsPerCity))
	}
	if a.cfg.DatabaseDriver != "" {
		store, err := sqlstore.Open(ctx, a.cfg.DatabaseDriver, a.cfg.DatabaseDSN, a.cfg.DatabaseTable, a.logger)
		if err != nil {
			return nil, err
		}
		a.onClose(store.Close)
		sinks = append(sinks, store)
	}
	if len(a.cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewWriter(a.cfg.KafkaBrokers, a.cfg.KafkaSinkTopic, a.logger)
		a.onClose(w.Close)
		sinks = append(sinks, w)
	}
	if a.cfg.GCSBucket != "" {
		u, err := gcs.NewUploader(ctx, a.cfg.GCSBucket, a.cfg.GCSObject, a.logger)
		if err != nil {
			return nil, err
		}
		a.onClose(u.Close)
		sinks = append(sinks, u)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	a.logger.Info("sinks configured", "primary", a.cfg.MasterFile, "secondary", names)
	return sinks, nil
}

func (a *app) newPipeline(ctx context.Context, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	sinks, err := a.secondarySinks(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithSecondarySinks(sinks...))
	return pipeline.New(a.source(), a.cfg.Params, csvfile.NewMasterSink(a.cfg.MasterFile), a.logger, a.metrics, opts...), nil
}

var errMissingAPIKey = errors.New("OPENWEATHER_API_KEY is required to collect forecasts")
