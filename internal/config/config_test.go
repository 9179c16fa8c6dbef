package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

const testMapboxToken = "pk.test-token"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/cities.txt", cfg.CitiesFile)
	assert.Equal(t, "data/raw/weather_data.csv", cfg.ForecastFile)
	assert.Equal(t, "data/raw/booking_data.csv", cfg.RawListingFile)
	assert.Equal(t, "data/processed/booking_data_enriched.csv", cfg.ListingFile)
	assert.Equal(t, "data/processed/kayak_master.csv", cfg.MasterFile)
	assert.Empty(t, cfg.ParquetFile)
	assert.Equal(t, "SNAPPY", cfg.ParquetCompression)
	assert.Equal(t, domain.DefaultParams(), cfg.Params)

	assert.Equal(t, 7, cfg.ForecastDays)
	assert.Equal(t, GeocoderNominatim, cfg.Geocoder)
	assert.Equal(t, "France", cfg.GeocodeCountry)
	assert.Equal(t, 1.0, cfg.NominatimRPS)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
	assert.Equal(t, 720*time.Hour, cfg.GeocodeCacheTTL)

	assert.Equal(t, 20, cfg.HotelsPerCity)
	assert.Equal(t, time.Second, cfg.ScrapeDelay)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)

	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "destination-master", cfg.KafkaSinkTopic)
	assert.Empty(t, cfg.DatabaseDriver)
	assert.Equal(t, "destinations", cfg.DatabaseTable)
	assert.Empty(t, cfg.GCSBucket)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 6*time.Hour, cfg.PipelineInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("CITIES_FILE", "/etc/cities.txt")
	t.Setenv("MASTER_FILE", "/tmp/master.csv")
	t.Setenv("PARQUET_FILE", "/tmp/master.parquet")
	t.Setenv("PARQUET_COMPRESSION", "gzip")
	t.Setenv("FORECAST_DAYS", "5")
	t.Setenv("GEOCODER", "Mapbox")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_CACHE_SIZE", "50")
	t.Setenv("NOMINATIM_RPS", "0.5")
	t.Setenv("SCRAPE_DELAY", "0s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file::memory:")
	t.Setenv("GCS_BUCKET", "trips")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("PIPELINE_INTERVAL", "30m")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/cities.txt", cfg.CitiesFile)
	assert.Equal(t, "/tmp/master.csv", cfg.MasterFile)
	assert.Equal(t, "/tmp/master.parquet", cfg.ParquetFile)
	assert.Equal(t, "GZIP", cfg.ParquetCompression)
	assert.Equal(t, 5, cfg.ForecastDays)
	assert.Equal(t, GeocoderMapbox, cfg.Geocoder)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 50, cfg.MapboxCacheSize)
	assert.Equal(t, 0.5, cfg.NominatimRPS)
	assert.Zero(t, cfg.ScrapeDelay)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file::memory:", cfg.DatabaseDSN)
	assert.Equal(t, "trips", cfg.GCSBucket)
	assert.Equal(t, "kayak_master.csv", cfg.GCSObject)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Minute, cfg.PipelineInterval)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "not-a-duration"}, "SHUTDOWN_TIMEOUT"},
		{"negative shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, "SHUTDOWN_TIMEOUT"},
		{"forecast days", map[string]string{"FORECAST_DAYS": "0"}, "FORECAST_DAYS"},
		{"too many forecast days", map[string]string{"FORECAST_DAYS": "9"}, "FORECAST_DAYS"},
		{"hotels per city", map[string]string{"HOTELS_PER_CITY": "many"}, "HOTELS_PER_CITY"},
		{"mapbox timeout", map[string]string{"MAPBOX_TIMEOUT": "bad"}, "MAPBOX_TIMEOUT"},
		{"zero interval", map[string]string{"PIPELINE_INTERVAL": "0s"}, "PIPELINE_INTERVAL"},
		{"nominatim rps", map[string]string{"NOMINATIM_RPS": "-1"}, "NOMINATIM_RPS"},
		{"otel flag", map[string]string{"OTEL_ENABLED": "maybe"}, "OTEL_ENABLED"},
		{"unknown geocoder", map[string]string{"GEOCODER": "google"}, "GEOCODER"},
		{"mapbox without token", map[string]string{"GEOCODER": "mapbox"}, "MAPBOX_TOKEN"},
		{"compression", map[string]string{"PARQUET_COMPRESSION": "lz77"}, "PARQUET_COMPRESSION"},
		{"database driver", map[string]string{"DATABASE_DRIVER": "oracle"}, "DATABASE_DRIVER"},
		{"database dsn", map[string]string{"DATABASE_DRIVER": "postgres"}, "DATABASE_DSN"},
		{"scoring config missing", map[string]string{"SCORING_CONFIG": "/does/not/exist.yaml"}, "SCORING_CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HOTELS_PER_CITY=5\nLOG_LEVEL=warn\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() { _ = os.Unsetenv("HOTELS_PER_CITY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.HotelsPerCity)
	assert.Equal(t, "error", cfg.LogLevel, "process environment wins over .env")
}

func TestLoadParams(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		p, err := LoadParams("")
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultParams(), p)
	})

	t.Run("partial override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yaml")
		require.NoError(t, os.WriteFile(path, []byte("target_temp: 22\nrain_penalty: 4\n"), 0o600))

		p, err := LoadParams(path)
		require.NoError(t, err)

		want := domain.DefaultParams()
		want.TargetTemp = 22
		want.RainPenalty = 4
		assert.Equal(t, want, p)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yaml")
		require.NoError(t, os.WriteFile(path, []byte("target_temperature: 22\n"), 0o600))

		_, err := LoadParams(path)
		require.ErrorContains(t, err, "target_temperature")
	})

	t.Run("invalid value", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yaml")
		require.NoError(t, os.WriteFile(path, []byte("humidity_threshold: 140\n"), 0o600))

		_, err := LoadParams(path)
		require.ErrorContains(t, err, "humidity_threshold")
	})
}
