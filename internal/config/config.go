package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

// Geocoder providers.
const (
	GeocoderNominatim = "nominatim"
	GeocoderMapbox    = "mapbox"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	// Files.
	CitiesFile         string
	ForecastFile       string
	RawListingFile     string
	ListingFile        string
	MasterFile         string
	ParquetFile        string
	ParquetCompression string
	GeoJSONFile        string
	ScoringConfig      string

	// Scoring constants, defaults overlaid with ScoringConfig when set.
	Params domain.Params

	// Weather collection.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	ForecastDays       int

	// Geocoding.
	Geocoder           string
	GeocodeCountry     string
	NominatimBaseURL   string
	NominatimUserAgent string
	NominatimRPS       float64
	MapboxToken        string
	MapboxTimeout      time.Duration
	MapboxCacheSize    int
	RedisAddr          string
	GeocodeCacheTTL    time.Duration

	// Hotel scraping.
	BookingBaseURL  string
	HotelsPerCity   int
	ScrapeDelay     time.Duration
	ScrapeUserAgent string
	HTTPTimeout     time.Duration

	// Secondary sinks; each is disabled when its target is empty.
	KafkaBrokers   []string
	KafkaSinkTopic string
	DatabaseDriver string
	DatabaseDSN    string
	DatabaseTable  string
	GCSBucket      string
	GCSObject      string

	// Serve mode.
	HTTPAddr         string
	PipelineInterval time.Duration
	ShutdownTimeout  time.Duration

	LogLevel    string
	LogFormat   string
	OTelEnabled bool
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CitiesFile:         sharedcfg.EnvOrDefault("CITIES_FILE", "data/cities.txt"),
		ForecastFile:       sharedcfg.EnvOrDefault("FORECAST_FILE", "data/raw/weather_data.csv"),
		RawListingFile:     sharedcfg.EnvOrDefault("RAW_LISTING_FILE", "data/raw/booking_data.csv"),
		ListingFile:        sharedcfg.EnvOrDefault("LISTING_FILE", "data/processed/booking_data_enriched.csv"),
		MasterFile:         sharedcfg.EnvOrDefault("MASTER_FILE", "data/processed/kayak_master.csv"),
		ParquetFile:        os.Getenv("PARQUET_FILE"),
		ParquetCompression: strings.ToUpper(sharedcfg.EnvOrDefault("PARQUET_COMPRESSION", "SNAPPY")),
		GeoJSONFile:        os.Getenv("GEOJSON_FILE"),
		ScoringConfig:      os.Getenv("SCORING_CONFIG"),

		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),

		Geocoder:           strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER", GeocoderNominatim)),
		GeocodeCountry:     sharedcfg.EnvOrDefault("GEOCODE_COUNTRY", "France"),
		NominatimBaseURL:   sharedcfg.EnvOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "destination-etl"),
		MapboxToken:        os.Getenv("MAPBOX_TOKEN"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),

		BookingBaseURL:  sharedcfg.EnvOrDefault("BOOKING_BASE_URL", "https://www.booking.com"),
		ScrapeUserAgent: sharedcfg.EnvOrDefault("SCRAPE_USER_AGENT", defaultUserAgent),

		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "destination-master"),
		DatabaseDriver: strings.ToLower(os.Getenv("DATABASE_DRIVER")),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		DatabaseTable:  sharedcfg.EnvOrDefault("DATABASE_TABLE", "destinations"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		GCSObject:      sharedcfg.EnvOrDefault("GCS_OBJECT", "kayak_master.csv"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,

		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.ForecastDays, err = parsePositiveInt("FORECAST_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.HotelsPerCity, err = parsePositiveInt("HOTELS_PER_CITY", 20); err != nil {
		return nil, err
	}
	if cfg.MapboxCacheSize, err = parsePositiveInt("MAPBOX_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.NominatimRPS, err = parsePositiveFloat("NOMINATIM_RPS", 1); err != nil {
		return nil, err
	}
	if cfg.MapboxTimeout, err = parseDuration("MAPBOX_TIMEOUT", "5s", false); err != nil {
		return nil, err
	}
	if cfg.GeocodeCacheTTL, err = parseDuration("GEOCODE_CACHE_TTL", "720h", false); err != nil {
		return nil, err
	}
	if cfg.ScrapeDelay, err = parseDuration("SCRAPE_DELAY", "1s", true); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = parseDuration("HTTP_TIMEOUT", "15s", false); err != nil {
		return nil, err
	}
	if cfg.PipelineInterval, err = parseDuration("PIPELINE_INTERVAL", "6h", false); err != nil {
		return nil, err
	}
	if cfg.OTelEnabled, err = parseBool("OTEL_ENABLED", false); err != nil {
		return nil, err
	}

	cfg.Params, err = LoadParams(cfg.ScoringConfig)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CitiesFile == "" {
		return errors.New("CITIES_FILE is required")
	}
	if c.MasterFile == "" {
		return errors.New("MASTER_FILE is required")
	}
	switch c.Geocoder {
	case GeocoderNominatim:
	case GeocoderMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return fmt.Errorf("invalid GEOCODER %q: want nominatim or mapbox", c.Geocoder)
	}
	if c.ForecastDays > 8 {
		return fmt.Errorf("invalid FORECAST_DAYS %d: the daily forecast covers at most 8 days", c.ForecastDays)
	}
	switch c.ParquetCompression {
	case "NONE", "UNCOMPRESSED", "SNAPPY", "GZIP":
	default:
		return fmt.Errorf("invalid PARQUET_COMPRESSION %q", c.ParquetCompression)
	}
	switch c.DatabaseDriver {
	case "":
	case "sqlite", "postgres", "mysql":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DRIVER is %s but DATABASE_DSN is not set", c.DatabaseDriver)
		}
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER %q: want sqlite, postgres or mysql", c.DatabaseDriver)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.GCSBucket != "" && c.GCSObject == "" {
		return errors.New("GCS_OBJECT is required when GCS_BUCKET is set")
	}
	return nil
}

// LoadParams returns the default scoring constants overlaid with the YAML file
// at path. An empty path yields the defaults. Unknown keys are rejected so a
// typo does not silently fall back to a default.
func LoadParams(path string) (domain.Params, error) {
	p := domain.DefaultParams()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read SCORING_CONFIG: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("parse SCORING_CONFIG %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid SCORING_CONFIG %s: %w", path, err)
	}
	return p, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive number", key, s)
	}
	return f, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, s)
	}
	return b, nil
}
