// Package openweather fetches daily forecasts from the OpenWeather One Call
// 3.0 API.
package openweather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/destination-etl/internal/adapter/httpclient"
	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/observability"
)

const (
	// breakerFailures consecutive failures open the breaker.
	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
)

// ErrUnavailable is returned without calling the API while the breaker is open.
var ErrUnavailable = errors.New("openweather unavailable")

// Client calls the One Call endpoint behind a circuit breaker so that a bad
// key or an outage fails the remaining cities fast.
type Client struct {
	apiKey  string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a forecast client.
func NewClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		apiKey:  apiKey,
		http:    httpclient.New(baseURL, timeout, ""),
		metrics: metrics,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweather",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// DailyForecasts returns the first days daily entries for a coordinate,
// labelled with city. DayOffset is the entry's index, so offset 0 is today.
func (c *Client) DailyForecasts(ctx context.Context, city string, lat, lon float64, days int) ([]domain.DailyForecast, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, lat, lon)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.WeatherRequests.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()

	daily := out.([]daily)
	if len(daily) > days {
		daily = daily[:days]
	}
	forecasts := make([]domain.DailyForecast, 0, len(daily))
	for i, d := range daily {
		f := domain.DailyForecast{
			City:      city,
			Latitude:  lat,
			Longitude: lon,
			DayOffset: i,
			Date:      time.Unix(d.Dt, 0).UTC(),
			TempDay:   d.Temp.Day,
			TempMin:   d.Temp.Min,
			TempMax:   d.Temp.Max,
			Pop:       d.Pop,
			Rain:      d.Rain,
			Humidity:  d.Humidity,
		}
		if len(d.Weather) > 0 {
			f.WeatherMain = d.Weather[0].Main
			f.WeatherDescription = d.Weather[0].Description
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) ([]daily, error) {
	var body response
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":     strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":     strconv.FormatFloat(lon, 'f', -1, 64),
			"exclude": "minutely,hourly,alerts",
			"units":   "metric",
			"appid":   c.apiKey,
		}).
		SetResult(&body).
		Get("/data/3.0/onecall")
	if err != nil {
		return nil, fmt.Errorf("onecall request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode(), resp.String())
	}
	return body.Daily, nil
}

// One Call API response types. Absent pop, rain and humidity decode as 0.

type response struct {
	Daily []daily `json:"daily"`
}

type daily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Day float64 `json:"day"`
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Humidity float64 `json:"humidity"`
	Pop      float64 `json:"pop"`
	Rain     float64 `json:"rain"`
	Weather  []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}
