package openweather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/destination-etl/internal/observability"
)

const threeDays = `{"daily":[
 {"dt":1717236000,"temp":{"day":24.5,"min":17.1,"max":26.0},"humidity":55,"pop":0.1,"weather":[{"main":"Clear","description":"clear sky"}]},
 {"dt":1717322400,"temp":{"day":22.0,"min":16.0,"max":23.5},"humidity":70,"pop":0.8,"rain":4.2,"weather":[{"main":"Rain","description":"light rain"}]},
 {"dt":1717408800,"temp":{"day":20.0,"min":15.0,"max":21.0}}
]}`

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m := observability.NewMetricsForTesting()
	return NewClient(srv.URL, "secret", 5*time.Second, m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func TestDailyForecasts(t *testing.T) {
	c, m := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/data/3.0/onecall", r.URL.Path)
		assert.Equal(t, "43.7", q.Get("lat"))
		assert.Equal(t, "7.26", q.Get("lon"))
		assert.Equal(t, "minutely,hourly,alerts", q.Get("exclude"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "secret", q.Get("appid"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, threeDays)
	})

	got, err := c.DailyForecasts(context.Background(), "Nice", 43.7, 7.26, 7)
	require.NoError(t, err)
	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, "Nice", first.City)
	assert.Equal(t, 0, first.DayOffset)
	assert.Equal(t, time.Unix(1717236000, 0).UTC(), first.Date)
	assert.Equal(t, 24.5, first.TempDay)
	assert.Equal(t, "Clear", first.WeatherMain)
	assert.Equal(t, "clear sky", first.WeatherDescription)
	assert.Zero(t, first.Rain, "missing rain defaults to 0")

	assert.Equal(t, 1, got[1].DayOffset)
	assert.Equal(t, 4.2, got[1].Rain)

	last := got[2]
	assert.Equal(t, 2, last.DayOffset)
	assert.Zero(t, last.Pop)
	assert.Zero(t, last.Humidity)
	assert.Empty(t, last.WeatherMain)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WeatherRequests.WithLabelValues("success")))
}

func TestDailyForecasts_TruncatesToDays(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, threeDays)
	})

	got, err := c.DailyForecasts(context.Background(), "Nice", 43.7, 7.26, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDailyForecasts_APIError(t *testing.T) {
	c, m := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"cod":401,"message":"Invalid API key"}`, http.StatusUnauthorized)
	})

	_, err := c.DailyForecasts(context.Background(), "Nice", 43.7, 7.26, 7)
	require.ErrorContains(t, err, "status 401")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WeatherRequests.WithLabelValues("error")))
}

func TestDailyForecasts_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	c, m := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for range breakerFailures {
		_, err := c.DailyForecasts(context.Background(), "Nice", 43.7, 7.26, 7)
		require.Error(t, err)
	}
	_, err := c.DailyForecasts(context.Background(), "Lyon", 45.76, 4.83, 7)

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(breakerFailures), hits.Load(), "open breaker must not reach the API")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WeatherRequests.WithLabelValues("rejected")))
}
