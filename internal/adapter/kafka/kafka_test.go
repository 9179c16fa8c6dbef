package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	row := domain.MasterRow{
		CityID:  ptr(25),
		Listing: domain.HotelListing{City: "Nimes", HotelName: "Arena", Score: "8.9"},
		Score:   ptr(8.9),
		Weather: &domain.CityWeatherSummary{City: "Nimes", Latitude: 43.84, Longitude: 4.36, WeatherScore: 88.5},
	}

	msg, err := serializeToMessage(row, 3, "run-7", now)
	require.NoError(t, err)

	assert.Equal(t, []byte("Nimes"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-7"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
	assert.Equal(t, []byte("3"), msg.Headers[2].Value)

	var got Destination
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, 3, got.Position)
	assert.Equal(t, 25, *got.CityID)
	assert.Equal(t, 8.9, *got.Score)
	assert.Equal(t, 88.5, *got.WeatherScore)
}

func TestSerializeToMessage_NullWeather(t *testing.T) {
	row := domain.MasterRow{Listing: domain.HotelListing{City: "Gotham", HotelName: "Wayne", Score: "N/A"}}

	msg, err := serializeToMessage(row, 1, "run-1", time.Now())
	require.NoError(t, err)

	assert.Contains(t, string(msg.Value), `"weather_score":null`)
	assert.Contains(t, string(msg.Value), `"city_id":null`)
	assert.Contains(t, string(msg.Value), `"score":null`)
}

func TestPublish_NoRowsIsNoop(t *testing.T) {
	w := NewWriter([]string{"localhost:1"}, "destination-master", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "kafka", w.Name())
	require.NoError(t, w.Publish(context.Background(), nil, "run-1", time.Now()))
}
