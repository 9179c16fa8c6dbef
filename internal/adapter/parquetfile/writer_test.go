package parquetfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func sampleRows() []domain.MasterRow {
	return []domain.MasterRow{
		{
			CityID:  ptr(21),
			Listing: domain.HotelListing{City: "Marseille", HotelName: "Vieux Port", URL: ptr("https://example.com/vp"), Score: "8.7", HotelLat: ptr(43.29), HotelLon: ptr(5.37)},
			Score:   ptr(8.7),
			Weather: &domain.CityWeatherSummary{City: "Marseille", Latitude: 43.3, Longitude: 5.37, AvgTemp: 26, TotalRainMM: 0, ClimateIndex: 52.5, WeatherScore: 95},
		},
		{
			Listing: domain.HotelListing{City: "Gotham", HotelName: "Wayne", Score: "N/A"},
		},
	}
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	rows := sampleRows()

	rec := NewRecord(rows[0], "run-1", at)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, at.UnixMilli(), rec.GeneratedAt)
	require.NotNil(t, rec.CityID)
	assert.Equal(t, int32(21), *rec.CityID)
	require.NotNil(t, rec.WeatherScore)
	assert.Equal(t, 95.0, *rec.WeatherScore)

	empty := NewRecord(rows[1], "run-1", at)
	assert.Nil(t, empty.CityID)
	assert.Nil(t, empty.Score)
	assert.Nil(t, empty.WeatherScore)
	assert.Nil(t, empty.Latitude)
}

func TestWriter_WriteReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "master.parquet")
	w, err := NewWriter(path, "snappy")
	require.NoError(t, err)
	assert.Equal(t, "parquet", w.Name())

	require.NoError(t, w.Publish(context.Background(), sampleRows(), "run-42", time.Unix(1717228800, 0)))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Record), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(2), pr.GetNumRows())
	got := make([]Record, 2)
	require.NoError(t, pr.Read(&got))

	assert.Equal(t, "Marseille", got[0].City)
	assert.Equal(t, "run-42", got[0].RunID)
	require.NotNil(t, got[0].Score)
	assert.Equal(t, 8.7, *got[0].Score)
	assert.Equal(t, "Gotham", got[1].City)
	assert.Nil(t, got[1].WeatherScore)
}

func TestNewWriter_RejectsUnknownCompression(t *testing.T) {
	_, err := NewWriter("x.parquet", "brotli9")
	require.ErrorContains(t, err, "unsupported parquet compression")
}
