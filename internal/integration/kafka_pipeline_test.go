//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/destination-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/destination-etl/internal/adapter/kafka"
	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/observability"
	"github.com/couchcryptid/destination-etl/internal/pipeline"
)

const testSinkTopic = "test-destinations"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("destination-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedRow holds a deserialized message read from the sink topic.
type publishedRow struct {
	Row     kafka.Destination
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedRow {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var row kafka.Destination
	require.NoError(t, json.Unmarshal(msg.Value, &row), "unmarshal sink message")
	return publishedRow{Row: row, Key: string(msg.Key), Headers: headers}
}

func writeInputs(t *testing.T, dir string) csvfile.Source {
	t.Helper()
	src := csvfile.Source{
		CitiesFile:   filepath.Join(dir, "cities.txt"),
		ForecastFile: filepath.Join(dir, "weather_data.csv"),
		ListingFile:  filepath.Join(dir, "booking_data_enriched.csv"),
	}
	require.NoError(t, os.WriteFile(src.CitiesFile, []byte("Nice\nLyon\nBiarritz\n"), 0o600))

	day := time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, csvfile.WriteForecasts(src.ForecastFile, []domain.DailyForecast{
		{City: "Nice", Latitude: 43.7, Longitude: 7.26, DayOffset: 2, Date: day, TempDay: 25, Humidity: 55},
		{City: "Lyon", Latitude: 45.76, Longitude: 4.83, DayOffset: 2, Date: day, TempDay: 19, Rain: 1.5, Humidity: 70},
		{City: "Biarritz", Latitude: 43.48, Longitude: -1.56, DayOffset: 1, TempDay: 22},
	}))

	url := "https://www.booking.com/hotel/fr/azur.html"
	require.NoError(t, csvfile.WriteListings(src.ListingFile, []domain.HotelListing{
		{City: "Lyon", HotelName: "Soie", Score: "8.4"},
		{City: "Nice", HotelName: "Azur", URL: &url, Score: "9.1"},
		{City: "Biarritz", HotelName: "Palais", Score: "N/A"},
		{City: "Nice", HotelName: "Mer", Score: "7.0"},
	}))
	return src
}

// TestWriterPublish verifies the Kafka sink round-trips master rows with
// their run headers.
func TestWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	writer := kafka.NewWriter([]string{broker}, testSinkTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	id := 7
	score := 9.1
	generatedAt := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	rows := []domain.MasterRow{{
		CityID:  &id,
		Listing: domain.HotelListing{City: "Nice", HotelName: "Azur", Score: "9.1"},
		Score:   &score,
		Weather: &domain.CityWeatherSummary{City: "Nice", Latitude: 43.7, Longitude: 7.26, WeatherScore: 96},
	}}
	require.NoError(t, writer.Publish(ctx, rows, "run-1", generatedAt))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := readPublished(ctx, t, consumer)
	assert.Equal(t, "Nice", got.Key)
	assert.Equal(t, "run-1", got.Headers["run_id"])
	assert.Equal(t, "1", got.Headers["position"])
	assert.Equal(t, "2024-06-01T09:00:00Z", got.Headers["generated_at"])
	assert.Equal(t, "Azur", got.Row.HotelName)
	require.NotNil(t, got.Row.WeatherScore)
	assert.Equal(t, 96.0, *got.Row.WeatherScore)
}

// TestPipelineEndToEnd runs the file-backed pipeline with Kafka as a
// secondary sink and checks both outputs carry the same ranking.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	src := writeInputs(t, dir)
	masterPath := filepath.Join(dir, "kayak_master.csv")

	writer := kafka.NewWriter([]string{broker}, testSinkTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(src, domain.DefaultParams(), csvfile.NewMasterSink(masterPath), discardLogger(), metrics,
		pipeline.WithSecondarySinks(writer))

	run, err := p.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, run.Result.Rows, 4)

	master, err := csvfile.ReadMaster(masterPath)
	require.NoError(t, err)
	require.Len(t, master, 4)
	assert.True(t, domain.IsRanked(master))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make([]publishedRow, 0, len(master))
	for len(received) < len(master) {
		received = append(received, readPublished(ctx, t, consumer))
	}

	for i, got := range received {
		assert.Equal(t, run.ID, got.Headers["run_id"])
		assert.Equal(t, i+1, got.Row.Position)
		assert.Equal(t, master[i].Listing.City, got.Row.City)
		assert.Equal(t, master[i].Listing.HotelName, got.Row.HotelName)
	}

	// Biarritz only has a day-1 forecast, outside the planning window.
	last := received[len(received)-1].Row
	assert.Equal(t, "Biarritz", last.City)
	assert.Nil(t, last.WeatherScore)
	assert.Equal(t, "Nice", received[0].Row.City)
	assert.Equal(t, "Azur", received[0].Row.HotelName)
}
