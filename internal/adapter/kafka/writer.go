package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

// Destination is the JSON payload of one published master row.
type Destination struct {
	RunID        string   `json:"run_id"`
	Position     int      `json:"position"`
	CityID       *int     `json:"city_id"`
	City         string   `json:"city"`
	HotelName    string   `json:"hotel_name"`
	URL          *string  `json:"url"`
	Score        *float64 `json:"score"`
	Description  *string  `json:"description"`
	HotelLat     *float64 `json:"hotel_lat"`
	HotelLon     *float64 `json:"hotel_lon"`
	WeatherScore *float64 `json:"weather_score"`
	ClimateIndex *float64 `json:"climate_index"`
	AvgTemp      *float64 `json:"avg_temp"`
	TotalRainMM  *float64 `json:"total_rain_mm"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// Writer publishes master rows to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the sink topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Publish serializes the ranked rows and sends them in a single WriteMessages
// call. Rows are keyed by city so one city's hotels land on one partition in
// ranking order.
func (w *Writer) Publish(ctx context.Context, rows []domain.MasterRow, runID string, generatedAt time.Time) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i], i+1, runID, generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d rows to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Info("master rows published", "topic", w.writer.Topic, "rows", len(msgs), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// NewDestination flattens a master row into the published payload.
func NewDestination(r domain.MasterRow, position int, runID string) Destination {
	d := Destination{
		RunID:       runID,
		Position:    position,
		CityID:      r.CityID,
		City:        r.Listing.City,
		HotelName:   r.Listing.HotelName,
		URL:         r.Listing.URL,
		Score:       r.Score,
		Description: r.Listing.Description,
		HotelLat:    r.Listing.HotelLat,
		HotelLon:    r.Listing.HotelLon,
	}
	if s := r.Weather; s != nil {
		d.WeatherScore = &s.WeatherScore
		d.ClimateIndex = &s.ClimateIndex
		d.AvgTemp = &s.AvgTemp
		d.TotalRainMM = &s.TotalRainMM
		d.Latitude = &s.Latitude
		d.Longitude = &s.Longitude
	}
	return d
}

// serializeToMessage marshals a master row into a Kafka message.
func serializeToMessage(r domain.MasterRow, position int, runID string, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(NewDestination(r, position, runID))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize master row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.Listing.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "generated_at", Value: []byte(generatedAt.UTC().Format(time.RFC3339))},
			{Key: "position", Value: []byte(strconv.Itoa(position))},
		},
	}, nil
}
