// Package parquetfile exports the master table as a Parquet file for
// analytics tools.
package parquetfile

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/couchcryptid/destination-etl/internal/adapter/atomicfile"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

// Record is the Parquet schema of one master row. Optional columns are
// pointers so missing values are stored as nulls rather than zeros.
type Record struct {
	RunID        string   `parquet:"name=run_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	GeneratedAt  int64    `parquet:"name=generated_at,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	CityID       *int32   `parquet:"name=city_id,type=INT32,repetitiontype=OPTIONAL"`
	City         string   `parquet:"name=city,type=BYTE_ARRAY,convertedtype=UTF8"`
	HotelName    string   `parquet:"name=hotel_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	URL          *string  `parquet:"name=url,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	Score        *float64 `parquet:"name=score,type=DOUBLE,repetitiontype=OPTIONAL"`
	Description  *string  `parquet:"name=description,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	HotelLat     *float64 `parquet:"name=hotel_lat,type=DOUBLE,repetitiontype=OPTIONAL"`
	HotelLon     *float64 `parquet:"name=hotel_lon,type=DOUBLE,repetitiontype=OPTIONAL"`
	WeatherScore *float64 `parquet:"name=weather_score,type=DOUBLE,repetitiontype=OPTIONAL"`
	ClimateIndex *float64 `parquet:"name=climate_index,type=DOUBLE,repetitiontype=OPTIONAL"`
	AvgTemp      *float64 `parquet:"name=avg_temp,type=DOUBLE,repetitiontype=OPTIONAL"`
	TotalRainMM  *float64 `parquet:"name=total_rain_mm,type=DOUBLE,repetitiontype=OPTIONAL"`
	Latitude     *float64 `parquet:"name=latitude,type=DOUBLE,repetitiontype=OPTIONAL"`
	Longitude    *float64 `parquet:"name=longitude,type=DOUBLE,repetitiontype=OPTIONAL"`
}

// NewRecord flattens a master row.
func NewRecord(r domain.MasterRow, runID string, generatedAt time.Time) Record {
	rec := Record{
		RunID:       runID,
		GeneratedAt: generatedAt.UnixMilli(),
		City:        r.Listing.City,
		HotelName:   r.Listing.HotelName,
		URL:         r.Listing.URL,
		Score:       r.Score,
		Description: r.Listing.Description,
		HotelLat:    r.Listing.HotelLat,
		HotelLon:    r.Listing.HotelLon,
	}
	if r.CityID != nil {
		id := int32(*r.CityID)
		rec.CityID = &id
	}
	if w := r.Weather; w != nil {
		rec.WeatherScore = &w.WeatherScore
		rec.ClimateIndex = &w.ClimateIndex
		rec.AvgTemp = &w.AvgTemp
		rec.TotalRainMM = &w.TotalRainMM
		rec.Latitude = &w.Latitude
		rec.Longitude = &w.Longitude
	}
	return rec
}

// Writer exports master tables to a local Parquet file.
type Writer struct {
	path        string
	compression parquet.CompressionCodec
}

// NewWriter validates the compression name (NONE, UNCOMPRESSED, SNAPPY, GZIP).
func NewWriter(path, compression string) (*Writer, error) {
	codec, err := compressionCodec(compression)
	if err != nil {
		return nil, err
	}
	return &Writer{path: path, compression: codec}, nil
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "parquet" }

// Path returns the output file.
func (w *Writer) Path() string { return w.path }

// Publish replaces the Parquet file with rows.
func (w *Writer) Publish(_ context.Context, rows []domain.MasterRow, runID string, generatedAt time.Time) error {
	return atomicfile.Write(w.path, func(out io.Writer) error {
		return w.encode(out, rows, runID, generatedAt)
	})
}

func (w *Writer) encode(out io.Writer, rows []domain.MasterRow, runID string, generatedAt time.Time) (err error) {
	pw, err := writer.NewParquetWriterFromWriter(out, new(Record), 1)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = w.compression

	for i, r := range rows {
		if err := pw.Write(NewRecord(r, runID, generatedAt)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	// The library panics on some malformed schemas during flush.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return nil
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "UNCOMPRESSED", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported parquet compression: %s", name)
	}
}
