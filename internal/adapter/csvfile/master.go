package csvfile

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/destination-etl/internal/adapter/atomicfile"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

// MasterHeader is the column order of the master table.
var MasterHeader = []string{
	"city_id", "city", "hotel_name", "url", "score", "description",
	"hotel_lat", "hotel_lon", "weather_score", "climate_index",
	"avg_temp", "total_rain_mm", "latitude", "longitude",
}

// WriteMaster replaces the master table at path.
func WriteMaster(path string, rows []domain.MasterRow) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return EncodeMaster(w, rows)
	})
}

// MasterSink writes the master table to a local CSV file.
type MasterSink struct {
	path string
}

// NewMasterSink returns a sink replacing path on every publish.
func NewMasterSink(path string) *MasterSink {
	return &MasterSink{path: path}
}

// Name identifies the sink in logs and metrics.
func (s *MasterSink) Name() string { return "csv" }

// Path returns the output file.
func (s *MasterSink) Path() string { return s.path }

// Publish replaces the file with rows.
func (s *MasterSink) Publish(_ context.Context, rows []domain.MasterRow, _ string, _ time.Time) error {
	return WriteMaster(s.path, rows)
}

// EncodeMaster writes the master table to w. The score column keeps the
// scraped text when it is numeric and is empty otherwise. Weather columns are
// empty for rows without a summary.
func EncodeMaster(w io.Writer, rows []domain.MasterRow) error {
	return writeCSV(w, MasterHeader, func(emit func([]string) error) error {
		for _, r := range rows {
			rec := make([]string, 0, len(MasterHeader))
			cityID := ""
			if r.CityID != nil {
				cityID = strconv.Itoa(*r.CityID)
			}
			score := ""
			if r.Score != nil {
				score = r.Listing.Score
			}
			rec = append(rec,
				cityID,
				r.Listing.City,
				r.Listing.HotelName,
				formatOptString(r.Listing.URL),
				score,
				formatOptString(r.Listing.Description),
				formatOptFloat(r.Listing.HotelLat),
				formatOptFloat(r.Listing.HotelLon),
			)
			if s := r.Weather; s != nil {
				rec = append(rec,
					formatFloat(s.WeatherScore),
					formatFloat(s.ClimateIndex),
					formatFloat(s.AvgTemp),
					formatFloat(s.TotalRainMM),
					formatFloat(s.Latitude),
					formatFloat(s.Longitude),
				)
			} else {
				rec = append(rec, "", "", "", "", "", "")
			}
			if err := emit(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadMaster loads a master table written by WriteMaster. Rows keep file
// order; the weather summary is rebuilt from the weather columns with Days
// left at 0 because the day count is not persisted.
func ReadMaster(path string) ([]domain.MasterRow, error) {
	t, err := readTable(path, MasterHeader...)
	if err != nil {
		return nil, err
	}
	listings := t.listings()

	rows := make([]domain.MasterRow, len(t.records))
	for i, rec := range t.records {
		r := domain.MasterRow{Listing: listings[i], Score: listings[i].ReviewScore()}

		if s := t.get(rec, "city_id"); !isNull(s) {
			// pandas writes integer columns with nulls as floats ("3.0").
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, t.lineError(i, "city_id", err)
			}
			if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
				return nil, t.lineError(i, "city_id", fmt.Errorf("%q is not a whole number", s))
			}
			id := int(f)
			r.CityID = &id
		}

		ws, err := t.optFloat(rec, i, "weather_score")
		if err != nil {
			return nil, err
		}
		if ws != nil {
			w := domain.CityWeatherSummary{City: r.Listing.City, WeatherScore: *ws}
			for col, dst := range map[string]*float64{
				"climate_index": &w.ClimateIndex,
				"avg_temp":      &w.AvgTemp,
				"total_rain_mm": &w.TotalRainMM,
				"latitude":      &w.Latitude,
				"longitude":     &w.Longitude,
			} {
				if *dst, err = t.floatOr(rec, i, col, 0); err != nil {
					return nil, err
				}
			}
			r.Weather = &w
		}
		rows[i] = r
	}
	return rows, nil
}
