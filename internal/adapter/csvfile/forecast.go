package csvfile

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/destination-etl/internal/adapter/atomicfile"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

var forecastHeader = []string{
	"city", "latitude", "longitude", "day_offset", "date",
	"temp_day", "temp_min", "temp_max", "weather_main", "weather_description",
	"pop", "rain", "humidity",
}

const dateLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{dateLayout, time.RFC3339, "2006-01-02"}

// ReadForecasts loads the forecast table. city, coordinates, day_offset and
// temp_day are required per row; pop, rain and humidity default to 0.
func ReadForecasts(path string) ([]domain.DailyForecast, error) {
	t, err := readTable(path, "city", "latitude", "longitude", "day_offset", "temp_day")
	if err != nil {
		return nil, err
	}
	return t.forecasts()
}

func (t *table) forecasts() ([]domain.DailyForecast, error) {
	out := make([]domain.DailyForecast, 0, len(t.records))
	for i, rec := range t.records {
		f := domain.DailyForecast{
			City:               t.get(rec, "city"),
			WeatherMain:        t.get(rec, "weather_main"),
			WeatherDescription: t.get(rec, "weather_description"),
		}
		if f.City == "" {
			return nil, t.lineError(i, "city", fmt.Errorf("empty city"))
		}

		offset, err := strconv.Atoi(t.get(rec, "day_offset"))
		if err != nil {
			return nil, t.lineError(i, "day_offset", err)
		}
		f.DayOffset = offset

		if f.Latitude, err = t.float(rec, i, "latitude"); err != nil {
			return nil, err
		}
		if f.Longitude, err = t.float(rec, i, "longitude"); err != nil {
			return nil, err
		}
		if f.TempDay, err = t.float(rec, i, "temp_day"); err != nil {
			return nil, err
		}
		for col, dst := range map[string]*float64{
			"temp_min": &f.TempMin,
			"temp_max": &f.TempMax,
			"pop":      &f.Pop,
			"rain":     &f.Rain,
			"humidity": &f.Humidity,
		} {
			if *dst, err = t.floatOr(rec, i, col, 0); err != nil {
				return nil, err
			}
		}
		if s := t.get(rec, "date"); s != "" {
			if f.Date, err = parseDate(s); err != nil {
				return nil, t.lineError(i, "date", err)
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, s)
		if err == nil {
			return d.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// WriteForecasts replaces the forecast table at path.
func WriteForecasts(path string, forecasts []domain.DailyForecast) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return EncodeForecasts(w, forecasts)
	})
}

// EncodeForecasts writes the forecast table to w.
func EncodeForecasts(w io.Writer, forecasts []domain.DailyForecast) error {
	return writeCSV(w, forecastHeader, func(emit func([]string) error) error {
		for _, f := range forecasts {
			date := ""
			if !f.Date.IsZero() {
				date = f.Date.UTC().Format(dateLayout)
			}
			if err := emit([]string{
				f.City,
				formatFloat(f.Latitude),
				formatFloat(f.Longitude),
				strconv.Itoa(f.DayOffset),
				date,
				formatFloat(f.TempDay),
				formatFloat(f.TempMin),
				formatFloat(f.TempMax),
				f.WeatherMain,
				f.WeatherDescription,
				formatFloat(f.Pop),
				formatFloat(f.Rain),
				formatFloat(f.Humidity),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
