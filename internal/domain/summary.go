package domain

import "sort"

// ScoredDay is a planning-window forecast with its derived scores.
type ScoredDay struct {
	Forecast     DailyForecast
	ClimateIndex float64
	WeatherScore float64
}

// FilterPlanningWindow keeps forecasts from PlanningStartDay onwards, in input
// order.
func FilterPlanningWindow(p Params, forecasts []DailyForecast) []DailyForecast {
	out := make([]DailyForecast, 0, len(forecasts))
	for _, f := range forecasts {
		if f.DayOffset >= p.PlanningStartDay {
			out = append(out, f)
		}
	}
	return out
}

// ScoreDays computes both scores for every forecast. Rows are independent of
// each other.
func ScoreDays(p Params, forecasts []DailyForecast) []ScoredDay {
	out := make([]ScoredDay, len(forecasts))
	for i, f := range forecasts {
		out[i] = ScoredDay{
			Forecast:     f,
			ClimateIndex: p.ClimateIndex(f.TempDay),
			WeatherScore: p.WeatherScore(f.TempDay, f.Rain, f.Humidity),
		}
	}
	return out
}

type accumulator struct {
	summary    CityWeatherSummary
	tempSum    float64
	climateSum float64
	scoreSum   float64
}

// Summarize groups scored days by city: first coordinate, mean temperature,
// total rain, mean climate index and mean weather score. Cities without any
// scored day are absent. The result is ordered by city name.
func Summarize(days []ScoredDay) []CityWeatherSummary {
	byCity := make(map[string]*accumulator)
	for _, d := range days {
		acc, ok := byCity[d.Forecast.City]
		if !ok {
			acc = &accumulator{summary: CityWeatherSummary{
				City:      d.Forecast.City,
				Latitude:  d.Forecast.Latitude,
				Longitude: d.Forecast.Longitude,
			}}
			byCity[d.Forecast.City] = acc
		}
		acc.summary.Days++
		acc.summary.TotalRainMM += d.Forecast.Rain
		acc.tempSum += d.Forecast.TempDay
		acc.climateSum += d.ClimateIndex
		acc.scoreSum += d.WeatherScore
	}

	out := make([]CityWeatherSummary, 0, len(byCity))
	for _, acc := range byCity {
		n := float64(acc.summary.Days)
		s := acc.summary
		s.AvgTemp = acc.tempSum / n
		s.ClimateIndex = acc.climateSum / n
		s.WeatherScore = acc.scoreSum / n
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}
