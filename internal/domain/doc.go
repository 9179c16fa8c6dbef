// Package domain models the destination dataset: daily weather forecasts and
// hotel listings for a fixed list of French cities, and the scoring engine that
// merges them into a ranked master table.
//
// # Inputs
//
// Forecasts come from the OpenWeather One Call API, one row per city and day:
//
//	day_offset 0 is today, 1 is tomorrow, and so on up to 6.
//	temp_day is the daytime temperature in °C.
//	rain is the forecast rainfall volume in mm (0 when the API omits it).
//	humidity is relative humidity in percent.
//
// Listings come from the Booking search results page, up to 20 per city. The
// review score is kept as the scraped text ("8.6", "N/A"); it is numeric only
// when it parses as a float. URL, description and hotel coordinates are
// optional because detail-page enrichment may fail.
//
// # Planning Window
//
// Only days with day_offset >= 2 are scored. The first two days are assumed to
// be consumed by booking and travel lead time, so days 3-7 stand for the stay.
//
// # Scores
//
// Climate index (0-100, drives map colour), purely temperature driven:
//
//	T > target:  50 + (T - target) * hot
//	T <= target: 50 - (target - T) * cold
//
// 50 means the target temperature, 0 is freezing, 100 is scorching.
//
// Weather score (0-100, drives map size and ranking), all penalties applied:
//
//	100 - 2*tempPenalty - rain*rainMult - max(0, humidity-60)*humidityMult
//
// The temperature penalty is doubled to normalise it against the 100-point
// scale. Both scores are clamped to [0, 100].
//
// Defaults: target 25°C, hot 2.5, cold 1.8, rain 5.0, humidity 0.3 above 60%.
// They are tunable, see [Params].
//
// # Merge
//
// Scored days are averaged per city into a [CityWeatherSummary], left-joined
// onto the listings by exact city name, tagged with the canonical city id
// (1-based position in the city list) and ranked by weather score, city name
// and review score. Listings whose city has no weather keep null weather
// fields; they are never dropped.
package domain
