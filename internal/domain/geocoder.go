package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	FormattedAddress string  `json:"formatted_address"`
	Confidence       float64 `json:"confidence"` // 0.0–1.0 provider confidence score
}

// Found reports whether the provider returned a coordinate.
func (r GeocodingResult) Found() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Geocoder resolves place names to coordinates.
type Geocoder interface {
	// ForwardGeocode converts a place name within a country to coordinates.
	// An empty result with a nil error means "not found".
	ForwardGeocode(ctx context.Context, name, country string) (GeocodingResult, error)
}
