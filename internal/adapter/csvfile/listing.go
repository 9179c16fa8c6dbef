package csvfile

import (
	"errors"
	"io"

	"github.com/couchcryptid/destination-etl/internal/adapter/atomicfile"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

var listingHeader = []string{"city", "hotel_name", "url", "score", "description", "hotel_lat", "hotel_lon"}

// ReadListings loads a raw or enriched listing table. Only the city and
// hotel_name columns are required; the enrichment columns may be absent. A
// row with an empty city is kept and simply matches no city. Unparsable
// coordinates are logged and read as missing.
func ReadListings(path string) ([]domain.HotelListing, error) {
	t, err := readTable(path, "city", "hotel_name")
	if err != nil {
		return nil, err
	}
	return t.listings(), nil
}

// ReadListingsResume loads the enriched table when it exists, so an
// interrupted enrichment continues where it stopped, and falls back to the
// raw table otherwise. resumed reports which file was read.
func ReadListingsResume(enrichedPath, rawPath string) (listings []domain.HotelListing, resumed bool, err error) {
	listings, err = ReadListings(enrichedPath)
	if err == nil {
		return listings, true, nil
	}
	if !errors.Is(err, ErrInputNotFound) {
		return nil, false, err
	}
	listings, err = ReadListings(rawPath)
	return listings, false, err
}

func (t *table) listings() []domain.HotelListing {
	out := make([]domain.HotelListing, 0, len(t.records))
	for i, rec := range t.records {
		l := domain.HotelListing{
			City:        t.nullableText(rec, "city"),
			HotelName:   t.nullableText(rec, "hotel_name"),
			URL:         t.optString(rec, "url"),
			Description: t.optString(rec, "description"),
			// Scraped text such as "N/A" is kept; ReviewScore decides what
			// counts as a number.
			Score:    t.get(rec, "score"),
			HotelLat: t.lenientFloat(rec, i, "hotel_lat"),
			HotelLon: t.lenientFloat(rec, i, "hotel_lon"),
		}
		out = append(out, l)
	}
	return out
}

// nullableText returns the cell, or "" when it holds a null token.
func (t *table) nullableText(rec []string, col string) string {
	s := t.get(rec, col)
	if isNull(s) {
		return ""
	}
	return s
}

// WriteListings replaces the listing table at path.
func WriteListings(path string, listings []domain.HotelListing) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return writeCSV(w, listingHeader, func(emit func([]string) error) error {
			for _, l := range listings {
				if err := emit([]string{
					l.City,
					l.HotelName,
					formatOptString(l.URL),
					l.Score,
					formatOptString(l.Description),
					formatOptFloat(l.HotelLat),
					formatOptFloat(l.HotelLon),
				}); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
