// Package booking scrapes hotel listings and hotel detail pages from
// Booking.com search results.
package booking

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/couchcryptid/destination-etl/internal/adapter/httpclient"
	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/observability"
)

const (
	// NoDescription marks a search card without address or distance text.
	NoDescription = "No description available"
	// NoScore marks a card without a parsable review score.
	NoScore = "N/A"

	unknownHotel = "Unknown"
)

var (
	scorePattern  = regexp.MustCompile(`\d+[.,]\d+`)
	atlasPattern  = regexp.MustCompile(`data-atlas-latlng="([0-9.-]+),([0-9.-]+)"`)
	latPattern    = regexp.MustCompile(`"latitude"[:\s]+"?([0-9.-]+)"?`)
	lonPattern    = regexp.MustCompile(`"longitude"[:\s]+"?([0-9.-]+)"?`)
	descSelectors = []string{
		`[data-testid="property-description"]`,
		`#property_description_content`,
		`.hotel_description_wrapper_exp`,
	}
)

// Client fetches and parses Booking.com pages.
type Client struct {
	http    *resty.Client
	base    *url.URL
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a scraper for baseURL (normally https://www.booking.com).
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse booking base url: %w", err)
	}
	hc := httpclient.New(baseURL, timeout, userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetHeader("Accept-Language", "en-GB,en;q=0.9")
	return &Client{http: hc, base: base, metrics: metrics, logger: logger}, nil
}

// SearchCity returns up to limit listings from the first search results page
// for city, in page order.
func (c *Client) SearchCity(ctx context.Context, city string, limit int) ([]domain.HotelListing, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ss":           city,
			"group_adults": "2",
		}).
		Get("/searchresults.html")
	doc, err := c.document(resp, err, "search")
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", city, err)
	}
	listings := c.parseSearch(doc, city, limit)
	c.logger.Debug("search results parsed", "city", city, "listings", len(listings))
	return listings, nil
}

func (c *Client) parseSearch(doc *goquery.Document, city string, limit int) []domain.HotelListing {
	var listings []domain.HotelListing
	doc.Find(`div[data-testid="property-card"]`).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(listings) >= limit {
			return false
		}
		listing := domain.HotelListing{
			City:      city,
			HotelName: unknownHotel,
			Score:     NoScore,
		}
		if name := strings.TrimSpace(card.Find(`div[data-testid="title"]`).First().Text()); name != "" {
			listing.HotelName = name
		}
		if href, ok := card.Find(`a[data-testid="title-link"]`).First().Attr("href"); ok {
			link := c.resolve(href)
			listing.URL = &link
		}
		if s := card.Find(`div[data-testid="review-score"]`); s.Length() > 0 {
			listing.Score = CleanScore(s.First().Text())
		}

		var parts []string
		for _, sel := range []string{`span[data-testid="address"]`, `span[data-testid="distance"]`} {
			if el := card.Find(sel); el.Length() > 0 {
				parts = append(parts, strings.TrimSpace(el.First().Text()))
			}
		}
		desc := NoDescription
		if len(parts) > 0 {
			desc = strings.Join(parts, " - ")
		}
		listing.Description = &desc

		listings = append(listings, listing)
		return true
	})
	return listings
}

// HotelDetails fetches a hotel page. pageURL may be absolute or relative to
// the base URL.
func (c *Client) HotelDetails(ctx context.Context, pageURL string) (domain.HotelDetails, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.resolve(pageURL))
	doc, err := c.document(resp, err, "detail")
	if err != nil {
		return domain.HotelDetails{}, fmt.Errorf("hotel page: %w", err)
	}
	return ParseDetails(string(resp.Body()), doc), nil
}

// ParseDetails reads coordinates from the raw page and the description from
// the first non-empty description block.
func ParseDetails(html string, doc *goquery.Document) domain.HotelDetails {
	var d domain.HotelDetails
	if m := atlasPattern.FindStringSubmatch(html); m != nil {
		d.Lat, d.Lon = parseCoordinate(m[1]), parseCoordinate(m[2])
	} else if lat, lon := latPattern.FindStringSubmatch(html), lonPattern.FindStringSubmatch(html); lat != nil && lon != nil {
		d.Lat, d.Lon = parseCoordinate(lat[1]), parseCoordinate(lon[1])
	}
	if d.Lat == nil || d.Lon == nil {
		d.Lat, d.Lon = nil, nil
	}

	d.Description = domain.DescriptionUnavailable
	for _, sel := range descSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			d.Description = strings.ReplaceAll(text, "\n", " ")
			break
		}
	}
	return d
}

// CleanScore extracts the first decimal number from a review-score block
// ("Scored 8,7 Excellent" gives "8.7"), or "N/A".
func CleanScore(raw string) string {
	m := scorePattern.FindString(raw)
	if m == "" {
		return NoScore
	}
	return strings.Replace(m, ",", ".", 1)
}

func parseCoordinate(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (c *Client) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) document(resp *resty.Response, err error, page string) (*goquery.Document, error) {
	if err != nil {
		c.metrics.ScrapeRequests.WithLabelValues(page, "error").Inc()
		return nil, err
	}
	if resp.IsError() {
		c.metrics.ScrapeRequests.WithLabelValues(page, "error").Inc()
		return nil, fmt.Errorf("status %d", resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		c.metrics.ScrapeRequests.WithLabelValues(page, "error").Inc()
		return nil, fmt.Errorf("parse html: %w", err)
	}
	c.metrics.ScrapeRequests.WithLabelValues(page, "success").Inc()
	return doc, nil
}
