package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

// ResultSource exposes the most recent successful pipeline run.
type ResultSource interface {
	LatestResult() (runID string, result domain.Result, ok bool)
}

// Server exposes health, readiness, metrics, and the destination ranking.
type Server struct {
	httpServer *http.Server
	results    ResultSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /api/destinations routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, results ResultSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/destinations", s.handleDestinations)
	mux.HandleFunc("GET /api/destinations/{city}/hotels", s.handleHotels)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type destinationsResponse struct {
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Cities      []domain.CityRanking `json:"cities"`
}

type hotel struct {
	HotelName   string   `json:"hotel_name"`
	URL         *string  `json:"url,omitempty"`
	Score       *float64 `json:"score"`
	Description *string  `json:"description,omitempty"`
	HotelLat    *float64 `json:"hotel_lat,omitempty"`
	HotelLon    *float64 `json:"hotel_lon,omitempty"`
}

type hotelsResponse struct {
	City         string   `json:"city"`
	CityID       *int     `json:"city_id"`
	WeatherScore *float64 `json:"weather_score"`
	Hotels       []hotel  `json:"hotels"`
}

// handleDestinations returns the city ranking of the latest run. ?limit=N
// keeps the N best cities.
func (s *Server) handleDestinations(w http.ResponseWriter, r *http.Request) {
	runID, result, ok := s.results.LatestResult()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no completed run yet")
		return
	}

	ranking := domain.RankCities(result.Rows)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit < len(ranking) {
			ranking = ranking[:limit]
		}
	}
	if ranking == nil {
		ranking = []domain.CityRanking{}
	}

	writeJSON(w, http.StatusOK, destinationsResponse{
		RunID:       runID,
		GeneratedAt: result.GeneratedAt,
		Cities:      ranking,
	})
}

// handleHotels returns one city's listings in ranked order.
func (s *Server) handleHotels(w http.ResponseWriter, r *http.Request) {
	_, result, ok := s.results.LatestResult()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no completed run yet")
		return
	}

	city := r.PathValue("city")
	resp := hotelsResponse{City: city, Hotels: []hotel{}}
	found := false
	for _, row := range result.Rows {
		if row.Listing.City != city {
			continue
		}
		if !found {
			resp.CityID = row.CityID
			resp.WeatherScore = row.WeatherScore()
			found = true
		}
		resp.Hotels = append(resp.Hotels, hotel{
			HotelName:   row.Listing.HotelName,
			URL:         row.Listing.URL,
			Score:       row.Score,
			Description: row.Listing.Description,
			HotelLat:    row.Listing.HotelLat,
			HotelLon:    row.Listing.HotelLon,
		})
	}
	if !found {
		writeError(w, http.StatusNotFound, "no listings for city "+strconv.Quote(city))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
