// Package web exposes the job driver and geocoding operations over HTTP.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/streetsignal/streetsignal/internal/geo"
	"github.com/streetsignal/streetsignal/internal/geocoder"
	"github.com/streetsignal/streetsignal/internal/job"
	"github.com/streetsignal/streetsignal/internal/processor"
)

// Geocoder is the subset of geocoding operations the API exposes.
type Geocoder interface {
	ResolveDistrict(ctx context.Context, district string) (geo.Coordinate, bool, error)
	AreaAndCoords(ctx context.Context, postcode, street string) (geocoder.AreaResult, error)
}

// Server routes HTTP requests to the job manager and geocoder.
type Server struct {
	manager  *job.Manager
	geocoder Geocoder
	defaults processor.Options
}

// NewServer creates a Server. The defaults supply search geometry for start
// requests that omit it.
func NewServer(manager *job.Manager, gc Geocoder, defaults processor.Options) *Server {
	return &Server{manager: manager, geocoder: gc, defaults: defaults}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/start", s.handleStart)
	r.Post("/step", s.handleStep)
	r.Get("/download", s.handleDownload)
	r.Post("/reset", s.handleReset)
	r.Get("/api/job", s.handleJobStatus)
	r.Get("/api/geocode/district", s.handleGeocodeDistrict)
	r.Post("/api/geocode/street", s.handleGeocodeStreet)
	r.Post("/api/geocode/bulk", s.handleGeocodeBulk)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.manager.Reset()
	respondJSON(w, http.StatusOK, map[string]string{"message": "job reset"})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.manager.Current()
	if !ok {
		respondError(w, http.StatusNotFound, "no active job")
		return
	}
	respondJSON(w, http.StatusOK, j)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	results := s.manager.Results()
	if len(results) == 0 {
		respondError(w, http.StatusBadRequest, "no results to download")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			"attachment; filename="+job.ExportFilename("csv", time.Now()))
		if err := job.WriteCSV(w, results); err != nil {
			zap.L().Error("csv export failed", zap.Error(err))
		}
	case "xlsx":
		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			"attachment; filename="+job.ExportFilename("xlsx", time.Now()))
		if err := job.WriteXLSX(w, results); err != nil {
			zap.L().Error("xlsx export failed", zap.Error(err))
		}
	default:
		respondError(w, http.StatusBadRequest, "format must be csv or xlsx")
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
