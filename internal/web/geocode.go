package web

import (
	"encoding/json"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/streetsignal/streetsignal/internal/model"
)

// Bulk lookup bounds.
const (
	maxBulkItems    = 50
	bulkConcurrency = 4
)

func (s *Server) handleGeocodeDistrict(w http.ResponseWriter, r *http.Request) {
	district := model.NormalizeDistrict(r.URL.Query().Get("district"))
	if district == "" {
		respondError(w, http.StatusBadRequest, "district is required")
		return
	}

	coord, ok, err := s.geocoder.ResolveDistrict(r.Context(), district)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"district": district,
			"found":    false,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"district": district,
		"found":    true,
		"lat":      coord.Lat,
		"lon":      coord.Lon,
	})
}

type streetLookup struct {
	Postcode string `json:"postcode"`
	Street   string `json:"street"`
}

type streetLookupResult struct {
	Postcode string  `json:"postcode"`
	Street   string  `json:"street"`
	Found    bool    `json:"found"`
	Area     string  `json:"area,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (s *Server) lookupStreet(r *http.Request, item streetLookup) streetLookupResult {
	out := streetLookupResult{Postcode: item.Postcode, Street: item.Street}
	res, err := s.geocoder.AreaAndCoords(r.Context(), item.Postcode, item.Street)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Found = res.Found
	if res.Found {
		out.Area = res.Area
		out.Lat = res.Coord.Lat
		out.Lon = res.Coord.Lon
	}
	return out
}

func (s *Server) handleGeocodeStreet(w http.ResponseWriter, r *http.Request) {
	var req streetLookup
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Postcode == "" || req.Street == "" {
		respondError(w, http.StatusBadRequest, "postcode and street are required")
		return
	}
	respondJSON(w, http.StatusOK, s.lookupStreet(r, req))
}

func (s *Server) handleGeocodeBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []streetLookup `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items is required")
		return
	}
	if len(req.Items) > maxBulkItems {
		respondError(w, http.StatusBadRequest, "too many items (max 50)")
		return
	}

	results := make([]streetLookupResult, len(req.Items))
	g, _ := errgroup.WithContext(r.Context())
	g.SetLimit(bulkConcurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			results[i] = s.lookupStreet(r, item)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	respondJSON(w, http.StatusOK, map[string]any{
		"total":   len(results),
		"results": results,
	})
}
