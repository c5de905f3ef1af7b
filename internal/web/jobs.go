package web

import (
	"encoding/json"
	"net/http"

	"github.com/streetsignal/streetsignal/internal/job"
	"github.com/streetsignal/streetsignal/internal/overpass"
	"github.com/streetsignal/streetsignal/internal/preset"
)

// startRequest accepts districts either as a list or as raw comma/newline
// separated text.
type startRequest struct {
	Districts         json.RawMessage `json:"districts"`
	Preset            string          `json:"preset"`
	RadiusM           int             `json:"radius_m"`
	MaxAssignM        float64         `json:"max_assign_m"`
	IncludeAllShops   bool            `json:"include_all_shops"`
	ShopTypes         []string        `json:"shop_types"`
	Amenities         []string        `json:"amenities"`
	PropertySelectors []string        `json:"property_selectors"`
}

func (req *startRequest) districts() ([]string, bool) {
	var list []string
	if err := json.Unmarshal(req.Districts, &list); err == nil {
		var out []string
		for _, d := range list {
			out = append(out, job.ParseDistricts(d)...)
		}
		return out, true
	}
	var text string
	if err := json.Unmarshal(req.Districts, &text); err == nil {
		return job.ParseDistricts(text), true
	}
	return nil, false
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	districts, ok := req.districts()
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid districts format")
		return
	}
	if len(districts) == 0 {
		respondError(w, http.StatusBadRequest, "no districts provided")
		return
	}

	if req.Preset == "" {
		req.Preset = preset.Custom
	}

	opts := s.defaults
	if req.RadiusM > 0 {
		opts.RadiusMeters = req.RadiusM
	}
	if req.MaxAssignM > 0 {
		opts.MaxAssignMeters = req.MaxAssignM
	}
	if req.Preset != preset.Custom {
		opts.Query = preset.Get(req.Preset).QueryOptions()
	} else {
		opts.Query = overpass.POIQueryOptions{
			IncludeAllShops:   req.IncludeAllShops,
			ShopTypes:         req.ShopTypes,
			Amenities:         req.Amenities,
			PropertySelectors: req.PropertySelectors,
		}
	}

	j, err := s.manager.Start(districts, req.Preset, opts)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"job_id":          j.ID,
		"total_districts": len(j.Districts),
		"message":         "job created",
	})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	res, err := s.manager.Step(r.Context())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}
