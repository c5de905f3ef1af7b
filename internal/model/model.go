// Package model defines the domain types shared across the streetsignal
// pipeline: postcode districts, points of interest, streets, and per-district
// processing results.
package model

import (
	"strings"

	"github.com/streetsignal/streetsignal/internal/geo"
)

// TopN is the number of ranked street slots in a DistrictResult.
const TopN = 3

// NormalizeDistrict uppercases and strips whitespace from a postcode district
// identifier so "se1 " and "SE1" compare equal.
func NormalizeDistrict(district string) string {
	return strings.ToUpper(strings.TrimSpace(district))
}

// NormalizePostcode uppercases a full postcode and removes all internal
// spaces, e.g. "se1 7pb" -> "SE17PB".
func NormalizePostcode(postcode string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(postcode)), " ", "")
}

// PostcodeMatchesDistrict reports whether a raw postcode belongs to the given
// district by prefix. The prefix rule deliberately lets a sub-district such as
// "SE17" match district "SE1".
func PostcodeMatchesDistrict(postcode, district string) bool {
	return strings.HasPrefix(NormalizePostcode(postcode), NormalizeDistrict(district))
}

// POI is one retail/commercial/amenity entity extracted from a map-data
// response. Immutable after extraction.
type POI struct {
	ID       int64             `json:"id"`
	Type     string            `json:"type"`
	Coord    geo.Coordinate    `json:"coord"`
	Tags     map[string]string `json:"tags,omitempty"`
	Street   string            `json:"street,omitempty"`
	Postcode string            `json:"postcode,omitempty"`
	Name     string            `json:"name,omitempty"`
	Shop     string            `json:"shop,omitempty"`
	Amenity  string            `json:"amenity,omitempty"`
	Office   string            `json:"office,omitempty"`
	Building string            `json:"building,omitempty"`
	Landuse  string            `json:"landuse,omitempty"`
}

// Street is a named road segment with a centroid coordinate.
type Street struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Coord       geo.Coordinate `json:"coord"`
	HighwayType string         `json:"highway_type,omitempty"`
}

// StreetCount pairs a street name with its attributed POI count.
type StreetCount struct {
	Name     string `json:"name"`
	POICount int    `json:"poi_count"`
}

// DistrictResult is the outcome of processing one district. Either Success is
// true and the counts/rankings are populated, or Success is false and Error
// holds a human-readable reason. It is never both.
type DistrictResult struct {
	District     string        `json:"district"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	TotalPOIs    int           `json:"total_pois"`
	TotalStreets int           `json:"total_streets_found"`
	Top          []StreetCount `json:"top_streets"`
	AllStreets   []StreetCount `json:"all_streets,omitempty"`
}

// FailedResult builds a failure DistrictResult with empty top-street slots.
func FailedResult(district, errMsg string) DistrictResult {
	return DistrictResult{
		District: NormalizeDistrict(district),
		Success:  false,
		Error:    errMsg,
		Top:      PadTop(nil),
	}
}

// PadTop pads (or truncates) a ranked street list to exactly TopN entries,
// filling with empty-name/zero-count slots.
func PadTop(top []StreetCount) []StreetCount {
	out := make([]StreetCount, 0, TopN)
	for i := 0; i < TopN; i++ {
		if i < len(top) {
			out = append(out, top[i])
		} else {
			out = append(out, StreetCount{})
		}
	}
	return out
}
