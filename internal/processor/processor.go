// Package processor runs the per-district pipeline: geocode the district
// centroid, fetch POIs and streets around it, attribute each POI to a street,
// and rank streets by attributed POI count.
package processor

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/streetsignal/streetsignal/internal/geo"
	"github.com/streetsignal/streetsignal/internal/model"
	"github.com/streetsignal/streetsignal/internal/overpass"
)

// Default search geometry.
const (
	DefaultRadiusM    = 900
	DefaultMaxAssignM = 200
)

// DistrictGeocoder resolves a postcode district to its centroid.
type DistrictGeocoder interface {
	ResolveDistrict(ctx context.Context, district string) (geo.Coordinate, bool, error)
}

// MapSource executes raw Overpass QL queries.
type MapSource interface {
	Query(ctx context.Context, ql string) (*overpass.Response, error)
}

// Options configures one processing run.
type Options struct {
	RadiusMeters    int                      `json:"radius_meters"`
	MaxAssignMeters float64                  `json:"max_assign_meters"`
	Query           overpass.POIQueryOptions `json:"query"`
}

func (o *Options) applyDefaults() {
	if o.RadiusMeters <= 0 {
		o.RadiusMeters = DefaultRadiusM
	}
	if o.MaxAssignMeters <= 0 {
		o.MaxAssignMeters = DefaultMaxAssignM
	}
}

// Processor turns one district into a DistrictResult.
type Processor struct {
	geocoder DistrictGeocoder
	maps     MapSource
}

// New creates a Processor over the given collaborators.
func New(geocoder DistrictGeocoder, maps MapSource) *Processor {
	return &Processor{geocoder: geocoder, maps: maps}
}

// Process runs the full pipeline for one district. It never returns an error:
// every failure is captured on the result so a batch run can continue past a
// bad district.
func (p *Processor) Process(ctx context.Context, district string, opts Options) model.DistrictResult {
	opts.applyDefaults()
	district = model.NormalizeDistrict(district)
	start := time.Now()

	center, ok, err := p.geocoder.ResolveDistrict(ctx, district)
	if err != nil {
		return model.FailedResult(district, err.Error())
	}
	if !ok {
		return model.FailedResult(district, "could not geocode district: "+district)
	}

	poiResp, err := p.maps.Query(ctx, overpass.BuildPOIQuery(center, opts.RadiusMeters, opts.Query))
	if err != nil {
		return model.FailedResult(district, err.Error())
	}
	pois := extractPOIs(poiResp, district)

	if len(pois) == 0 {
		zap.L().Info("district has no matching POIs",
			zap.String("district", district),
			zap.Duration("took", time.Since(start)),
		)
		return model.DistrictResult{
			District: district,
			Success:  true,
			Top:      model.PadTop(nil),
		}
	}

	streetResp, err := p.maps.Query(ctx, overpass.BuildStreetQuery(center, opts.RadiusMeters))
	if err != nil {
		return model.FailedResult(district, err.Error())
	}
	streets := extractStreets(streetResp)

	counts, assigned, order := attribute(pois, streets, opts.MaxAssignMeters)

	top := rank(counts, order)
	full := fullList(district, streets, counts, assigned)

	zap.L().Info("district processed",
		zap.String("district", district),
		zap.Int("pois", len(pois)),
		zap.Int("streets", len(streets)),
		zap.Duration("took", time.Since(start)),
	)

	return model.DistrictResult{
		District:     district,
		Success:      true,
		TotalPOIs:    len(pois),
		TotalStreets: len(streets),
		Top:          model.PadTop(top),
		AllStreets:   full,
	}
}

// extractPOIs converts raw map elements into POIs. Elements without a
// resolvable coordinate are dropped, as are elements whose postcode tag does
// not prefix-match the target district.
func extractPOIs(resp *overpass.Response, district string) []model.POI {
	var out []model.POI
	for _, el := range resp.Elements {
		coord, ok := elementCoord(el)
		if !ok {
			continue
		}
		postcode := el.Tags["addr:postcode"]
		if postcode != "" && !model.PostcodeMatchesDistrict(postcode, district) {
			continue
		}
		out = append(out, model.POI{
			ID:       el.ID,
			Type:     el.Type,
			Coord:    coord,
			Tags:     el.Tags,
			Street:   el.Tags["addr:street"],
			Postcode: postcode,
			Name:     el.Tags["name"],
			Shop:     el.Tags["shop"],
			Amenity:  el.Tags["amenity"],
			Office:   el.Tags["office"],
			Building: el.Tags["building"],
			Landuse:  el.Tags["landuse"],
		})
	}
	return out
}

// extractStreets keeps named ways with a centroid.
func extractStreets(resp *overpass.Response) []model.Street {
	var out []model.Street
	for _, el := range resp.Elements {
		name := el.Tags["name"]
		if name == "" || el.Center == nil {
			continue
		}
		out = append(out, model.Street{
			ID:          el.ID,
			Name:        name,
			Coord:       geo.Coordinate{Lat: el.Center.Lat, Lon: el.Center.Lon},
			HighwayType: el.Tags["highway"],
		})
	}
	return out
}

func elementCoord(el overpass.Element) (geo.Coordinate, bool) {
	if el.Type == "node" {
		return geo.Coordinate{Lat: el.Lat, Lon: el.Lon}, true
	}
	if el.Center != nil {
		return geo.Coordinate{Lat: el.Center.Lat, Lon: el.Center.Lon}, true
	}
	return geo.Coordinate{}, false
}

// attribute assigns each POI to a street name. A street-address hint wins
// outright with no distance check; otherwise the POI goes to the nearest
// street within maxAssignMeters. Exact distance ties keep the first street in
// iteration order because only a strictly smaller distance replaces the
// current best.
func attribute(pois []model.POI, streets []model.Street, maxAssignM float64) (map[string]int, map[string][]model.POI, []string) {
	counts := make(map[string]int)
	assigned := make(map[string][]model.POI)
	var order []string

	assign := func(name string, poi model.POI) {
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
		assigned[name] = append(assigned[name], poi)
	}

	for _, poi := range pois {
		if poi.Street != "" {
			assign(poi.Street, poi)
			continue
		}
		best := -1
		var bestDist float64
		for i, st := range streets {
			d := geo.Distance(poi.Coord, st.Coord)
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 && bestDist <= maxAssignM {
			assign(streets[best].Name, poi)
		}
	}
	return counts, assigned, order
}

// rank returns street names ordered by attributed count descending, up to
// TopN entries.
func rank(counts map[string]int, order []string) []model.StreetCount {
	names := make([]string, len(order))
	copy(names, order)
	sort.SliceStable(names, func(i, j int) bool {
		return counts[names[i]] > counts[names[j]]
	})

	var top []model.StreetCount
	for _, name := range names {
		if len(top) == model.TopN {
			break
		}
		top = append(top, model.StreetCount{Name: name, POICount: counts[name]})
	}
	return top
}

// fullList builds the complete ranked street list. Each distinct fetched
// street name appears at most once, zero-count streets are excluded, and a
// street is excluded when most of its postcode-tagged POIs point at a
// different district. Streets with no postcode-tagged POIs get the benefit of
// the doubt.
func fullList(district string, streets []model.Street, counts map[string]int, assigned map[string][]model.POI) []model.StreetCount {
	seen := make(map[string]bool)
	var out []model.StreetCount
	for _, st := range streets {
		if seen[st.Name] {
			continue
		}
		seen[st.Name] = true

		count := counts[st.Name]
		if count == 0 {
			continue
		}
		if !postcodeConsistent(district, assigned[st.Name]) {
			continue
		}
		out = append(out, model.StreetCount{Name: st.Name, POICount: count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].POICount > out[j].POICount
	})
	return out
}

// postcodeConsistent reports whether the POIs attributed to a street mostly
// carry postcodes of the target district. The outward code (text before the
// space) is compared exactly, so an "SE17 5PQ" POI counts against district
// "SE1" even though it survived the extraction prefix filter.
func postcodeConsistent(district string, pois []model.POI) bool {
	var inDistrict, other int
	for _, poi := range pois {
		if poi.Postcode == "" {
			continue
		}
		if outwardCode(poi.Postcode) == district {
			inDistrict++
		} else {
			other++
		}
	}
	if inDistrict == 0 && other == 0 {
		return true
	}
	return inDistrict >= other
}

func outwardCode(postcode string) string {
	outward, _, _ := strings.Cut(strings.TrimSpace(strings.ToUpper(postcode)), " ")
	return outward
}
