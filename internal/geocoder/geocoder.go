// Package geocoder resolves UK postcode districts and streets to coordinates
// using postcodes.io as the primary provider and Nominatim as the fallback,
// backed by a persistent cache.
package geocoder

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/streetsignal/streetsignal/internal/geo"
	"github.com/streetsignal/streetsignal/internal/geocache"
	"github.com/streetsignal/streetsignal/internal/model"
	"github.com/streetsignal/streetsignal/internal/provider"
	"github.com/streetsignal/streetsignal/internal/resilience"
)

const (
	defaultPostcodesBaseURL = "https://api.postcodes.io"
	defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent        = "streetsignal/1.0 (hello@streetsignal.dev)"
)

// Geocoder resolves districts, streets, and area labels.
type Geocoder struct {
	httpClient       *http.Client
	cache            geocache.Store
	limiter          *rate.Limiter
	postcodesBaseURL string
	nominatimBaseURL string
	userAgent        string
	retry            resilience.RetryConfig
}

// Option configures a Geocoder.
type Option func(*Geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Geocoder) { g.httpClient = hc }
}

// WithBaseURLs overrides the provider base URLs; tests point these at
// httptest servers.
func WithBaseURLs(postcodes, nominatim string) Option {
	return func(g *Geocoder) {
		g.postcodesBaseURL = postcodes
		g.nominatimBaseURL = nominatim
	}
}

// WithUserAgent sets the identifying User-Agent sent on every request.
// Nominatim's usage policy requires one.
func WithUserAgent(ua string) Option {
	return func(g *Geocoder) { g.userAgent = ua }
}

// WithLimiter replaces the shared geocoding rate limiter.
func WithLimiter(lim *rate.Limiter) Option {
	return func(g *Geocoder) { g.limiter = lim }
}

// WithRetry replaces the retry profile.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *Geocoder) { g.retry = cfg }
}

// New creates a Geocoder writing through the given cache store.
func New(cache geocache.Store, opts ...Option) *Geocoder {
	g := &Geocoder{
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		cache:            cache,
		limiter:          provider.NewGeocodingLimiter(),
		postcodesBaseURL: defaultPostcodesBaseURL,
		nominatimBaseURL: defaultNominatimBaseURL,
		userAgent:        defaultUserAgent,
		retry:            resilience.GeocodeRetry(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ResolveDistrict resolves a postcode district to its centroid. A false
// second return means the district could not be found anywhere; that is not
// an error.
func (g *Geocoder) ResolveDistrict(ctx context.Context, district string) (geo.Coordinate, bool, error) {
	district = model.NormalizeDistrict(district)

	if coord, ok, err := g.cache.GetDistrict(ctx, district); err != nil {
		return geo.Coordinate{}, false, err
	} else if ok {
		zap.L().Debug("district cache hit", zap.String("district", district))
		return coord, true, nil
	}

	// Primary: postcodes.io outcode centroid. Failures here are absorbed and
	// we fall through to Nominatim.
	coord, ok, err := g.districtFromPostcodesIO(ctx, district)
	if err != nil {
		zap.L().Warn("postcodes.io lookup failed, falling back to nominatim",
			zap.String("district", district),
			zap.Error(err),
		)
	} else if ok {
		if err := g.cache.SetDistrict(ctx, district, coord); err != nil {
			return geo.Coordinate{}, false, err
		}
		return coord, true, nil
	}

	coord, ok, err = g.districtFromNominatim(ctx, district)
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	if !ok {
		return geo.Coordinate{}, false, nil
	}
	if err := g.cache.SetDistrict(ctx, district, coord); err != nil {
		return geo.Coordinate{}, false, err
	}
	return coord, true, nil
}

// districtFromNominatim free-text searches the district and prefers the
// centroid of candidates whose postcode exactly extends the district code.
func (g *Geocoder) districtFromNominatim(ctx context.Context, district string) (geo.Coordinate, bool, error) {
	results, err := g.search(ctx, district+", London, UK", 10)
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	if len(results) == 0 {
		return geo.Coordinate{}, false, nil
	}

	var exact []geo.Coordinate
	for _, r := range results {
		coord, err := r.coordinate()
		if err != nil {
			continue
		}
		// Exact match means the postcode extends the district with a space:
		// "SE1 7PB" qualifies for "SE1", "SE17 5PQ" does not.
		pc := strings.ToUpper(strings.TrimSpace(r.Address.Postcode))
		if strings.HasPrefix(pc, district+" ") {
			exact = append(exact, coord)
		}
	}

	if len(exact) > 0 {
		var sumLat, sumLon float64
		for _, c := range exact {
			sumLat += c.Lat
			sumLon += c.Lon
		}
		n := float64(len(exact))
		zap.L().Debug("district centroid from exact matches",
			zap.String("district", district),
			zap.Int("matches", len(exact)),
		)
		return geo.Coordinate{Lat: sumLat / n, Lon: sumLon / n}, true, nil
	}

	// Last resort: first candidate.
	coord, err := results[0].coordinate()
	if err != nil {
		return geo.Coordinate{}, false, eris.Wrap(err, "geocoder: parse first candidate")
	}
	return coord, true, nil
}

// ResolveStreet resolves a street within a district to a coordinate using the
// first free-text search result.
func (g *Geocoder) ResolveStreet(ctx context.Context, postcode, street string) (geo.Coordinate, bool, error) {
	query := street + ", " + model.NormalizeDistrict(postcode) + ", London, UK"
	results, err := g.search(ctx, query, 1)
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	if len(results) == 0 {
		return geo.Coordinate{}, false, nil
	}
	coord, err := results[0].coordinate()
	if err != nil {
		return geo.Coordinate{}, false, eris.Wrap(err, "geocoder: parse street result")
	}
	return coord, true, nil
}

// ResolveArea reverse-geocodes a coordinate to a neighbourhood-level label.
// Returns "" when no suitable address field is present.
func (g *Geocoder) ResolveArea(ctx context.Context, coord geo.Coordinate) (string, error) {
	addr, err := g.reverse(ctx, coord)
	if err != nil {
		return "", err
	}
	for _, field := range []string{
		addr.Neighbourhood,
		addr.Suburb,
		addr.CityDistrict,
		addr.Borough,
		addr.Town,
		addr.City,
	} {
		if field != "" {
			return field, nil
		}
	}
	return "", nil
}

// AreaResult is the output of AreaAndCoords.
type AreaResult struct {
	Area  string         `json:"area"`
	Coord geo.Coordinate `json:"coord"`
	Found bool           `json:"found"`
}

// AreaAndCoords resolves a street's coordinates and area label, cache-first.
// Failed lookups are cached as negative entries so the provider is asked
// only once per street.
func (g *Geocoder) AreaAndCoords(ctx context.Context, postcode, street string) (AreaResult, error) {
	if entry, err := g.cache.GetStreet(ctx, postcode, street); err != nil {
		return AreaResult{}, err
	} else if entry != nil {
		zap.L().Debug("street cache hit",
			zap.String("postcode", postcode),
			zap.String("street", street),
			zap.Bool("found", entry.Found),
		)
		return AreaResult{Area: entry.Area, Coord: entry.Coord, Found: entry.Found}, nil
	}

	coord, ok, err := g.ResolveStreet(ctx, postcode, street)
	if err != nil {
		return AreaResult{}, err
	}
	if !ok {
		if err := g.cache.SetStreet(ctx, postcode, street, geocache.StreetEntry{Found: false}); err != nil {
			return AreaResult{}, err
		}
		return AreaResult{}, nil
	}

	area, err := g.ResolveArea(ctx, coord)
	if err != nil {
		return AreaResult{}, err
	}

	entry := geocache.StreetEntry{Found: true, Coord: coord, Area: area}
	if err := g.cache.SetStreet(ctx, postcode, street, entry); err != nil {
		return AreaResult{}, err
	}
	return AreaResult{Area: area, Coord: coord, Found: true}, nil
}
