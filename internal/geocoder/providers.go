package geocoder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/streetsignal/streetsignal/internal/geo"
	"github.com/streetsignal/streetsignal/internal/provider"
	"github.com/streetsignal/streetsignal/internal/resilience"
)

// outcodeResponse is the postcodes.io outcode lookup payload.
type outcodeResponse struct {
	Status int `json:"status"`
	Result *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"result"`
}

// searchResult is one Nominatim /search candidate. Nominatim serializes
// coordinates as strings.
type searchResult struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	Postcode      string `json:"postcode"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	CityDistrict  string `json:"city_district"`
	Borough       string `json:"borough"`
	Town          string `json:"town"`
	City          string `json:"city"`
}

type reverseResponse struct {
	Address nominatimAddress `json:"address"`
}

func (r searchResult) coordinate() (geo.Coordinate, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return geo.Coordinate{}, eris.Wrapf(err, "geocoder: parse lat %q", r.Lat)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return geo.Coordinate{}, eris.Wrapf(err, "geocoder: parse lon %q", r.Lon)
	}
	return geo.Coordinate{Lat: lat, Lon: lon}, nil
}

// districtFromPostcodesIO looks up the pre-computed outcode centroid. A false
// return with nil error means the provider answered but had no match.
func (g *Geocoder) districtFromPostcodesIO(ctx context.Context, district string) (geo.Coordinate, bool, error) {
	reqURL := g.postcodesBaseURL + "/outcodes/" + url.PathEscape(district)

	resp, err := resilience.DoVal(ctx, g.retryWith("postcodes.io", "outcode"), func(ctx context.Context) (*outcodeResponse, error) {
		body, err := g.get(ctx, reqURL, false)
		if err != nil {
			return nil, err
		}
		var out outcodeResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "geocoder: parse outcode response")
		}
		return &out, nil
	})
	if err != nil {
		return geo.Coordinate{}, false, err
	}

	if resp.Status != http.StatusOK || resp.Result == nil {
		return geo.Coordinate{}, false, nil
	}
	return geo.Coordinate{Lat: resp.Result.Latitude, Lon: resp.Result.Longitude}, true, nil
}

// search runs a Nominatim free-text search with address details.
func (g *Geocoder) search(ctx context.Context, query string, limit int) ([]searchResult, error) {
	params := url.Values{
		"q":              {query},
		"format":         {"jsonv2"},
		"limit":          {strconv.Itoa(limit)},
		"addressdetails": {"1"},
	}
	reqURL := g.nominatimBaseURL + "/search?" + params.Encode()

	return resilience.DoVal(ctx, g.retryWith("nominatim", "search"), func(ctx context.Context) ([]searchResult, error) {
		body, err := g.get(ctx, reqURL, true)
		if err != nil {
			return nil, err
		}
		var results []searchResult
		if err := json.Unmarshal(body, &results); err != nil {
			return nil, eris.Wrap(err, "geocoder: parse search response")
		}
		return results, nil
	})
}

// reverse runs a Nominatim reverse lookup at neighbourhood zoom.
func (g *Geocoder) reverse(ctx context.Context, coord geo.Coordinate) (nominatimAddress, error) {
	params := url.Values{
		"lat":            {strconv.FormatFloat(coord.Lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(coord.Lon, 'f', -1, 64)},
		"zoom":           {"16"},
		"addressdetails": {"1"},
	}
	reqURL := g.nominatimBaseURL + "/reverse?" + params.Encode()

	resp, err := resilience.DoVal(ctx, g.retryWith("nominatim", "reverse"), func(ctx context.Context) (*reverseResponse, error) {
		body, err := g.get(ctx, reqURL, true)
		if err != nil {
			return nil, err
		}
		var out reverseResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "geocoder: parse reverse response")
		}
		return &out, nil
	})
	if err != nil {
		return nominatimAddress{}, err
	}
	return resp.Address, nil
}

// get performs one GET with the identifying User-Agent. Rate limiting applies
// to Nominatim only; postcodes.io has no usage cap at our volumes.
func (g *Geocoder) get(ctx context.Context, reqURL string, limited bool) ([]byte, error) {
	if limited {
		if err := provider.Wait(ctx, g.limiter); err != nil {
			return nil, eris.Wrap(err, "geocoder: rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocoder: build request")
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocoder: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocoder: status %d from %s", resp.StatusCode, reqURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return body, nil
}

func (g *Geocoder) retryWith(providerName, operation string) resilience.RetryConfig {
	cfg := g.retry
	cfg.OnRetry = resilience.RetryLogger(providerName, operation)
	return cfg
}
