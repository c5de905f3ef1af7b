package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetsignal/streetsignal/internal/geo"
	"github.com/streetsignal/streetsignal/internal/model"
	"github.com/streetsignal/streetsignal/internal/overpass"
)

type fakeGeocoder struct {
	coord geo.Coordinate
	found bool
	err   error
}

func (f *fakeGeocoder) ResolveDistrict(context.Context, string) (geo.Coordinate, bool, error) {
	return f.coord, f.found, f.err
}

// fakeMapSource answers POI and street queries separately and records how
// many of each it served.
type fakeMapSource struct {
	pois    *overpass.Response
	streets *overpass.Response
	poiErr  error

	poiQueries    int
	streetQueries int
}

func (f *fakeMapSource) Query(_ context.Context, ql string) (*overpass.Response, error) {
	if strings.Contains(ql, `["highway"]`) {
		f.streetQueries++
		return f.streets, nil
	}
	f.poiQueries++
	if f.poiErr != nil {
		return nil, f.poiErr
	}
	return f.pois, nil
}

func node(id int64, lat, lon float64, tags map[string]string) overpass.Element {
	return overpass.Element{Type: "node", ID: id, Lat: lat, Lon: lon, Tags: tags}
}

func streetWay(id int64, name string, lat, lon float64) overpass.Element {
	return overpass.Element{
		Type:   "way",
		ID:     id,
		Center: &overpass.Center{Lat: lat, Lon: lon},
		Tags:   map[string]string{"highway": "residential", "name": name},
	}
}

func elements(els ...overpass.Element) *overpass.Response {
	return &overpass.Response{Elements: els}
}

var testCenter = geo.Coordinate{Lat: 51.5, Lon: -0.08}

func TestProcess_GeocodeFailure(t *testing.T) {
	p := New(&fakeGeocoder{found: false}, &fakeMapSource{})

	res := p.Process(context.Background(), "zz99", Options{})

	assert.False(t, res.Success)
	assert.Equal(t, "could not geocode district: ZZ99", res.Error)
	assert.Equal(t, "ZZ99", res.District)
	assert.Zero(t, res.TotalPOIs)
	require.Len(t, res.Top, model.TopN)
	assert.Empty(t, res.Top[0].Name)
}

func TestProcess_GeocoderErrorContained(t *testing.T) {
	p := New(&fakeGeocoder{err: errors.New("provider exploded")}, &fakeMapSource{})

	res := p.Process(context.Background(), "SE1", Options{})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "provider exploded")
}

func TestProcess_QueryErrorContained(t *testing.T) {
	maps := &fakeMapSource{poiErr: errors.New("interpreter timeout")}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "interpreter timeout")
}

func TestProcess_ZeroPOIsShortCircuits(t *testing.T) {
	maps := &fakeMapSource{pois: elements()}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	assert.True(t, res.Success)
	assert.Zero(t, res.TotalPOIs)
	assert.Zero(t, res.TotalStreets)
	require.Len(t, res.Top, model.TopN)
	for _, slot := range res.Top {
		assert.Empty(t, slot.Name)
		assert.Zero(t, slot.POICount)
	}
	assert.Equal(t, 1, maps.poiQueries)
	assert.Zero(t, maps.streetQueries, "street query must not run for an empty district")
}

func TestProcess_PostcodeFilterOnExtraction(t *testing.T) {
	maps := &fakeMapSource{
		pois: elements(
			node(1, 51.5, -0.08, map[string]string{"shop": "bakery", "addr:postcode": "SE1 7PB", "addr:street": "Union Street"}),
			node(2, 51.5, -0.08, map[string]string{"shop": "bakery", "addr:postcode": "SE11 5PQ", "addr:street": "Union Street"}),
			node(3, 51.5, -0.08, map[string]string{"shop": "bakery", "addr:postcode": "SW1A 1AA", "addr:street": "Union Street"}),
			node(4, 51.5, -0.08, map[string]string{"shop": "bakery", "addr:street": "Union Street"}),
		),
		streets: elements(),
	}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	require.True(t, res.Success)
	// SE1 and sub-district SE11 pass, SW1A is dropped, untagged passes.
	assert.Equal(t, 3, res.TotalPOIs)
}

func TestProcess_ElementsWithoutCoordinatesDropped(t *testing.T) {
	maps := &fakeMapSource{
		pois: elements(
			overpass.Element{Type: "way", ID: 1, Tags: map[string]string{"shop": "mall"}},
			overpass.Element{
				Type: "way", ID: 2,
				Center: &overpass.Center{Lat: 51.5, Lon: -0.08},
				Tags:   map[string]string{"shop": "mall", "addr:street": "High Street"},
			},
		),
		streets: elements(),
	}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	require.True(t, res.Success)
	assert.Equal(t, 1, res.TotalPOIs)
	assert.Equal(t, "High Street", res.Top[0].Name)
}

func TestProcess_StreetHintBypassesDistance(t *testing.T) {
	maps := &fakeMapSource{
		pois: elements(
			node(1, 51.5, -0.08, map[string]string{"shop": "deli", "addr:street": "Baker Street"}),
		),
		// Fetched streets do not include Baker Street.
		streets: elements(streetWay(10, "Union Street", 51.5, -0.08)),
	}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	require.True(t, res.Success)
	assert.Equal(t, model.StreetCount{Name: "Baker Street", POICount: 1}, res.Top[0])
}

func TestProcess_NearestStreetWithinThreshold(t *testing.T) {
	// One degree of latitude is ~111km, so 0.00045 deg ~ 50m and 0.00135 ~ 150m.
	poi := node(1, 51.5, -0.08, map[string]string{"shop": "deli"})
	near := streetWay(10, "Near Road", 51.50045, -0.08)
	far := streetWay(11, "Far Road", 51.50135, -0.08)

	t.Run("assigns to nearest within limit", func(t *testing.T) {
		maps := &fakeMapSource{pois: elements(poi), streets: elements(far, near)}
		p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

		res := p.Process(context.Background(), "SE1", Options{MaxAssignMeters: 100})

		require.True(t, res.Success)
		assert.Equal(t, "Near Road", res.Top[0].Name)
	})

	t.Run("unassigned when nearest exceeds limit", func(t *testing.T) {
		maps := &fakeMapSource{pois: elements(poi), streets: elements(far, near)}
		p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

		res := p.Process(context.Background(), "SE1", Options{MaxAssignMeters: 40})

		require.True(t, res.Success)
		assert.Empty(t, res.Top[0].Name)
		assert.Empty(t, res.AllStreets)
	})
}

func TestProcess_EquidistantTieKeepsFirstStreet(t *testing.T) {
	poi := node(1, 51.5, -0.08, map[string]string{"shop": "deli"})
	// Two street segments sharing a centroid: an exact distance tie.
	a := streetWay(10, "Alpha Road", 51.50045, -0.08)
	b := streetWay(11, "Beta Road", 51.50045, -0.08)

	maps := &fakeMapSource{pois: elements(poi), streets: elements(a, b)}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{MaxAssignMeters: 100})

	require.True(t, res.Success)
	assert.Equal(t, "Alpha Road", res.Top[0].Name)
}

func TestProcess_RankingAndZeroCountExclusion(t *testing.T) {
	var pois []overpass.Element
	addHinted := func(street string, n int) {
		for i := 0; i < n; i++ {
			pois = append(pois, node(int64(len(pois)+1), 51.5, -0.08,
				map[string]string{"shop": "deli", "addr:street": street}))
		}
	}
	addHinted("Alpha Road", 5)
	addHinted("Beta Road", 5)
	addHinted("Gamma Road", 2)

	maps := &fakeMapSource{
		pois: elements(pois...),
		streets: elements(
			streetWay(10, "Alpha Road", 51.5, -0.08),
			streetWay(11, "Beta Road", 51.5, -0.08),
			streetWay(12, "Gamma Road", 51.5, -0.08),
			streetWay(13, "Delta Road", 51.5, -0.08),
		),
	}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	require.True(t, res.Success)
	require.Len(t, res.Top, model.TopN)
	topNames := []string{res.Top[0].Name, res.Top[1].Name}
	assert.ElementsMatch(t, []string{"Alpha Road", "Beta Road"}, topNames)
	assert.Equal(t, model.StreetCount{Name: "Gamma Road", POICount: 2}, res.Top[2])

	// Delta Road has zero attributed POIs so it never appears in the full list.
	names := make([]string, 0, len(res.AllStreets))
	for _, sc := range res.AllStreets {
		names = append(names, sc.Name)
	}
	assert.NotContains(t, names, "Delta Road")
	assert.Len(t, res.AllStreets, 3)
}

func TestProcess_PostcodeMajorityFilter(t *testing.T) {
	hinted := func(id int64, street, postcode string) overpass.Element {
		tags := map[string]string{"shop": "deli", "addr:street": street}
		if postcode != "" {
			tags["addr:postcode"] = postcode
		}
		return node(id, 51.5, -0.08, tags)
	}

	maps := &fakeMapSource{
		pois: elements(
			// Kept: 3 in-district vs 1 sub-district.
			hinted(1, "Kept Road", "SE1 1AA"),
			hinted(2, "Kept Road", "SE1 2BB"),
			hinted(3, "Kept Road", "SE1 3CC"),
			hinted(4, "Kept Road", "SE11 4DD"),
			// Excluded: 1 in-district vs 3 sub-district.
			hinted(5, "Border Road", "SE1 5EE"),
			hinted(6, "Border Road", "SE11 6FF"),
			hinted(7, "Border Road", "SE11 7GG"),
			hinted(8, "Border Road", "SE11 8HH"),
			// Kept: no postcode evidence at all.
			hinted(9, "Quiet Road", ""),
		),
		streets: elements(
			streetWay(10, "Kept Road", 51.5, -0.08),
			streetWay(11, "Border Road", 51.5, -0.08),
			streetWay(12, "Quiet Road", 51.5, -0.08),
		),
	}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	require.True(t, res.Success)
	names := make([]string, 0, len(res.AllStreets))
	for _, sc := range res.AllStreets {
		names = append(names, sc.Name)
	}
	assert.Contains(t, names, "Kept Road")
	assert.Contains(t, names, "Quiet Road")
	assert.NotContains(t, names, "Border Road")
	// Sorted by count descending.
	assert.Equal(t, "Kept Road", res.AllStreets[0].Name)
	assert.Equal(t, 4, res.AllStreets[0].POICount)
}

func TestProcess_DuplicateStreetNamesCollapse(t *testing.T) {
	maps := &fakeMapSource{
		pois: elements(
			node(1, 51.5, -0.08, map[string]string{"shop": "deli", "addr:street": "Long Road"}),
			node(2, 51.5, -0.08, map[string]string{"shop": "deli", "addr:street": "Long Road"}),
		),
		// The same street fetched as two way segments.
		streets: elements(
			streetWay(10, "Long Road", 51.5, -0.08),
			streetWay(11, "Long Road", 51.501, -0.081),
		),
	}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	require.True(t, res.Success)
	require.Len(t, res.AllStreets, 1)
	assert.Equal(t, model.StreetCount{Name: "Long Road", POICount: 2}, res.AllStreets[0])
}

func TestProcess_UnnamedStreetsDropped(t *testing.T) {
	maps := &fakeMapSource{
		pois: elements(node(1, 51.5, -0.08, map[string]string{"shop": "deli"})),
		streets: elements(
			overpass.Element{
				Type: "way", ID: 10,
				Center: &overpass.Center{Lat: 51.5, Lon: -0.08},
				Tags:   map[string]string{"highway": "service"},
			},
			overpass.Element{
				Type: "way", ID: 11,
				Tags: map[string]string{"highway": "residential", "name": "No Centroid Road"},
			},
		),
	}
	p := New(&fakeGeocoder{coord: testCenter, found: true}, maps)

	res := p.Process(context.Background(), "SE1", Options{})

	require.True(t, res.Success)
	assert.Zero(t, res.TotalStreets)
}
