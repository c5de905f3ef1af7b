package geocache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetsignal/streetsignal/internal/geo"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_DistrictRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetDistrict(ctx, "E1")
	require.NoError(t, err)
	assert.False(t, ok)

	coord := geo.Coordinate{Lat: 51.5175, Lon: -0.0596}
	require.NoError(t, s.SetDistrict(ctx, "e1 ", coord))

	// Lookup is normalized, so a raw lowercase key hits too.
	got, ok, err := s.GetDistrict(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, coord, got)
}

func TestSQLite_DistrictUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetDistrict(ctx, "SE1", geo.Coordinate{Lat: 51.0, Lon: -0.1}))
	require.NoError(t, s.SetDistrict(ctx, "SE1", geo.Coordinate{Lat: 51.5, Lon: -0.09}))

	got, ok, err := s.GetDistrict(ctx, "SE1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 51.5, got.Lat)
}

func TestSQLite_StreetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	miss, err := s.GetStreet(ctx, "E1", "Brick Lane")
	require.NoError(t, err)
	assert.Nil(t, miss)

	entry := StreetEntry{
		Found: true,
		Coord: geo.Coordinate{Lat: 51.5217, Lon: -0.0714},
		Area:  "Spitalfields",
		Raw:   []byte(`{"display_name":"Brick Lane"}`),
	}
	require.NoError(t, s.SetStreet(ctx, "e1", "BRICK LANE ", entry))

	// Key is case-insensitive on both parts.
	got, err := s.GetStreet(ctx, "E1", "brick lane")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Found)
	assert.Equal(t, entry.Coord, got.Coord)
	assert.Equal(t, "Spitalfields", got.Area)
	assert.JSONEq(t, `{"display_name":"Brick Lane"}`, string(got.Raw))
}

func TestSQLite_StreetNegativeEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetStreet(ctx, "SE1", "Nonexistent Way", StreetEntry{Found: false}))

	got, err := s.GetStreet(ctx, "SE1", "Nonexistent Way")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Found)
	assert.Zero(t, got.Coord)
}

func TestSQLite_Clear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetDistrict(ctx, "E1", geo.Coordinate{Lat: 51.5, Lon: -0.06}))
	require.NoError(t, s.SetStreet(ctx, "E1", "Brick Lane", StreetEntry{Found: true}))
	require.NoError(t, s.Clear(ctx))

	_, ok, err := s.GetDistrict(ctx, "E1")
	require.NoError(t, err)
	assert.False(t, ok)

	miss, err := s.GetStreet(ctx, "E1", "Brick Lane")
	require.NoError(t, err)
	assert.Nil(t, miss)
}
