package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Builtins(t *testing.T) {
	shop := Get("shop")
	assert.True(t, shop.IncludeAllShops)
	assert.Contains(t, shop.Amenities, "restaurant")
	assert.Empty(t, shop.PropertySelectors)

	industrial := Get("industrial")
	assert.False(t, industrial.IncludeAllShops)
	assert.Contains(t, industrial.PropertySelectors, "landuse=industrial")

	office := Get("office")
	assert.Equal(t, []string{"office=*"}, office.PropertySelectors)
}

func TestGet_UnknownFallsBackToCustom(t *testing.T) {
	p := Get("does-not-exist")
	assert.Equal(t, "Custom", p.Name)
	assert.True(t, p.IncludeAllShops)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "shop")
	assert.Contains(t, names, "industrial")
	assert.Contains(t, names, "office")
	assert.Contains(t, names, Custom)
}

func TestQueryOptions(t *testing.T) {
	opts := Get("industrial").QueryOptions()
	assert.False(t, opts.IncludeAllShops)
	assert.Contains(t, opts.PropertySelectors, "building=warehouse")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
worship:
  name: Worship
  property_selectors:
    - building=church
    - building=cathedral
`), 0o644))

	presets, err := LoadFile(path)
	require.NoError(t, err)
	require.Contains(t, presets, "worship")
	assert.Equal(t, "Worship", presets["worship"].Name)
	assert.Len(t, presets["worship"].PropertySelectors, 2)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	Register(map[string]Preset{"temporary": {Name: "Temporary"}})
	t.Cleanup(func() { delete(builtin, "temporary") })

	assert.Equal(t, "Temporary", Get("temporary").Name)
}
