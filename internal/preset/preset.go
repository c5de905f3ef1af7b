// Package preset supplies named POI filter bundles and the catalogs of
// filter values offered to users.
package preset

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/streetsignal/streetsignal/internal/overpass"
)

// Preset is a named filter bundle applied to the POI query.
type Preset struct {
	Name              string   `json:"name" yaml:"name"`
	IncludeAllShops   bool     `json:"include_all_shops" yaml:"include_all_shops"`
	ShopTypes         []string `json:"shop_types" yaml:"shop_types"`
	Amenities         []string `json:"amenities" yaml:"amenities"`
	PropertySelectors []string `json:"property_selectors" yaml:"property_selectors"`
}

// QueryOptions converts the preset into POI query options.
func (p Preset) QueryOptions() overpass.POIQueryOptions {
	return overpass.POIQueryOptions{
		IncludeAllShops:   p.IncludeAllShops,
		ShopTypes:         p.ShopTypes,
		Amenities:         p.Amenities,
		PropertySelectors: p.PropertySelectors,
	}
}

// Custom is the preset name whose filters come from the request instead of
// the bundle.
const Custom = "custom"

var builtin = map[string]Preset{
	"shop": {
		Name:            "Shop",
		IncludeAllShops: true,
		Amenities: []string{
			"restaurant", "cafe", "fast_food", "pub", "bar", "pharmacy",
			"post_office", "bank", "atm", "hairdresser", "beauty", "marketplace",
		},
	},
	"industrial": {
		Name: "Industrial",
		PropertySelectors: []string{
			"landuse=industrial", "building=industrial", "building=warehouse", "industrial=*",
		},
	},
	"office": {
		Name:              "Office",
		PropertySelectors: []string{"office=*"},
	},
	Custom: {
		Name:            "Custom",
		IncludeAllShops: true,
	},
}

// Get returns the named preset. Unknown names fall back to the custom
// preset, matching the permissive handling of user form input.
func Get(name string) Preset {
	if p, ok := builtin[name]; ok {
		return p
	}
	return builtin[Custom]
}

// Names lists the built-in preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads additional presets from a YAML file keyed by preset name.
// Loaded presets shadow built-ins of the same name for this process.
func LoadFile(path string) (map[string]Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "preset: read %s", path)
	}
	var presets map[string]Preset
	if err := yaml.Unmarshal(raw, &presets); err != nil {
		return nil, eris.Wrapf(err, "preset: parse %s", path)
	}
	return presets, nil
}

// Register adds or replaces presets, typically from LoadFile.
func Register(presets map[string]Preset) {
	for name, p := range presets {
		builtin[name] = p
	}
}

// ShopTypes is the catalog of shop values offered as custom filters.
var ShopTypes = []string{
	"supermarket", "convenience", "bakery", "butcher", "greengrocer", "alcohol", "wine", "beverages",
	"clothes", "shoes", "department_store", "mall", "jewelry", "gift", "books", "electronics", "mobile_phone",
	"furniture", "doityourself", "hardware", "florist", "optician", "chemist", "pharmacy",
	"beauty", "hairdresser", "cosmetics", "sports", "bicycle", "car_repair", "car", "motorcycle", "pet",
	"newsagent", "stationery", "toy", "second_hand", "charity", "travel_agency",
}

// AmenityTypes is the catalog of amenity values offered as custom filters.
var AmenityTypes = []string{
	"restaurant", "cafe", "fast_food", "bar", "pub", "bank", "atm", "pharmacy",
	"clinic", "dentist", "doctors", "hairdresser", "beauty", "post_office", "marketplace",
	"place_of_worship",
}

// PropertySelectors is the catalog of key=value selectors offered as custom
// filters.
var PropertySelectors = []string{
	"building=church",
	"building=cathedral",
	"landuse=industrial",
	"building=industrial",
	"building=warehouse",
	"industrial=*",
	"office=*",
	"building=commercial",
	"building=retail",
	"landuse=commercial",
	"landuse=retail",
}
