// Package overpass builds Overpass QL queries and executes them against an
// Overpass API endpoint with rate limiting and retries.
package overpass

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/streetsignal/streetsignal/internal/geo"
)

// Validation patterns for query inputs. Anything that fails validation is
// dropped silently; user filter input must never break the query.
var (
	tokenRe    = regexp.MustCompile(`^[a-z0-9_]+$`)
	selectorRe = regexp.MustCompile(`^[a-z0-9_]+=(\*|[a-z0-9_]+)$`)
)

// POIQueryOptions selects which POI categories to fetch.
type POIQueryOptions struct {
	// IncludeAllShops fetches every shop=* element and takes priority over
	// ShopTypes.
	IncludeAllShops bool `json:"include_all_shops"`

	// ShopTypes is a shop-value allowlist, e.g. ["supermarket","bakery"].
	ShopTypes []string `json:"shop_types"`

	// Amenities is an amenity-value allowlist, additive to the shop clauses.
	Amenities []string `json:"amenities"`

	// PropertySelectors are key=value or key=* filters, e.g.
	// "landuse=industrial" or "office=*".
	PropertySelectors []string `json:"property_selectors"`
}

// BuildPOIQuery produces an Overpass QL query for commercial POIs around a
// center. Each selected filter expands to node/way/relation clauses. When no
// filter survives validation the query falls back to any-shop so it is never
// empty.
func BuildPOIQuery(center geo.Coordinate, radiusM int, opts POIQueryOptions) string {
	shopTypes := filterValid(opts.ShopTypes, tokenRe)
	amenities := filterValid(opts.Amenities, tokenRe)
	selectors := filterValid(opts.PropertySelectors, selectorRe)

	var parts []string

	switch {
	case opts.IncludeAllShops:
		parts = append(parts, clauseTriple(center, radiusM, `["shop"]`)...)
	case len(shopTypes) > 0:
		parts = append(parts, clauseTriple(center, radiusM, regexFilter("shop", shopTypes))...)
	}

	if len(amenities) > 0 {
		parts = append(parts, clauseTriple(center, radiusM, regexFilter("amenity", amenities))...)
	}

	for _, sel := range selectors {
		key, value, _ := strings.Cut(sel, "=")
		if value == "*" {
			parts = append(parts, clauseTriple(center, radiusM, fmt.Sprintf(`["%s"]`, key))...)
		} else {
			parts = append(parts, clauseTriple(center, radiusM, fmt.Sprintf(`["%s"="%s"]`, key, value))...)
		}
	}

	if len(parts) == 0 {
		parts = clauseTriple(center, radiusM, `["shop"]`)
	}

	return fmt.Sprintf("[out:json][timeout:180];\n(\n  %s\n);\nout tags center;",
		strings.Join(parts, "\n  "))
}

// BuildStreetQuery produces an Overpass QL query for named highways around a
// center.
func BuildStreetQuery(center geo.Coordinate, radiusM int) string {
	return fmt.Sprintf(
		"[out:json][timeout:180];\nway[\"highway\"][\"name\"](around:%d,%v,%v);\nout tags center;",
		radiusM, center.Lat, center.Lon,
	)
}

// clauseTriple expands one tag filter into node, way, and relation clauses
// scoped to the search radius.
func clauseTriple(center geo.Coordinate, radiusM int, filter string) []string {
	around := fmt.Sprintf("(around:%d,%v,%v)", radiusM, center.Lat, center.Lon)
	return []string{
		"node" + around + filter + ";",
		"way" + around + filter + ";",
		"relation" + around + filter + ";",
	}
}

// regexFilter builds an exact-alternation tag filter such as
// ["shop"~"^(supermarket|bakery)$"]. Values are already validated, so no
// regex escaping is needed.
func regexFilter(key string, values []string) string {
	return fmt.Sprintf(`["%s"~"^(%s)$"]`, key, strings.Join(values, "|"))
}

func filterValid(values []string, re *regexp.Regexp) []string {
	var out []string
	for _, v := range values {
		if re.MatchString(v) {
			out = append(out, v)
		}
	}
	return out
}
