// Package geocache persists geocoding results across process restarts.
// Entries never expire; writes are last-write-wins upserts.
package geocache

import (
	"context"
	"fmt"
	"strings"

	"github.com/streetsignal/streetsignal/internal/geo"
	"github.com/streetsignal/streetsignal/internal/model"
)

// StreetEntry is a cached street geocoding result. Found=false records a
// failed lookup so the provider is not queried again for the same street.
type StreetEntry struct {
	Found bool           `json:"found"`
	Coord geo.Coordinate `json:"coord"`
	Area  string         `json:"area,omitempty"`
	Raw   []byte         `json:"-"`
}

// Store is the persistence contract for geocoding results.
type Store interface {
	GetDistrict(ctx context.Context, district string) (geo.Coordinate, bool, error)
	SetDistrict(ctx context.Context, district string, coord geo.Coordinate) error

	// GetStreet returns nil on a cache miss.
	GetStreet(ctx context.Context, postcode, street string) (*StreetEntry, error)
	SetStreet(ctx context.Context, postcode, street string, entry StreetEntry) error

	Clear(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// streetKey builds the composite street cache key:
// uppercased-trimmed postcode, "|", lowercased-trimmed street name.
func streetKey(postcode, street string) string {
	return fmt.Sprintf("%s|%s",
		model.NormalizeDistrict(postcode),
		strings.ToLower(strings.TrimSpace(street)),
	)
}
