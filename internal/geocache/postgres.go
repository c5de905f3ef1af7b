package geocache

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/streetsignal/streetsignal/internal/geo"
	"github.com/streetsignal/streetsignal/internal/model"
)

// Pool is the subset of pgxpool.Pool the cache uses; pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the given database and verifies the connection.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "geocache: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS district_cache (
	district   TEXT PRIMARY KEY,
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS street_cache (
	cache_key  TEXT PRIMARY KEY,
	postcode   TEXT NOT NULL,
	street     TEXT NOT NULL,
	found      BOOLEAN NOT NULL,
	lat        DOUBLE PRECISION,
	lon        DOUBLE PRECISION,
	area       TEXT NOT NULL DEFAULT '',
	raw        JSONB,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_street_cache_postcode ON street_cache(postcode);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "geocache: migrate postgres")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetDistrict(ctx context.Context, district string) (geo.Coordinate, bool, error) {
	var c geo.Coordinate
	err := s.pool.QueryRow(ctx,
		`SELECT lat, lon FROM district_cache WHERE district = $1`,
		model.NormalizeDistrict(district),
	).Scan(&c.Lat, &c.Lon)
	if err == pgx.ErrNoRows {
		return geo.Coordinate{}, false, nil
	}
	if err != nil {
		return geo.Coordinate{}, false, eris.Wrap(err, "geocache: get district")
	}
	return c, true, nil
}

func (s *PostgresStore) SetDistrict(ctx context.Context, district string, coord geo.Coordinate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO district_cache (district, lat, lon, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (district) DO UPDATE SET lat = EXCLUDED.lat, lon = EXCLUDED.lon, updated_at = now()`,
		model.NormalizeDistrict(district), coord.Lat, coord.Lon,
	)
	return eris.Wrap(err, "geocache: set district")
}

func (s *PostgresStore) GetStreet(ctx context.Context, postcode, street string) (*StreetEntry, error) {
	var e StreetEntry
	var lat, lon *float64
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT found, lat, lon, area, raw FROM street_cache WHERE cache_key = $1`,
		streetKey(postcode, street),
	).Scan(&e.Found, &lat, &lon, &e.Area, &raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geocache: get street")
	}
	if lat != nil && lon != nil {
		e.Coord = geo.Coordinate{Lat: *lat, Lon: *lon}
	}
	e.Raw = raw
	return &e, nil
}

func (s *PostgresStore) SetStreet(ctx context.Context, postcode, street string, entry StreetEntry) error {
	var lat, lon any
	if entry.Found {
		lat, lon = entry.Coord.Lat, entry.Coord.Lon
	}
	var raw any
	if len(entry.Raw) > 0 {
		raw = entry.Raw
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO street_cache (cache_key, postcode, street, found, lat, lon, area, raw, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (cache_key) DO UPDATE SET
			found = EXCLUDED.found, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
			area = EXCLUDED.area, raw = EXCLUDED.raw, updated_at = now()`,
		streetKey(postcode, street),
		model.NormalizeDistrict(postcode), street,
		entry.Found, lat, lon, entry.Area, raw,
	)
	return eris.Wrap(err, "geocache: set street")
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	for _, table := range []string{"district_cache", "street_cache"} {
		if _, err := s.pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "geocache: clear %s", table)
		}
	}
	return nil
}
