package geocache

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/streetsignal/streetsignal/internal/geo"
	"github.com/streetsignal/streetsignal/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite cache at the given path and enables
// WAL mode so a write that returns successfully is durable.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "geocache: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS district_cache (
	district   TEXT PRIMARY KEY,
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS street_cache (
	cache_key  TEXT PRIMARY KEY,
	postcode   TEXT NOT NULL,
	street     TEXT NOT NULL,
	found      INTEGER NOT NULL,
	lat        REAL,
	lon        REAL,
	area       TEXT NOT NULL DEFAULT '',
	raw        TEXT,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_street_cache_postcode ON street_cache(postcode);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "geocache: migrate sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetDistrict(ctx context.Context, district string) (geo.Coordinate, bool, error) {
	var c geo.Coordinate
	err := s.db.QueryRowContext(ctx,
		`SELECT lat, lon FROM district_cache WHERE district = ?`,
		model.NormalizeDistrict(district),
	).Scan(&c.Lat, &c.Lon)
	if err == sql.ErrNoRows {
		return geo.Coordinate{}, false, nil
	}
	if err != nil {
		return geo.Coordinate{}, false, eris.Wrap(err, "geocache: get district")
	}
	return c, true, nil
}

func (s *SQLiteStore) SetDistrict(ctx context.Context, district string, coord geo.Coordinate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO district_cache (district, lat, lon, updated_at) VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT (district) DO UPDATE SET lat = excluded.lat, lon = excluded.lon, updated_at = datetime('now')`,
		model.NormalizeDistrict(district), coord.Lat, coord.Lon,
	)
	return eris.Wrap(err, "geocache: set district")
}

func (s *SQLiteStore) GetStreet(ctx context.Context, postcode, street string) (*StreetEntry, error) {
	var e StreetEntry
	var found int
	var lat, lon sql.NullFloat64
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT found, lat, lon, area, raw FROM street_cache WHERE cache_key = ?`,
		streetKey(postcode, street),
	).Scan(&found, &lat, &lon, &e.Area, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geocache: get street")
	}
	e.Found = found != 0
	if lat.Valid && lon.Valid {
		e.Coord = geo.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	if raw.Valid {
		e.Raw = []byte(raw.String)
	}
	return &e, nil
}

func (s *SQLiteStore) SetStreet(ctx context.Context, postcode, street string, entry StreetEntry) error {
	var lat, lon any
	if entry.Found {
		lat, lon = entry.Coord.Lat, entry.Coord.Lon
	}
	var raw any
	if len(entry.Raw) > 0 {
		raw = string(entry.Raw)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO street_cache (cache_key, postcode, street, found, lat, lon, area, raw, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (cache_key) DO UPDATE SET
			found = excluded.found, lat = excluded.lat, lon = excluded.lon,
			area = excluded.area, raw = excluded.raw, updated_at = datetime('now')`,
		streetKey(postcode, street),
		model.NormalizeDistrict(postcode), street,
		boolToInt(entry.Found), lat, lon, entry.Area, raw,
	)
	return eris.Wrap(err, "geocache: set street")
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	for _, table := range []string{"district_cache", "street_cache"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "geocache: clear %s", table)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
