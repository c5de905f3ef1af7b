package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/streetsignal/streetsignal/internal/geocache"
	"github.com/streetsignal/streetsignal/internal/geocoder"
	"github.com/streetsignal/streetsignal/internal/overpass"
	"github.com/streetsignal/streetsignal/internal/processor"
)

// env bundles the wired pipeline dependencies shared by the commands.
type env struct {
	Cache     geocache.Store
	Geocoder  *geocoder.Geocoder
	Overpass  *overpass.Client
	Processor *processor.Processor
}

func (e *env) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initStack builds the cache store, providers, and processor from config.
func initStack(ctx context.Context) (*env, error) {
	var (
		cache geocache.Store
		err   error
	)
	switch cfg.Cache.Driver {
	case "sqlite":
		cache, err = geocache.NewSQLite(cfg.Cache.Path)
	case "postgres":
		cache, err = geocache.NewPostgres(ctx, cfg.Cache.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}
	if err := cache.Migrate(ctx); err != nil {
		cache.Close()
		return nil, eris.Wrap(err, "migrate cache")
	}

	gc := geocoder.New(cache,
		geocoder.WithBaseURLs(cfg.Geocoding.PostcodesBaseURL, cfg.Geocoding.NominatimBaseURL),
		geocoder.WithUserAgent(cfg.Geocoding.UserAgent),
		geocoder.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Geocoding.TimeoutSecs) * time.Second,
		}),
		geocoder.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Geocoding.RequestsPerSec), 1)),
	)

	op := overpass.NewClient(
		overpass.WithBaseURL(cfg.Overpass.BaseURL),
		overpass.WithUserAgent(cfg.Geocoding.UserAgent),
		overpass.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Overpass.TimeoutSecs) * time.Second,
		}),
		overpass.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Overpass.RequestsPerSec), 1)),
	)

	return &env{
		Cache:     cache,
		Geocoder:  gc,
		Overpass:  op,
		Processor: processor.New(gc, op),
	}, nil
}

// searchOptions builds processor options from config defaults plus flags.
func searchOptions(radiusM int, maxAssignM float64) processor.Options {
	opts := processor.Options{
		RadiusMeters:    cfg.Search.RadiusMeters,
		MaxAssignMeters: cfg.Search.MaxAssignMeters,
	}
	if radiusM > 0 {
		opts.RadiusMeters = radiusM
	}
	if maxAssignM > 0 {
		opts.MaxAssignMeters = maxAssignM
	}
	return opts
}
