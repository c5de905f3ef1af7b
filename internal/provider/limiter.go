// Package provider holds the shared outbound rate-limiting primitive for the
// external geocoding and map-data providers.
package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	pollInterval = 500 * time.Millisecond
	maxWait      = 10 * time.Second
)

// NewGeocodingLimiter returns the token bucket shared by all geocoding calls
// (district, street, reverse): 1 request per 2 seconds.
func NewGeocodingLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(2*time.Second), 1)
}

// NewOverpassLimiter returns the token bucket for map-data queries:
// 1 request per second.
func NewOverpassLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 1)
}

// Wait blocks until lim grants a slot, polling every 500ms for up to 10s.
// After the deadline the caller proceeds anyway; a saturated bucket must not
// wedge the pipeline. Returns an error only on context cancellation.
func Wait(ctx context.Context, lim *rate.Limiter) error {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		if lim.Allow() {
			return nil
		}
		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	// Last unconditional attempt: take a token if one appeared, then go.
	lim.Allow()
	return nil
}
