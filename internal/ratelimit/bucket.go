// Package ratelimit provides per-site token-bucket throttling so the
// orchestrator never exceeds a data source's documented rate limit.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Registry holds one token bucket per site, created lazily on first use.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	defaultN int
}

// NewRegistry builds a Registry that defaults unregistered sites to
// defaultPerMinute requests/minute.
func NewRegistry(defaultPerMinute int) *Registry {
	if defaultPerMinute <= 0 {
		defaultPerMinute = 60
	}
	return &Registry{
		limiters: make(map[string]*rate.Limiter),
		defaultN: defaultPerMinute,
	}
}

// Configure installs (or replaces) the bucket for a site at perMinute
// requests/minute, with bucket capacity equal to that rate.
func (r *Registry) Configure(siteID string, perMinute int) {
	if perMinute <= 0 {
		perMinute = r.defaultN
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[siteID] = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
}

// Acquire blocks until a token for siteID is available or ctx is done.
// Sites with no explicit Configure call get the registry's default rate.
func (r *Registry) Acquire(ctx context.Context, siteID string) error {
	r.mu.Lock()
	limiter, ok := r.limiters[siteID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(r.defaultN)/60.0), r.defaultN)
		r.limiters[siteID] = limiter
	}
	r.mu.Unlock()

	return limiter.Wait(ctx)
}
