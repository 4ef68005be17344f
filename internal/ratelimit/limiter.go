// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	urlutil "github.com/law-makers/pagegraph-crawl/internal/utils/url"
)

// RateLimiter paces visits.
//
// Implementations key their buckets by registrable domain so that every
// candidate URL of one site shares a budget.
type RateLimiter interface {
	// Wait blocks until a visit of the given URL may start.
	// If the context is cancelled first, its error is returned.
	Wait(ctx context.Context, urlStr string) error
}

// SiteLimiter provides per-site pacing between consecutive visits. It
// uses the token bucket algorithm.
type SiteLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	limit    rate.Limit
	burst    int
}

// NewSiteLimiter allows one visit per interval per site with the given
// burst. A non-positive interval disables pacing.
func NewSiteLimiter(interval time.Duration, burst int) *SiteLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst <= 0 {
		burst = 1
	}

	return &SiteLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until a visit of urlStr can proceed.
func (sl *SiteLimiter) Wait(ctx context.Context, urlStr string) error {
	key := siteKey(urlStr)
	if key == "" {
		// Invalid URL, let it proceed (the visit will fail on its own)
		return nil
	}
	return sl.getLimiter(key).Wait(ctx)
}

// getLimiter returns or creates the limiter for key
func (sl *SiteLimiter) getLimiter(key string) *rate.Limiter {
	sl.mu.RLock()
	limiter, exists := sl.limiters[key]
	sl.mu.RUnlock()

	if exists {
		return limiter
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := sl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(sl.limit, sl.burst)
	sl.limiters[key] = limiter

	return limiter
}

// siteKey is the registrable domain of urlStr, or its host when the
// public suffix list has no answer.
func siteKey(urlStr string) string {
	return urlutil.RegistrableDomain(urlStr)
}
