package ratelimit

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"photosync/pkg/config"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed now
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
}

// New creates a token bucket limiter refilling at rps with the given burst.
// A non-positive rps disables limiting.
func New(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// FromConfig creates a limiter from the application settings
func FromConfig(cfg config.RateLimitConfig) *rate.Limiter {
	return New(cfg.RequestsPerSecond, cfg.BurstSize)
}

// Transport is an http.RoundTripper that waits on a Limiter before each request
type Transport struct {
	Limiter Limiter
	Base    http.RoundTripper
}

// NewTransport wraps base so every request first waits on limiter.
// A nil base uses http.DefaultTransport.
func NewTransport(limiter Limiter, base http.RoundTripper) *Transport {
	return &Transport{Limiter: limiter, Base: base}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			if req.Body != nil {
				req.Body.Close()
			}
			return nil, err
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
