// Package ratelimit throttles requests to the photo service.
//
// Limiters are token buckets from golang.org/x/time/rate. Transport applies a
// limiter to every request made through an http.Client, which covers both
// listing pages and media downloads:
//
//	limiter := ratelimit.FromConfig(cfg.RateLimit)
//	client := &http.Client{Transport: ratelimit.NewTransport(limiter, nil)}
package ratelimit
