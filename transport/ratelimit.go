package transport

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ledgerbridge/core"
	"golang.org/x/time/rate"
)

// RateLimitedAdapter paces outbound calls with a token bucket. Callers
// wait for a slot until ctx ends.
type RateLimitedAdapter struct {
	next    core.TransportAdapter
	limiter *rate.Limiter
}

func NewRateLimitedAdapter(next core.TransportAdapter, requestsPerSecond float64, burst int) *RateLimitedAdapter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &RateLimitedAdapter{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (a *RateLimitedAdapter) Kind() string {
	if a == nil || a.next == nil {
		return KindREST
	}
	return a.next.Kind()
}

func (a *RateLimitedAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.next == nil {
		return core.TransportResponse{}, transportError(
			"transport: rate limited adapter requires a next adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": "rate_limit"},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryRateLimit,
			"transport: provider rate limit wait aborted",
			http.StatusTooManyRequests,
			map[string]any{"adapter": "rate_limit", "url": req.URL},
		)
	}
	return a.next.Do(ctx, req)
}

var _ core.TransportAdapter = (*RateLimitedAdapter)(nil)
