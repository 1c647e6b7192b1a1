package transport

import (
	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/ratelimit"
)

// ProviderConfig shapes the adapter stack used for one platform.
type ProviderConfig struct {
	Platform          core.Platform
	Client            core.HTTPDoer
	RequestsPerSecond float64
	Burst             int
	Breaker           BreakerConfig
	Quota             *ratelimit.AdaptivePolicy
}

// NewProviderAdapter builds quota throttle -> rate limit -> circuit breaker
// -> REST for a platform. Throttled tenants fail fast without waiting on
// the limiter, and limiter waits happen before the breaker sees the call.
func NewProviderAdapter(cfg ProviderConfig) core.TransportAdapter {
	var adapter core.TransportAdapter = NewRESTAdapter(cfg.Client)
	breaker := cfg.Breaker
	if breaker.Name == "" {
		breaker.Name = string(cfg.Platform) + "-provider"
	}
	adapter = NewBreakerAdapter(adapter, breaker)
	adapter = NewRateLimitedAdapter(adapter, cfg.RequestsPerSecond, cfg.Burst)
	return NewThrottledAdapter(adapter, cfg.Quota)
}
