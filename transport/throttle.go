package transport

import (
	"context"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/ratelimit"
)

// ThrottledAdapter consults a quota policy before each call and feeds it
// every response. Requests are keyed by the "platform" and "tenant_id"
// metadata the provider clients set.
type ThrottledAdapter struct {
	next   core.TransportAdapter
	policy *ratelimit.AdaptivePolicy
}

func NewThrottledAdapter(next core.TransportAdapter, policy *ratelimit.AdaptivePolicy) *ThrottledAdapter {
	if policy == nil {
		policy = ratelimit.NewAdaptivePolicy(nil)
	}
	return &ThrottledAdapter{next: next, policy: policy}
}

func (a *ThrottledAdapter) Kind() string {
	if a == nil || a.next == nil {
		return KindREST
	}
	return a.next.Kind()
}

func (a *ThrottledAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.next == nil {
		return core.TransportResponse{}, transportError(
			"transport: throttled adapter requires a next adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": "throttle"},
		)
	}
	key := throttleKey(req)
	if key.Platform == "" {
		return a.next.Do(ctx, req)
	}
	if err := a.policy.BeforeCall(ctx, key); err != nil {
		if throttled, ok := err.(ratelimit.ThrottledError); ok {
			return core.TransportResponse{}, throttled.ToLedgerError()
		}
		return core.TransportResponse{}, err
	}
	res, err := a.next.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if err := a.policy.AfterCall(ctx, key, res); err != nil {
		return res, err
	}
	return res, nil
}

func throttleKey(req core.TransportRequest) ratelimit.Key {
	var key ratelimit.Key
	if platform, ok := req.Metadata["platform"]; ok && platform != nil {
		key.Platform = core.Platform(fmt.Sprint(platform))
	}
	if tenant, ok := req.Metadata["tenant_id"]; ok && tenant != nil {
		key.TenantID = fmt.Sprint(tenant)
	}
	return key
}

var _ core.TransportAdapter = (*ThrottledAdapter)(nil)
