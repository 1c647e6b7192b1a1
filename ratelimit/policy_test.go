package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ledgerbridge/core"
)

func fixedPolicy(now time.Time) (*AdaptivePolicy, *MemoryStateStore) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	policy.Now = func() time.Time { return now }
	return policy, store
}

func TestAdaptivePolicy_BeforeCallAllowsWhenNoState(t *testing.T) {
	policy := NewAdaptivePolicy(nil)
	if err := policy.BeforeCall(context.Background(), Key{Platform: core.PlatformXero, TenantID: "t1"}); err != nil {
		t.Fatalf("expected no error without state, got %v", err)
	}
}

func TestAdaptivePolicy_RetryAfterThrottlesTenant(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, _ := fixedPolicy(now)
	key := Key{Platform: core.PlatformXero, TenantID: "tenant-1"}

	err := policy.AfterCall(context.Background(), key, core.TransportResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "30", "X-Rate-Limit-Problem": "minute"},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	err = policy.BeforeCall(context.Background(), key)
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected ThrottledError, got %T %v", err, err)
	}
	if throttled.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s retry, got %s", throttled.RetryAfter)
	}

	other := Key{Platform: core.PlatformXero, TenantID: "tenant-2"}
	if err := policy.BeforeCall(context.Background(), other); err != nil {
		t.Fatalf("expected other tenant to be unaffected, got %v", err)
	}
}

func TestAdaptivePolicy_ReadsLowestXeroRemaining(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := fixedPolicy(now)
	key := Key{Platform: "xero", TenantID: " tenant-1 "}

	err := policy.AfterCall(context.Background(), key, core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"X-MinLimit-Remaining": "12",
			"X-DayLimit-Remaining": "4000",
		},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}
	state, err := store.Get(context.Background(), Key{Platform: core.PlatformXero, TenantID: "tenant-1"})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if !state.HasRemaining || state.Remaining != 12 {
		t.Fatalf("expected remaining 12, got %+v", state)
	}
	if state.ThrottledUntil != nil {
		t.Fatalf("expected no throttle window")
	}
}

func TestAdaptivePolicy_BackoffWithoutHint(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := fixedPolicy(now)
	key := Key{Platform: core.PlatformZoho, TenantID: "org-1"}

	for i := 0; i < 3; i++ {
		if err := policy.AfterCall(context.Background(), key, core.TransportResponse{StatusCode: http.StatusTooManyRequests}); err != nil {
			t.Fatalf("after call: %v", err)
		}
	}
	state, _ := store.Get(context.Background(), key)
	if state.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", state.Attempts)
	}
	if state.ThrottledUntil == nil || !state.ThrottledUntil.Equal(now.Add(4*time.Second)) {
		t.Fatalf("expected 4s backoff, got %v", state.ThrottledUntil)
	}

	if err := policy.AfterCall(context.Background(), key, core.TransportResponse{StatusCode: http.StatusOK}); err != nil {
		t.Fatalf("after call: %v", err)
	}
	state, _ = store.Get(context.Background(), key)
	if state.Attempts != 0 || state.ThrottledUntil != nil {
		t.Fatalf("expected success to clear throttle, got %+v", state)
	}
}

func TestAdaptivePolicy_ServerErrorsDoNotThrottle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, _ := fixedPolicy(now)
	key := Key{Platform: core.PlatformZoho, TenantID: "org-1"}
	if err := policy.AfterCall(context.Background(), key, core.TransportResponse{StatusCode: http.StatusBadGateway}); err != nil {
		t.Fatalf("after call: %v", err)
	}
	if err := policy.BeforeCall(context.Background(), key); err != nil {
		t.Fatalf("expected no throttle after 502, got %v", err)
	}
}

func TestThrottledError_ToLedgerError(t *testing.T) {
	err := ThrottledError{Key: Key{Platform: core.PlatformXero, TenantID: "t1"}, RetryAfter: 3 * time.Second}
	mapped := err.ToLedgerError()
	if mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %v", mapped.Category)
	}
	if mapped.TextCode != core.LedgerErrorRateLimited || mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected envelope %q %d", mapped.TextCode, mapped.Code)
	}
	if mapped.Metadata["retry_after_ms"] != int64(3000) {
		t.Fatalf("expected retry metadata, got %#v", mapped.Metadata)
	}
}
