package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T, cfg Config, protocol *stubProtocol, store TokenStore, clock *fixedClock, opts ...Option) *CredentialManager {
	t.Helper()
	options := []Option{
		WithProtocol(protocol),
		WithTokenStore(store),
		WithClock(clock.Now),
	}
	options = append(options, opts...)
	manager, err := NewCredentialManager(cfg, options...)
	if err != nil {
		t.Fatalf("new credential manager: %v", err)
	}
	return manager
}

func seed(t *testing.T, store TokenStore, userID string, platform Platform, record TokenRecord) {
	t.Helper()
	if err := store.Put(context.Background(), TokenKey(userID, platform), record); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func stored(t *testing.T, store TokenStore, userID string, platform Platform) (TokenRecord, bool) {
	t.Helper()
	record, ok, err := store.Get(context.Background(), TokenKey(userID, platform))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	return record, ok
}

func TestGetValidTokenRecordWithoutRecord(t *testing.T) {
	protocol := newStubProtocol(PlatformXero)
	manager := newTestManager(t, Config{}, protocol, NewMemoryTokenStore(), newFixedClock())

	record, ok := manager.GetValidTokenRecord(context.Background(), "user-1", PlatformXero)
	if ok {
		t.Fatalf("expected absent record, got %#v", record)
	}
	if protocol.refreshes() != 0 {
		t.Fatalf("expected no refresh calls")
	}
}

func TestGetValidTokenRecordFreshTokenSkipsRefresh(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	manager := newTestManager(t, Config{}, protocol, store, clock)

	seed(t, store, "user-1", PlatformXero, TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    clock.Now().Add(DefaultRefreshMargin + time.Second),
	})
	record, ok := manager.GetValidTokenRecord(context.Background(), "user-1", PlatformXero)
	if !ok || record.AccessToken != "access-1" {
		t.Fatalf("expected stored record, got %#v (%v)", record, ok)
	}
	if protocol.refreshes() != 0 {
		t.Fatalf("expected zero refresh calls, got %d", protocol.refreshes())
	}
}

func TestGetValidTokenRecordRefreshesWithinMargin(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformZoho)
	manager := newTestManager(t, Config{}, protocol, store, clock)

	oldExpiry := clock.Now().Add(DefaultRefreshMargin)
	seed(t, store, "user-1", PlatformZoho, TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    oldExpiry,
		Scope:        "ZohoBooks.fullaccess.all",
		APIDomain:    "https://www.zohoapis.eu",
		OrgID:        "org-1",
	})

	record, ok := manager.GetValidTokenRecord(context.Background(), "user-1", PlatformZoho)
	if !ok {
		t.Fatalf("expected refreshed record")
	}
	if protocol.refreshes() != 1 {
		t.Fatalf("expected exactly one refresh, got %d", protocol.refreshes())
	}
	if !record.ExpiresAt.After(oldExpiry) {
		t.Fatalf("expected later expiry, got %v (old %v)", record.ExpiresAt, oldExpiry)
	}
	if record.AccessToken != "access-2" || record.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected tokens %#v", record)
	}
	if record.OrgID != "org-1" || record.APIDomain != "https://www.zohoapis.eu" || record.Scope != "ZohoBooks.fullaccess.all" {
		t.Fatalf("expected tenant, domain and scope carried forward, got %#v", record)
	}
	if record.RefreshedAt == nil || !record.RefreshedAt.Equal(clock.Now()) {
		t.Fatalf("expected refreshedAt to be set, got %v", record.RefreshedAt)
	}
	persisted, _ := stored(t, store, "user-1", PlatformZoho)
	if persisted.AccessToken != "access-2" {
		t.Fatalf("expected refreshed record to be persisted, got %#v", persisted)
	}
}

func TestGetValidTokenRecordKeepsRotatedRefreshToken(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	protocol.refreshGrant = TokenGrant{AccessToken: "access-2", RefreshToken: "refresh-2"}
	manager := newTestManager(t, Config{}, protocol, store, clock)

	seed(t, store, "user-1", PlatformXero, TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    clock.Now().Add(-time.Minute),
	})
	record, ok := manager.GetValidTokenRecord(context.Background(), "user-1", PlatformXero)
	if !ok {
		t.Fatalf("expected refreshed record")
	}
	if record.RefreshToken != "refresh-2" {
		t.Fatalf("expected rotated refresh token, got %q", record.RefreshToken)
	}
	if !record.ExpiresAt.Equal(clock.Now().Add(DefaultRefreshLifetime)) {
		t.Fatalf("expected default refresh lifetime, got %v", record.ExpiresAt)
	}
}

func TestGetValidTokenRecordRefreshFailureLeavesStore(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	protocol.refreshErr = errors.New("invalid_grant")
	manager := newTestManager(t, Config{}, protocol, store, clock)

	original := TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    clock.Now().Add(10 * time.Second),
		OrgID:        "tenant-1",
	}
	seed(t, store, "user-1", PlatformXero, original)

	if _, ok := manager.GetValidTokenRecord(context.Background(), "user-1", PlatformXero); ok {
		t.Fatalf("expected absent result on refresh failure")
	}
	persisted, ok := stored(t, store, "user-1", PlatformXero)
	if !ok || persisted.AccessToken != original.AccessToken || !persisted.ExpiresAt.Equal(original.ExpiresAt) {
		t.Fatalf("expected stored record unchanged, got %#v", persisted)
	}
}

func TestGetValidTokenRecordPersistFailure(t *testing.T) {
	clock := newFixedClock()
	store := &failingStore{MemoryTokenStore: NewMemoryTokenStore()}
	protocol := newStubProtocol(PlatformXero)
	manager := newTestManager(t, Config{}, protocol, store, clock)

	seed(t, store.MemoryTokenStore, "user-1", PlatformXero, TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    clock.Now(),
	})
	store.putErr = errors.New("store offline")
	if _, ok := manager.GetValidTokenRecord(context.Background(), "user-1", PlatformXero); ok {
		t.Fatalf("expected absent result when persisting fails")
	}
	persisted, _ := stored(t, store, "user-1", PlatformXero)
	if persisted.AccessToken != "access-1" {
		t.Fatalf("expected original record, got %#v", persisted)
	}
}

func TestGetValidTokenRecordIrrecoverable(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	manager := newTestManager(t, Config{}, protocol, store, clock)

	seed(t, store, "user-1", PlatformXero, TokenRecord{
		AccessToken: "access-1",
		ExpiresAt:   clock.Now().Add(-time.Hour),
	})
	if _, ok := manager.GetValidTokenRecord(context.Background(), "user-1", PlatformXero); ok {
		t.Fatalf("expected expired record without refresh token to be absent")
	}
	if protocol.refreshes() != 0 {
		t.Fatalf("expected no refresh attempt")
	}
}

func TestExchangeCodeForTokenPersistsRecord(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	protocol.lifetime = 30 * time.Minute
	protocol.exchangeGrant = TokenGrant{AccessToken: "access-1", RefreshToken: "refresh-1", Scope: "accounting.contacts"}
	manager := newTestManager(t, Config{}, protocol, store, clock)

	result, err := manager.ExchangeCodeForToken(context.Background(), PlatformXero, "code-1", "user-1", "hint")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !result.RequiresOrgSelection {
		t.Fatalf("expected org selection to be required")
	}
	if protocol.lastHint != "hint" {
		t.Fatalf("expected hint to reach the protocol, got %q", protocol.lastHint)
	}
	record, ok := stored(t, store, "user-1", PlatformXero)
	if !ok {
		t.Fatalf("expected record to be stored")
	}
	if !record.ExpiresAt.Equal(clock.Now().Add(30 * time.Minute)) {
		t.Fatalf("expected platform default lifetime, got %v", record.ExpiresAt)
	}
	if record.HasTenant() {
		t.Fatalf("expected no tenant after exchange")
	}
}

func TestExchangeCodeForTokenDefaultsAPIDomain(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformZoho)
	protocol.apiDomain = "https://www.zohoapis.com"
	manager := newTestManager(t, Config{}, protocol, store, clock)

	if _, err := manager.ExchangeCodeForToken(context.Background(), PlatformZoho, "code-1", "user-1", ""); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	record, _ := stored(t, store, "user-1", PlatformZoho)
	if record.APIDomain != "https://www.zohoapis.com" {
		t.Fatalf("expected default api domain, got %q", record.APIDomain)
	}
	if !record.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("expected expires_in from the grant, got %v", record.ExpiresAt)
	}
}

func TestExchangeCodeForTokenValidation(t *testing.T) {
	protocol := newStubProtocol(PlatformXero)
	manager := newTestManager(t, Config{}, protocol, NewMemoryTokenStore(), newFixedClock())

	if _, err := manager.ExchangeCodeForToken(context.Background(), PlatformXero, " ", "user-1", ""); err == nil {
		t.Fatalf("expected missing code to fail")
	}
	if _, err := manager.ExchangeCodeForToken(context.Background(), PlatformZoho, "code", "user-1", ""); err == nil {
		t.Fatalf("expected unconfigured platform to fail")
	}
	protocol.exchangeErr = errors.New("invalid_code")
	if _, err := manager.ExchangeCodeForToken(context.Background(), PlatformXero, "code", "user-1", ""); err == nil {
		t.Fatalf("expected provider failure to surface")
	}
}

func TestClientHandleTwoPhaseRemediation(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	manager := newTestManager(t, Config{}, protocol, store, clock)

	_, err := manager.ClientHandle(ctx, "user-1", PlatformXero)
	if !IsNeedsAuth(err) || !strings.Contains(err.Error(), AuthRequiredMarker) {
		t.Fatalf("expected auth required, got %v", err)
	}

	if _, err := manager.ExchangeCodeForToken(ctx, PlatformXero, "code", "user-1", ""); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	_, err = manager.ClientHandle(ctx, "user-1", PlatformXero)
	if !IsNeedsTenant(err) || !strings.Contains(err.Error(), TenantRequiredMarker) {
		t.Fatalf("expected tenant required, got %v", err)
	}

	if err := manager.SetOrgID(ctx, "user-1", PlatformXero, "tenant-2"); err != nil {
		t.Fatalf("set org id: %v", err)
	}
	handle, err := manager.ClientHandle(ctx, "user-1", PlatformXero)
	if err != nil {
		t.Fatalf("client handle: %v", err)
	}
	if handle.TenantID != "tenant-2" || handle.AccessToken != "access-1" || handle.Platform != PlatformXero {
		t.Fatalf("unexpected handle %#v", handle)
	}
	orgID, ok, err := manager.OrgID(ctx, "user-1", PlatformXero)
	if err != nil || !ok || orgID != "tenant-2" {
		t.Fatalf("expected stored org id, got %q %v %v", orgID, ok, err)
	}
}

func TestSetOrgIDRequiresRecord(t *testing.T) {
	manager := newTestManager(t, Config{}, newStubProtocol(PlatformZoho), NewMemoryTokenStore(), newFixedClock())

	err := manager.SetOrgID(context.Background(), "ghost", PlatformZoho, "org-1")
	if err == nil {
		t.Fatalf("expected missing record to fail")
	}
	if MapError(err).TextCode != LedgerErrorNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := manager.SetOrgID(context.Background(), "ghost", PlatformZoho, " "); err == nil {
		t.Fatalf("expected blank org id to fail")
	}
}

func TestConnectedTenants(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	manager := newTestManager(t, Config{}, protocol, store, clock)

	if _, err := manager.ConnectedTenants(ctx, "user-1", PlatformXero); !IsNeedsAuth(err) {
		t.Fatalf("expected auth required without token, got %v", err)
	}

	seed(t, store, "user-1", PlatformXero, TokenRecord{AccessToken: "access-1", ExpiresAt: clock.Now().Add(time.Hour)})
	_, err := manager.ConnectedTenants(ctx, "user-1", PlatformXero)
	if err == nil || MapError(err).TextCode != LedgerErrorNoTenants {
		t.Fatalf("expected no tenants error, got %v", err)
	}

	protocol.tenants = []Tenant{{ID: "t1", Name: "One"}, {ID: "t2", Name: "Two"}}
	tenants, err := manager.ConnectedTenants(ctx, "user-1", PlatformXero)
	if err != nil {
		t.Fatalf("connected tenants: %v", err)
	}
	if len(tenants) != 2 || tenants[1].ID != "t2" {
		t.Fatalf("unexpected tenants %#v", tenants)
	}
}

func TestRevokeDeletesEvenWhenUpstreamFails(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformZoho)
	protocol.revokeErr = errors.New("revocation endpoint unavailable")
	manager := newTestManager(t, Config{}, protocol, store, clock)

	seed(t, store, "user-1", PlatformZoho, TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: clock.Now().Add(time.Hour)})
	if err := manager.Revoke(context.Background(), "user-1", PlatformZoho); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if protocol.revokeCalls != 1 {
		t.Fatalf("expected upstream revocation attempt")
	}
	if _, ok := stored(t, store, "user-1", PlatformZoho); ok {
		t.Fatalf("expected record to be deleted")
	}
}

func TestAuthorizationURLEmbedsUserID(t *testing.T) {
	manager := newTestManager(t, Config{}, newStubProtocol(PlatformXero), NewMemoryTokenStore(), newFixedClock())

	authURL, err := manager.AuthorizationURL(context.Background(), PlatformXero, "user-42")
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	if !strings.Contains(authURL, "state=user-42") {
		t.Fatalf("expected user id as state, got %s", authURL)
	}
	if _, err := manager.AuthorizationURL(context.Background(), PlatformXero, ""); err == nil {
		t.Fatalf("expected missing user id to fail")
	}
}

func TestConcurrentRefreshWithLockerCallsProviderOnce(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	protocol.refreshDelay = 20 * time.Millisecond
	cfg := Config{RefreshLock: RefreshLockConfig{Enabled: true, MaxAttempts: 50}}
	manager := newTestManager(t, cfg, protocol, store, clock,
		WithBackoffScheduler(ExponentialBackoffScheduler{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond}),
	)
	seed(t, store, "user-1", PlatformXero, TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    clock.Now().Add(time.Second),
	})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			_, results[index] = manager.GetValidTokenRecord(context.Background(), "user-1", PlatformXero)
		}(i)
	}
	wg.Wait()

	for index, ok := range results {
		if !ok {
			t.Fatalf("caller %d did not get a valid record", index)
		}
	}
	if protocol.refreshes() != 1 {
		t.Fatalf("expected a single refresh under the lock, got %d", protocol.refreshes())
	}
}

func TestConcurrentRefreshWithoutLockerLastWriterWins(t *testing.T) {
	clock := newFixedClock()
	store := NewMemoryTokenStore()
	protocol := newStubProtocol(PlatformXero)
	manager := newTestManager(t, Config{}, protocol, store, clock)
	seed(t, store, "user-1", PlatformXero, TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    clock.Now(),
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			manager.GetValidTokenRecord(context.Background(), "user-1", PlatformXero)
		}()
	}
	wg.Wait()

	if protocol.refreshes() < 1 {
		t.Fatalf("expected at least one refresh")
	}
	record, ok := stored(t, store, "user-1", PlatformXero)
	if !ok || record.AccessToken != "access-2" || record.RefreshToken != "refresh-1" {
		t.Fatalf("expected a valid refreshed record, got %#v", record)
	}
}
