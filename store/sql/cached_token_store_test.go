package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubTokenStore struct {
	mu       sync.Mutex
	records  map[string]core.TokenRecord
	getCalls int
	getErr   error
}

func (s *stubTokenStore) Get(_ context.Context, key string) (core.TokenRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.TokenRecord{}, false, s.getErr
	}
	record, ok := s.records[key]
	return record, ok, nil
}

func (s *stubTokenStore) Put(_ context.Context, key string, record core.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[string]core.TokenRecord{}
	}
	s.records[key] = record
	return nil
}

func (s *stubTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func TestCachedTokenStore_MissFetchThenHit(t *testing.T) {
	ctx := context.Background()
	key := core.TokenKey("user-1", core.PlatformXero)
	base := &stubTokenStore{records: map[string]core.TokenRecord{key: {AccessToken: "a"}}}
	store, err := NewCachedTokenStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	for i := 0; i < 2; i++ {
		record, ok, err := store.Get(ctx, key)
		if err != nil || !ok || record.AccessToken != "a" {
			t.Fatalf("get %d: %#v ok=%t err=%v", i, record, ok, err)
		}
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be a cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedTokenStore_WriteInvalidates(t *testing.T) {
	ctx := context.Background()
	key := core.TokenKey("user-1", core.PlatformZoho)
	base := &stubTokenStore{records: map[string]core.TokenRecord{key: {AccessToken: "old"}}}
	store, _ := NewCachedTokenStore(base, newTestCacheService(t))

	if _, _, err := store.Get(ctx, key); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if err := store.Put(ctx, key, core.TokenRecord{AccessToken: "new", OrgID: "org"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	record, _, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.AccessToken != "new" || record.OrgID != "org" {
		t.Fatalf("expected write to be visible, got %#v", record)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, key); ok {
		t.Fatalf("expected delete to be visible")
	}
}

func TestCachedTokenStore_PropagatesBaseErrors(t *testing.T) {
	sentinel := errors.New("db down")
	store, _ := NewCachedTokenStore(&stubTokenStore{getErr: sentinel}, newTestCacheService(t))
	if _, _, err := store.Get(context.Background(), "tokens:u:XERO"); !errors.Is(err, sentinel) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func TestTokenCacheKeyContract(t *testing.T) {
	key, err := TokenCacheKey("tokens:user 1:XERO")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	const expected = "ledgerbridge::token::v1::tokens:user%201:XERO"
	if key != expected {
		t.Fatalf("unexpected cache key: got %q want %q", key, expected)
	}
	if _, err := TokenCacheKey(" "); err == nil {
		t.Fatalf("expected blank key to fail")
	}
}

func TestSplitTokenKey(t *testing.T) {
	user, platform := splitTokenKey("tokens:user:42:ZOHO")
	if user != "user:42" || platform != "ZOHO" {
		t.Fatalf("unexpected split %q %q", user, platform)
	}
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
