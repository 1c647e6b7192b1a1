package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/goliatone/go-ledgerbridge/core"
)

func roundTrip(t *testing.T, store core.TokenStore) {
	t.Helper()
	ctx := context.Background()
	key := core.TokenKey("user-1", core.PlatformXero)
	record := core.TokenRecord{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour).UTC(), OrgID: "tenant-1"}
	if err := store.Put(ctx, key, record); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%t err=%v", ok, err)
	}
	if loaded.AccessToken != "access" || loaded.OrgID != "tenant-1" {
		t.Fatalf("unexpected record %#v", loaded)
	}
}

func TestOpenStoreMemoryByDefault(t *testing.T) {
	backing, err := openStore(context.Background(), core.DefaultConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer backing.Close()
	if backing.kind != core.StoreKindMemory || backing.locker != nil {
		t.Fatalf("unexpected backing %#v", backing)
	}
	roundTrip(t, backing.store)
}

func TestOpenStoreRedisProvidesLocker(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := core.DefaultConfig()
	cfg.Store.Kind = core.StoreKindRedis
	cfg.Store.EncryptKey = "0123456789abcdef0123456789abcdef"
	cfg.Redis.Addr = server.Addr()

	backing, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer backing.Close()
	if backing.locker == nil {
		t.Fatalf("expected redis locker")
	}
	roundTrip(t, backing.store)
}

func TestOpenStoreSQLiteMigrates(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Store.Kind = core.StoreKindSQL
	cfg.Database.DSN = fmt.Sprintf("file:ledgerbridge-cmd-%d?mode=memory&cache=shared", time.Now().UnixNano())

	backing, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer backing.Close()
	roundTrip(t, backing.store)
}

func TestOpenStoreRejectsUnknownKind(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Store.Kind = "etcd"
	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Fatalf("expected unknown store kind to fail")
	}
}
