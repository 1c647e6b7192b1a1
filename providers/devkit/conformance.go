package devkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateTokenStoreConformance exercises the get/put/delete contract every
// TokenStore backend must honor.
func ValidateTokenStoreConformance(ctx context.Context, store core.TokenStore) error {
	if store == nil {
		return fmt.Errorf("devkit: token store is required")
	}
	key := core.TokenKey("conformance-user", core.PlatformXero)

	if _, ok, err := store.Get(ctx, key); err != nil {
		return fmt.Errorf("devkit: get missing record: %w", err)
	} else if ok {
		return fmt.Errorf("devkit: expected missing record for %q", key)
	}

	refreshedAt := time.Now().UTC().Truncate(time.Millisecond)
	record := core.TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    refreshedAt.Add(30 * time.Minute),
		Scope:        "accounting.contacts",
		RefreshedAt:  &refreshedAt,
		APIDomain:    "https://api.xero.com",
		OrgID:        "tenant-1",
	}
	if err := store.Put(ctx, key, record); err != nil {
		return fmt.Errorf("devkit: put record: %w", err)
	}
	loaded, ok, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("devkit: get stored record: %w", err)
	}
	if !ok {
		return fmt.Errorf("devkit: stored record not found")
	}
	if err := compareRecords(record, loaded); err != nil {
		return err
	}

	record.OrgID = "tenant-2"
	record.AccessToken = "access-2"
	if err := store.Put(ctx, key, record); err != nil {
		return fmt.Errorf("devkit: overwrite record: %w", err)
	}
	loaded, _, err = store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("devkit: get overwritten record: %w", err)
	}
	if loaded.OrgID != "tenant-2" || loaded.AccessToken != "access-2" {
		return fmt.Errorf("devkit: overwrite not visible, got org %q token %q", loaded.OrgID, loaded.AccessToken)
	}

	if err := store.Delete(ctx, key); err != nil {
		return fmt.Errorf("devkit: delete record: %w", err)
	}
	if _, ok, err := store.Get(ctx, key); err != nil || ok {
		return fmt.Errorf("devkit: expected deleted record to be absent (ok=%t err=%v)", ok, err)
	}
	return nil
}

func compareRecords(want core.TokenRecord, got core.TokenRecord) error {
	switch {
	case got.AccessToken != want.AccessToken:
		return fmt.Errorf("devkit: access token mismatch %q != %q", got.AccessToken, want.AccessToken)
	case got.RefreshToken != want.RefreshToken:
		return fmt.Errorf("devkit: refresh token mismatch")
	case !got.ExpiresAt.Equal(want.ExpiresAt):
		return fmt.Errorf("devkit: expiry mismatch %s != %s", got.ExpiresAt, want.ExpiresAt)
	case got.Scope != want.Scope, got.APIDomain != want.APIDomain, got.OrgID != want.OrgID:
		return fmt.Errorf("devkit: record fields mismatch: %+v", got)
	case got.RefreshedAt == nil || !got.RefreshedAt.Equal(*want.RefreshedAt):
		return fmt.Errorf("devkit: refreshed_at mismatch")
	}
	return nil
}

// ValidateKeyLockerConformance checks exclusive acquisition and release.
func ValidateKeyLockerConformance(ctx context.Context, locker core.KeyLocker) error {
	if locker == nil {
		return fmt.Errorf("devkit: key locker is required")
	}
	key := core.TokenKey("conformance-user", core.PlatformZoho)
	handle, err := locker.Acquire(ctx, key, time.Minute)
	if err != nil {
		return fmt.Errorf("devkit: first acquire: %w", err)
	}
	if _, err := locker.Acquire(ctx, key, time.Minute); !errors.Is(err, core.ErrLockHeld) {
		return fmt.Errorf("devkit: expected ErrLockHeld on second acquire, got %v", err)
	}
	if err := handle.Unlock(ctx); err != nil {
		return fmt.Errorf("devkit: unlock: %w", err)
	}
	again, err := locker.Acquire(ctx, key, time.Minute)
	if err != nil {
		return fmt.Errorf("devkit: acquire after unlock: %w", err)
	}
	return again.Unlock(ctx)
}
