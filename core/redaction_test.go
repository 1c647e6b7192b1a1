package core

import (
	"testing"
	"time"
)

func TestRedactSensitiveMapKeepsIdentifiers(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"user_id":         "user-1",
		"org_id":          "org-1",
		"idempotency_key": "idem-1",
		"access_token":    "secret-token",
		"authorization":   "Zoho-oauthtoken secret-token",
		"nested":          map[string]any{"refresh_token": "refresh", "tenant_id": "tenant-1"},
		"events":          []any{map[string]any{"api_key": "re_key"}, map[string]any{"contact_id": "c-1"}},
		"code":            "auth-code",
	})

	if redacted["user_id"] != "user-1" || redacted["org_id"] != "org-1" || redacted["idempotency_key"] != "idem-1" {
		t.Fatalf("expected identifiers to remain visible: %#v", redacted)
	}
	for _, key := range []string{"access_token", "authorization", "code"} {
		if redacted[key] != RedactedValue {
			t.Fatalf("expected %s to be redacted, got %#v", key, redacted[key])
		}
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["refresh_token"] != RedactedValue || nested["tenant_id"] != "tenant-1" {
		t.Fatalf("unexpected nested redaction: %#v", nested)
	}
	events, ok := redacted["events"].([]any)
	if !ok || len(events) != 2 {
		t.Fatalf("expected redacted events slice")
	}
	if first := events[0].(map[string]any); first["api_key"] != RedactedValue {
		t.Fatalf("expected api_key in slice to be redacted")
	}
	if second := events[1].(map[string]any); second["contact_id"] != "c-1" {
		t.Fatalf("expected contact_id in slice to remain visible")
	}
}

func TestRedactSensitiveMapMasksTokenRecordValues(t *testing.T) {
	expires := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	redacted := RedactSensitiveMap(map[string]any{
		"record": &TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: expires, OrgID: "org-1"},
	})
	record, ok := redacted["record"].(map[string]any)
	if !ok {
		t.Fatalf("expected token record to be projected, got %#v", redacted["record"])
	}
	if record["access_token"] != RedactedValue || record["refresh_token"] != RedactedValue {
		t.Fatalf("expected token material to be masked: %#v", record)
	}
	if record["org_id"] != "org-1" || record["expires_at"] != expires {
		t.Fatalf("expected non-secret fields to survive: %#v", record)
	}
}

func TestRedactSensitiveMapEmpty(t *testing.T) {
	if got := RedactSensitiveMap(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
}
