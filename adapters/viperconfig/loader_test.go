package viperconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
)

func envFrom(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}
}

func TestLoaderReadsFileAndPrefixedEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerbridge.yaml")
	content := "service_name: ledger-test\nrefresh_margin: 45s\nzoho:\n  client_id: file-id\nredis:\n  db: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loader := NewLoader(path)
	loader.Lookup = envFrom(map[string]string{
		"LEDGERBRIDGE_ZOHO_CLIENT_ID": "env-id",
		"LEDGERBRIDGE_STORE_KIND":     "redis",
	})

	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["service_name"] != "ledger-test" {
		t.Fatalf("expected file service name, got %#v", raw["service_name"])
	}
	if raw["refresh_margin"] != 45*time.Second {
		t.Fatalf("expected parsed duration, got %#v", raw["refresh_margin"])
	}
	zoho := raw["zoho"].(map[string]any)
	if zoho["client_id"] != "env-id" {
		t.Fatalf("expected env to override file, got %#v", zoho["client_id"])
	}
	if raw["redis"].(map[string]any)["db"] != 2 {
		t.Fatalf("expected redis db int, got %#v", raw["redis"])
	}
	if raw["store"].(map[string]any)["kind"] != "redis" {
		t.Fatalf("expected store kind from env, got %#v", raw["store"])
	}
}

func TestLoaderMapsLegacyNames(t *testing.T) {
	loader := NewLoader("")
	loader.Lookup = envFrom(map[string]string{
		"XERO_CLIENT_ID":              "xero-id",
		"RESEND_API_KEY":              "re_123",
		"PORT":                        "3000",
		"ZOHO_SCOPES":                 "ZohoBooks.fullaccess.all",
		"ZOHO_CLIENT_ID":              "legacy",
		"LEDGERBRIDGE_ZOHO_CLIENT_ID": "prefixed",
	})
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["xero"].(map[string]any)["client_id"] != "xero-id" {
		t.Fatalf("expected legacy xero id, got %#v", raw["xero"])
	}
	if raw["resend"].(map[string]any)["api_key"] != "re_123" {
		t.Fatalf("expected legacy resend key, got %#v", raw["resend"])
	}
	if raw["http"].(map[string]any)["addr"] != ":3000" {
		t.Fatalf("expected PORT mapped to addr, got %#v", raw["http"])
	}
	if raw["zoho"].(map[string]any)["client_id"] != "prefixed" {
		t.Fatalf("expected prefixed name to win, got %#v", raw["zoho"])
	}
}

func TestLoaderMissingFileIsNotAnError(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	loader.Lookup = envFrom(nil)
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty raw map, got %#v", raw)
	}
}

func TestLoaderFeedsCredentialConfig(t *testing.T) {
	loader := NewLoader("")
	loader.Lookup = envFrom(map[string]string{
		"LEDGERBRIDGE_REQUEST_TIMEOUT": "3s",
		"XERO_CLIENT_ID":               "xero-id",
	})
	cfg, err := core.ResolveConfig(context.Background(), core.Config{}, core.NewCfgxConfigProvider(loader), nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("expected request timeout 3s, got %s", cfg.RequestTimeout)
	}
	if cfg.Xero.ClientID != "xero-id" {
		t.Fatalf("expected xero client id, got %q", cfg.Xero.ClientID)
	}
	if cfg.ServiceName != "ledgerbridge" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
}
