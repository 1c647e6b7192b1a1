package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	ledgerbridge "github.com/goliatone/go-ledgerbridge"
	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/providers/devkit"
	"github.com/goliatone/go-ledgerbridge/providers/xero"
)

type e2eEnv struct {
	server    *httptest.Server
	zoho      *devkit.FakeProtocol
	xero      *devkit.FakeProtocol
	transport *devkit.FakeTransportAdapter
}

func newE2E(t *testing.T) e2eEnv {
	t.Helper()
	tenants := []core.Tenant{
		{ID: "tenant-1", Name: "First Org"},
		{ID: "tenant-2", Name: "Second Org"},
	}
	zohoProtocol := devkit.NewFakeProtocol(core.PlatformZoho)
	zohoProtocol.Tenants = tenants
	xeroProtocol := devkit.NewFakeProtocol(core.PlatformXero)
	xeroProtocol.Tenants = tenants

	manager, err := core.NewCredentialManager(core.DefaultConfig(),
		core.WithProtocol(zohoProtocol),
		core.WithProtocol(xeroProtocol),
	)
	if err != nil {
		t.Fatalf("new credential manager: %v", err)
	}

	transport := devkit.NewFakeTransportAdapter("rest").
		Route(http.MethodGet, "/Contacts", devkit.JSONScript(http.StatusOK, map[string]any{
			"Contacts": []map[string]any{{"ContactID": "x1", "Name": "Acme", "IsCustomer": true}},
		})).
		Route(http.MethodGet, "/books/v3/contacts", devkit.JSONScript(http.StatusOK, map[string]any{
			"contacts":     []map[string]any{{"contact_id": "z1", "contact_name": "Zeta", "contact_type": "customer"}},
			"page_context": map[string]any{"has_more_page": false},
		}))
	zohoAdapter, err := ledgerbridge.ZohoAdapter(manager, transport)
	if err != nil {
		t.Fatalf("zoho adapter: %v", err)
	}
	xeroAdapter, err := ledgerbridge.XeroAdapter(manager, transport)
	if err != nil {
		t.Fatalf("xero adapter: %v", err)
	}
	svc, err := ledgerbridge.NewService(manager,
		ledgerbridge.WithAdapter(zohoAdapter),
		ledgerbridge.WithAdapter(xeroAdapter),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	gw, err := NewServer(":0", svc)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(server.Close)
	return e2eEnv{server: server, zoho: zohoProtocol, xero: xeroProtocol, transport: transport}
}

func (e e2eEnv) rpc(t *testing.T, method string, params map[string]any) Response {
	t.Helper()
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 7, "method": method, "params": params})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	res, err := http.Post(e.server.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post rpc: %v", err)
	}
	defer res.Body.Close()
	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (e e2eEnv) get(t *testing.T, path string) (int, string) {
	t.Helper()
	res, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return res.StatusCode, string(body)
}

func decodeResult(t *testing.T, resp Response, out any) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %#v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestServer_XeroConnectSelectAndList(t *testing.T) {
	env := newE2E(t)

	status, page := env.get(t, "/oauth/callback/xero?code=abc&state=u1")
	if status != http.StatusOK {
		t.Fatalf("expected callback 200, got %d: %s", status, page)
	}
	if !strings.Contains(page, "Xero Connected Successfully") ||
		!strings.Contains(page, "select one of your Xero Organizations (Tenants)") {
		t.Fatalf("unexpected callback page: %s", page)
	}

	resp := env.rpc(t, MethodGetContactSummary, map[string]any{"user_id": "u1", "platform": "xero"})
	if resp.Error == nil || !strings.HasPrefix(resp.Error.Message, core.TenantRequiredMarker) {
		t.Fatalf("expected tenant required before selection, got %#v", resp.Error)
	}

	var tenants struct {
		Tenants []core.Tenant `json:"tenants"`
	}
	decodeResult(t, env.rpc(t, MethodGetConnectedTenants, map[string]any{"user_id": "u1", "platform": "XERO"}), &tenants)
	if len(tenants.Tenants) != 2 {
		t.Fatalf("expected two tenants, got %#v", tenants.Tenants)
	}

	var selected struct {
		Success bool `json:"success"`
	}
	decodeResult(t, env.rpc(t, MethodSetSelectedTenant, map[string]any{
		"user_id": "u1", "platform": "XERO", "tenant_id": tenants.Tenants[1].ID,
	}), &selected)
	if !selected.Success {
		t.Fatalf("expected success")
	}

	var contacts []core.UnifiedContact
	decodeResult(t, env.rpc(t, MethodGetContactSummary, map[string]any{"user_id": "u1", "platform": "XERO"}), &contacts)
	if len(contacts) != 1 || contacts[0].ID != "x1" {
		t.Fatalf("unexpected contacts %#v", contacts)
	}
	requests := env.transport.RequestsTo(http.MethodGet, "/Contacts")
	if len(requests) == 0 || requests[len(requests)-1].Headers[xero.TenantHeader] != "tenant-2" {
		t.Fatalf("expected %s tenant-2 on contact listing, got %#v", xero.TenantHeader, requests)
	}
}

func TestServer_ZohoCallbackPassesAccountsServer(t *testing.T) {
	env := newE2E(t)
	query := url.Values{"code": {"zc"}, "state": {"u2"}, "accounts-server": {"https://accounts.zoho.eu"}}
	status, _ := env.get(t, "/oauth/callback/zoho?"+query.Encode())
	if status != http.StatusOK {
		t.Fatalf("expected callback 200, got %d", status)
	}
	code, hint := env.zoho.LastExchange()
	if code != "zc" || hint != "https://accounts.zoho.eu" {
		t.Fatalf("unexpected exchange args %q %q", code, hint)
	}

	env.rpc(t, MethodSetSelectedTenant, map[string]any{"user_id": "u2", "platform": "ZOHO", "tenant_id": "tenant-2"})
	var contacts []core.UnifiedContact
	decodeResult(t, env.rpc(t, MethodGetContactSummary, map[string]any{"user_id": "u2", "platform": "ZOHO"}), &contacts)
	requests := env.transport.RequestsTo(http.MethodGet, "/books/v3/contacts")
	if len(requests) == 0 || requests[0].Query["organization_id"] != "tenant-2" {
		t.Fatalf("expected organization_id tenant-2, got %#v", requests)
	}
}

func TestServer_CallbackFailureRendersErrorPage(t *testing.T) {
	env := newE2E(t)
	env.xero.ExchangeErr = core.ProviderError(core.PlatformXero, "token exchange", http.StatusBadRequest, "invalid_grant", nil)
	status, page := env.get(t, "/oauth/callback/xero?code=bad&state=u1")
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if !strings.Contains(page, "Xero Connection Failed") || !strings.Contains(page, "Please try the authentication link again.") {
		t.Fatalf("unexpected error page: %s", page)
	}
}

func TestServer_CallbackRequiresCodeAndState(t *testing.T) {
	env := newE2E(t)
	status, body := env.get(t, "/oauth/callback/xero?code=abc")
	if status != http.StatusBadRequest || body != "Error: Missing authorization code or user state." {
		t.Fatalf("unexpected response %d %q", status, body)
	}
}

func TestServer_ConnectPage(t *testing.T) {
	env := newE2E(t)
	status, body := env.get(t, "/connect/zoho")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", status)
	}
	status, body = env.get(t, "/connect/sage?user_id=u1")
	if status != http.StatusBadRequest || body != "Error: Invalid platform" {
		t.Fatalf("unexpected invalid platform response %d %q", status, body)
	}
	status, body = env.get(t, "/connect/zoho?user_id=u1")
	if status != http.StatusOK || !strings.Contains(body, "Connect ZOHO") || !strings.Contains(body, "state=u1") {
		t.Fatalf("unexpected connect page %d: %s", status, body)
	}
}

func TestServer_BannerHealthAndParseError(t *testing.T) {
	env := newE2E(t)
	if status, body := env.get(t, "/"); status != http.StatusOK || body != Banner {
		t.Fatalf("unexpected banner %d %q", status, body)
	}
	if status, _ := env.get(t, "/healthz"); status != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", status)
	}
	if status, _ := env.get(t, "/metrics"); status != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", status)
	}

	res, err := http.Post(env.server.URL+"/rpc", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post rpc: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for parse error, got %d", res.StatusCode)
	}
	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error == nil || out.Error.Code != CodeParseError {
		t.Fatalf("expected parse error, got %#v", out.Error)
	}
}
