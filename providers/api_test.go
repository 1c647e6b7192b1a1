package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/providers/devkit"
)

func testHandle() core.ClientHandle {
	return core.ClientHandle{
		UserID:      "user-1",
		Platform:    core.PlatformXero,
		AccessToken: "token-1",
		TenantID:    "tenant-1",
	}
}

func TestAPIClientSignsAndDecodes(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest").
		Route(http.MethodPost, "/Contacts", devkit.JSONScript(http.StatusOK, map[string]any{"ok": true}))
	client := APIClient{
		Platform:  core.PlatformXero,
		Transport: fake,
		Signer:    core.BearerTokenSigner("Xero-Tenant-Id"),
	}

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.Do(context.Background(), testHandle(), Call{
		Operation:   "create contact",
		Method:      http.MethodPost,
		URL:         "https://api.example.test/Contacts",
		Body:        map[string]string{"Name": "Acme"},
		Idempotency: "idem-1",
	}, &out)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected decoded response")
	}
	requests := fake.RequestsTo(http.MethodPost, "/Contacts")
	if len(requests) != 1 {
		t.Fatalf("expected one request, got %d", len(requests))
	}
	req := requests[0]
	if req.Headers["Authorization"] != "Bearer token-1" {
		t.Fatalf("unexpected authorization header %q", req.Headers["Authorization"])
	}
	if req.Headers["Xero-Tenant-Id"] != "tenant-1" {
		t.Fatalf("expected tenant header, got %#v", req.Headers)
	}
	if req.Headers["Content-Type"] != "application/json" {
		t.Fatalf("expected json content type")
	}
	if req.Idempotency != "idem-1" {
		t.Fatalf("expected idempotency key to pass through")
	}
	if !strings.Contains(string(req.Body), `"Name":"Acme"`) {
		t.Fatalf("unexpected body %s", req.Body)
	}
}

func TestAPIClientMapsUnauthorizedToNeedsAuth(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest", devkit.JSONScript(http.StatusUnauthorized, map[string]any{"Detail": "expired"}))
	client := APIClient{Platform: core.PlatformXero, Transport: fake, Signer: core.BearerTokenSigner("")}

	err := client.Do(context.Background(), testHandle(), Call{Operation: "contact listing", URL: "https://api.example.test/Contacts"}, nil)
	if !core.IsNeedsAuth(err) {
		t.Fatalf("expected needs auth, got %v", err)
	}
	if !strings.Contains(err.Error(), core.AuthRequiredMarker) {
		t.Fatalf("expected marker in message, got %q", err.Error())
	}
}

func TestAPIClientProviderErrorCarriesMessage(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest", devkit.JSONScript(http.StatusBadRequest, map[string]any{
		"Elements": []any{map[string]any{
			"ValidationErrors": []any{map[string]any{"Message": "Contact name is required"}},
		}},
	}))
	client := APIClient{Platform: core.PlatformXero, Transport: fake}

	err := client.Do(context.Background(), testHandle(), Call{Operation: "create contact", URL: "https://api.example.test/Contacts"}, nil)
	if err == nil {
		t.Fatalf("expected provider error")
	}
	if !strings.Contains(err.Error(), "Contact name is required") || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("unexpected provider error %q", err.Error())
	}
	if mapped := core.MapError(err); mapped.TextCode != core.LedgerErrorProviderFailure {
		t.Fatalf("expected provider failure text code, got %q", mapped.TextCode)
	}
}

func TestAPIClientTransportFailure(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest", devkit.ErrorScript(errors.New("dial tcp: refused")))
	client := APIClient{Platform: core.PlatformZoho, Transport: fake}

	err := client.Do(context.Background(), testHandle(), Call{Operation: "invoice listing", URL: "https://books.example.test/invoices"}, nil)
	if err == nil || !strings.Contains(err.Error(), "Zoho invoice listing failed") {
		t.Fatalf("expected wrapped transport failure, got %v", err)
	}
}

func TestExtractErrorMessage(t *testing.T) {
	cases := map[string]string{
		`{"code":57,"message":"You are not authorized"}`: "You are not authorized",
		`{"Detail":"TenantId invalid"}`:                   "TenantId invalid",
		`plain failure`:                                   "plain failure",
		``:                                                "",
	}
	for body, want := range cases {
		if got := ExtractErrorMessage([]byte(body)); got != want {
			t.Fatalf("extract %q: expected %q, got %q", body, want, got)
		}
	}
	long := strings.Repeat("x", 400)
	if got := ExtractErrorMessage([]byte(long)); len(got) != maxErrorDetailLength+3 {
		t.Fatalf("expected truncated detail, got length %d", len(got))
	}
}
