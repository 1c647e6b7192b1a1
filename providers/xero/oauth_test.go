package xero

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/providers/devkit"
)

func TestAuthorizationURL(t *testing.T) {
	oauth, err := NewOAuth(Config{ClientID: "client", RedirectURI: "https://app.test/oauth/callback/xero"})
	if err != nil {
		t.Fatalf("new oauth: %v", err)
	}
	raw, err := oauth.AuthorizationURL("user-7")
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Host != "login.xero.com" {
		t.Fatalf("unexpected host %q", parsed.Host)
	}
	if parsed.Query().Get("state") != "user-7" || parsed.Query().Get("scope") != DefaultScopes {
		t.Fatalf("unexpected query %v", parsed.Query())
	}
}

func TestExchangeAndRefreshUseBasicAuth(t *testing.T) {
	var grants []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		grants = append(grants, r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt-next","expires_in":1800}`))
	}))
	defer server.Close()

	oauth, err := NewOAuth(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "https://app.test/cb",
		TokenURL:     server.URL,
	})
	if err != nil {
		t.Fatalf("new oauth: %v", err)
	}
	grant, err := oauth.Exchange(context.Background(), "code", "ignored")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if grant.RefreshToken != "rt-next" || grant.ExpiresIn != 1800 {
		t.Fatalf("unexpected grant %#v", grant)
	}
	if _, err := oauth.Refresh(context.Background(), core.TokenRecord{RefreshToken: "rt"}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(grants) != 2 || grants[0] != "authorization_code" || grants[1] != "refresh_token" {
		t.Fatalf("unexpected grants %v", grants)
	}
}

func TestListTenantsMapsConnections(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest", devkit.JSONScript(http.StatusOK, []any{
		map[string]any{"id": "conn-1", "tenantId": "tenant-1", "tenantName": "Demo Co", "tenantType": "ORGANISATION"},
	}))
	oauth, err := NewOAuth(Config{ClientID: "client", Transport: fake})
	if err != nil {
		t.Fatalf("new oauth: %v", err)
	}
	tenants, err := oauth.ListTenants(context.Background(), core.TokenRecord{AccessToken: "at"})
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	if len(tenants) != 1 || tenants[0] != (core.Tenant{ID: "tenant-1", Name: "Demo Co", Type: "ORGANISATION"}) {
		t.Fatalf("unexpected tenants %#v", tenants)
	}
	req := fake.Requests()[0]
	if req.URL != ConnectionsURL || req.Headers["Authorization"] != "Bearer at" {
		t.Fatalf("unexpected connections request %#v", req)
	}
	if _, set := req.Headers[TenantHeader]; set {
		t.Fatalf("connections call must not carry a tenant header")
	}
}

func TestListTenantsEmpty(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest", devkit.JSONScript(http.StatusOK, []any{}))
	oauth, err := NewOAuth(Config{ClientID: "client", Transport: fake})
	if err != nil {
		t.Fatalf("new oauth: %v", err)
	}
	_, err = oauth.ListTenants(context.Background(), core.TokenRecord{AccessToken: "at"})
	if core.MapError(err).TextCode != core.LedgerErrorNoTenants {
		t.Fatalf("expected no tenants error, got %v", err)
	}
}

func TestRevokePostsRefreshToken(t *testing.T) {
	var token string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		token = r.PostForm.Get("token")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	oauth, err := NewOAuth(Config{ClientID: "client", ClientSecret: "secret", RevokeURL: server.URL})
	if err != nil {
		t.Fatalf("new oauth: %v", err)
	}
	if err := oauth.Revoke(context.Background(), core.TokenRecord{AccessToken: "at", RefreshToken: "rt"}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if token != "rt" {
		t.Fatalf("expected refresh token to be revoked, got %q", token)
	}
}
