package xero

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/providers"
	"github.com/goliatone/go-ledgerbridge/transport"
)

const (
	AuthURL        = "https://login.xero.com/identity/connect/authorize"
	TokenURL       = "https://identity.xero.com/connect/token"
	RevokeURL      = "https://identity.xero.com/connect/revocation"
	ConnectionsURL = "https://api.xero.com/connections"
	APIBaseURL     = "https://api.xero.com/api.xro/2.0"

	DefaultScopes   = "offline_access accounting.transactions accounting.settings accounting.contacts accounting.reports.read"
	DefaultLifetime = 30 * time.Minute

	TenantHeader = "Xero-Tenant-Id"
)

type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	Scopes         string
	AuthURL        string
	TokenURL       string
	RevokeURL      string
	ConnectionsURL string
	RequestTimeout time.Duration
	HTTPClient     core.HTTPDoer
	Transport      core.TransportAdapter
}

func ConfigFrom(cfg core.XeroConfig) Config {
	return Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
	}
}

// OAuth implements the Xero grant flow. Client credentials travel in HTTP
// Basic auth; tenants come from the connections endpoint.
type OAuth struct {
	cfg    Config
	tokens *providers.TokenClient
	api    providers.APIClient
}

func NewOAuth(cfg Config) (*OAuth, error) {
	cfg.AuthURL = valueOr(cfg.AuthURL, AuthURL)
	cfg.TokenURL = valueOr(cfg.TokenURL, TokenURL)
	cfg.RevokeURL = valueOr(cfg.RevokeURL, RevokeURL)
	cfg.ConnectionsURL = valueOr(cfg.ConnectionsURL, ConnectionsURL)
	cfg.Scopes = valueOr(cfg.Scopes, DefaultScopes)

	tokens, err := providers.NewTokenClient(providers.TokenClientConfig{
		Platform:       core.PlatformXero,
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		RequestTimeout: cfg.RequestTimeout,
		HTTPClient:     cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(cfg.HTTPClient)
	}
	return &OAuth{
		cfg:    cfg,
		tokens: tokens,
		api: providers.APIClient{
			Platform:  core.PlatformXero,
			Transport: cfg.Transport,
			Signer:    core.BearerTokenSigner(""),
			Timeout:   cfg.RequestTimeout,
		},
	}, nil
}

func (*OAuth) Platform() core.Platform { return core.PlatformXero }

func (*OAuth) DefaultLifetime() time.Duration { return DefaultLifetime }

func (*OAuth) DefaultAPIDomain() string { return "" }

func (o *OAuth) AuthorizationURL(state string) (string, error) {
	if strings.TrimSpace(o.cfg.RedirectURI) == "" {
		return "", core.ValidationError("redirect_uri", "xero redirect uri is not configured")
	}
	target, err := url.Parse(o.cfg.AuthURL)
	if err != nil {
		return "", fmt.Errorf("xero: invalid authorize url: %w", err)
	}
	query := target.Query()
	query.Set("client_id", o.cfg.ClientID)
	query.Set("response_type", "code")
	query.Set("scope", o.cfg.Scopes)
	query.Set("redirect_uri", o.cfg.RedirectURI)
	query.Set("state", state)
	target.RawQuery = query.Encode()
	return target.String(), nil
}

// Exchange ignores hint; Xero has a single identity server.
func (o *OAuth) Exchange(ctx context.Context, code string, _ string) (core.TokenGrant, error) {
	return o.tokens.ExchangeCode(ctx, o.cfg.TokenURL, code, o.cfg.RedirectURI)
}

func (o *OAuth) Refresh(ctx context.Context, record core.TokenRecord) (core.TokenGrant, error) {
	return o.tokens.RefreshToken(ctx, o.cfg.TokenURL, record.RefreshToken)
}

type connection struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
	TenantType string `json:"tenantType"`
}

func (o *OAuth) ListTenants(ctx context.Context, record core.TokenRecord) ([]core.Tenant, error) {
	var connections []connection
	err := o.api.Do(ctx, core.ClientHandle{
		Platform:    core.PlatformXero,
		AccessToken: record.AccessToken,
	}, providers.Call{
		Operation: "connection listing",
		Method:    http.MethodGet,
		URL:       o.cfg.ConnectionsURL,
	}, &connections)
	if err != nil {
		return nil, err
	}
	tenants := make([]core.Tenant, 0, len(connections))
	for _, item := range connections {
		if strings.TrimSpace(item.TenantID) == "" {
			continue
		}
		tenants = append(tenants, core.Tenant{ID: item.TenantID, Name: item.TenantName, Type: item.TenantType})
	}
	if len(tenants) == 0 {
		return nil, core.NotFoundError("Xero user has no active connected tenants (organizations).", map[string]any{
			"platform": string(core.PlatformXero),
		}).WithTextCode(core.LedgerErrorNoTenants)
	}
	return tenants, nil
}

func (o *OAuth) Revoke(ctx context.Context, record core.TokenRecord) error {
	token := valueOr(record.RefreshToken, record.AccessToken)
	form := url.Values{}
	form.Set("token", token)
	return o.tokens.Revoke(ctx, o.cfg.RevokeURL, form)
}

func valueOr(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

var (
	_ core.OAuthProtocol = (*OAuth)(nil)
	_ core.TokenRevoker  = (*OAuth)(nil)
)
