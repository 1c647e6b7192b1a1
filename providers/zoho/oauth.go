package zoho

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
	DefaultAccountsURL = "https://accounts.zoho.com"
	DefaultAPIDomain   = "https://www.zohoapis.com"
	DefaultScopes      = "ZohoBooks.fullaccess.all,offline_access"
	DefaultLifetime    = time.Hour

	authorizePath = "/oauth/v2/auth"
	tokenPath     = "/oauth/v2/token"
	revokePath    = "/oauth/v2/token/revoke"
	booksPath     = "/books/v3"
)

type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	Scopes         string
	AccountsURL    string
	APIDomain      string
	RequestTimeout time.Duration
	HTTPClient     core.HTTPDoer
	Transport      core.TransportAdapter
}

func ConfigFrom(cfg core.ZohoConfig) Config {
	return Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		AccountsURL:  cfg.AccountsURL,
		APIDomain:    cfg.APIDomain,
	}
}

// OAuth implements the Zoho Books grant flow. Zoho runs one accounts server
// per data center; the callback's accounts-server hint and the stored API
// domain pick the right one.
type OAuth struct {
	cfg    Config
	tokens *providers.TokenClient
	api    providers.APIClient
}

func NewOAuth(cfg Config) (*OAuth, error) {
	if strings.TrimSpace(cfg.AccountsURL) == "" {
		cfg.AccountsURL = DefaultAccountsURL
	}
	if strings.TrimSpace(cfg.APIDomain) == "" {
		cfg.APIDomain = DefaultAPIDomain
	}
	if strings.TrimSpace(cfg.Scopes) == "" {
		cfg.Scopes = DefaultScopes
	}
	cfg.AccountsURL = strings.TrimRight(strings.TrimSpace(cfg.AccountsURL), "/")
	cfg.APIDomain = strings.TrimRight(strings.TrimSpace(cfg.APIDomain), "/")

	tokens, err := providers.NewTokenClient(providers.TokenClientConfig{
		Platform:           core.PlatformZoho,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		RequestTimeout:     cfg.RequestTimeout,
		HTTPClient:         cfg.HTTPClient,
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
			Platform:  core.PlatformZoho,
			Transport: cfg.Transport,
			Signer:    core.TokenSigner{Scheme: "Zoho-oauthtoken"},
			Timeout:   cfg.RequestTimeout,
		},
	}, nil
}

func (*OAuth) Platform() core.Platform { return core.PlatformZoho }

func (*OAuth) DefaultLifetime() time.Duration { return DefaultLifetime }

func (o *OAuth) DefaultAPIDomain() string { return o.cfg.APIDomain }

func (o *OAuth) AuthorizationURL(state string) (string, error) {
	if strings.TrimSpace(o.cfg.RedirectURI) == "" {
		return "", core.ValidationError("redirect_uri", "zoho redirect uri is not configured")
	}
	target, err := url.Parse(o.cfg.AccountsURL + authorizePath)
	if err != nil {
		return "", fmt.Errorf("zoho: invalid accounts url: %w", err)
	}
	query := target.Query()
	query.Set("client_id", o.cfg.ClientID)
	query.Set("response_type", "code")
	query.Set("scope", o.cfg.Scopes)
	query.Set("redirect_uri", o.cfg.RedirectURI)
	query.Set("state", state)
	query.Set("access_type", "offline")
	query.Set("prompt", "consent")
	target.RawQuery = query.Encode()
	return target.String(), nil
}

// Exchange trades code at the accounts server named by hint, falling back
// to the configured one when the hint is empty or not a Zoho host.
func (o *OAuth) Exchange(ctx context.Context, code string, hint string) (core.TokenGrant, error) {
	accounts := o.accountsFromHint(hint)
	grant, err := o.tokens.ExchangeCode(ctx, accounts+tokenPath, code, o.cfg.RedirectURI)
	if err != nil {
		return core.TokenGrant{}, err
	}
	if grant.APIDomain == "" {
		grant.APIDomain = apiDomainFromAccounts(accounts)
	}
	return grant, nil
}

func (o *OAuth) Refresh(ctx context.Context, record core.TokenRecord) (core.TokenGrant, error) {
	return o.tokens.RefreshToken(ctx, o.accountsFromAPIDomain(record.APIDomain)+tokenPath, record.RefreshToken)
}

type organizationsResponse struct {
	Organizations []struct {
		OrganizationID string `json:"organization_id"`
		Name           string `json:"name"`
	} `json:"organizations"`
}

// ListTenants returns the Books organizations the token can reach.
func (o *OAuth) ListTenants(ctx context.Context, record core.TokenRecord) ([]core.Tenant, error) {
	var payload organizationsResponse
	err := o.api.Do(ctx, core.ClientHandle{
		Platform:    core.PlatformZoho,
		AccessToken: record.AccessToken,
		APIDomain:   record.APIDomain,
	}, providers.Call{
		Operation: "organization listing",
		Method:    http.MethodGet,
		URL:       o.booksURL(record.APIDomain) + "/organizations",
	}, &payload)
	if err != nil {
		return nil, err
	}
	tenants := make([]core.Tenant, 0, len(payload.Organizations))
	for _, org := range payload.Organizations {
		if strings.TrimSpace(org.OrganizationID) == "" {
			continue
		}
		tenants = append(tenants, core.Tenant{ID: org.OrganizationID, Name: org.Name})
	}
	if len(tenants) == 0 {
		return nil, core.NotFoundError("Zoho account has no active organizations.", map[string]any{
			"platform": string(core.PlatformZoho),
		}).WithTextCode(core.LedgerErrorNoTenants)
	}
	return tenants, nil
}

// Revoke invalidates the refresh token, or the access token when no
// refresh token was issued.
func (o *OAuth) Revoke(ctx context.Context, record core.TokenRecord) error {
	token := record.RefreshToken
	if strings.TrimSpace(token) == "" {
		token = record.AccessToken
	}
	endpoint := o.accountsFromAPIDomain(record.APIDomain) + revokePath + "?token=" + url.QueryEscape(token)
	return o.tokens.Revoke(ctx, endpoint, url.Values{})
}

func (o *OAuth) booksURL(apiDomain string) string {
	return booksURL(firstNonEmpty(apiDomain, o.cfg.APIDomain))
}

func (o *OAuth) accountsFromHint(hint string) string {
	hint = normalizeHost(hint)
	if hint == "" || !o.trustedHost(hint) {
		return o.cfg.AccountsURL
	}
	return strings.Replace(hint, "www.zohoapis", "accounts.zoho", 1)
}

// accountsFromAPIDomain maps www.zohoapis.<region> to accounts.zoho.<region>.
func (o *OAuth) accountsFromAPIDomain(apiDomain string) string {
	apiDomain = normalizeHost(apiDomain)
	if apiDomain == "" || apiDomain == DefaultAPIDomain {
		return o.cfg.AccountsURL
	}
	if strings.Contains(apiDomain, "www.zohoapis") {
		return strings.Replace(apiDomain, "www.zohoapis", "accounts.zoho", 1)
	}
	return apiDomain
}

func (o *OAuth) trustedHost(candidate string) bool {
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if configured, err := url.Parse(o.cfg.AccountsURL); err == nil && strings.EqualFold(configured.Hostname(), host) {
		return true
	}
	for _, prefix := range []string{"accounts.zoho.", "accounts.zohocloud.", "www.zohoapis.", "www.zohocloud."} {
		if !strings.HasPrefix(host, prefix) {
			continue
		}
		_, known := zohoRegions[strings.TrimPrefix(host, prefix)]
		return known
	}
	return false
}

var zohoRegions = map[string]struct{}{
	"com":    {},
	"eu":     {},
	"in":     {},
	"com.au": {},
	"com.cn": {},
	"jp":     {},
	"ca":     {},
	"sa":     {},
	"uk":     {},
}

func apiDomainFromAccounts(accounts string) string {
	if strings.Contains(accounts, "accounts.zoho") {
		return strings.Replace(accounts, "accounts.zoho", "www.zohoapis", 1)
	}
	return ""
}

func booksURL(apiDomain string) string {
	return strings.TrimRight(apiDomain, "/") + booksPath
}

func normalizeHost(value string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return ""
	}
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var (
	_ core.OAuthProtocol = (*OAuth)(nil)
	_ core.TokenRevoker  = (*OAuth)(nil)
)
