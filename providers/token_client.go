package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type TokenClientConfig struct {
	Platform     core.Platform
	ClientID     string
	ClientSecret string
	// ClientSecretInBody sends client_secret as a form field instead of
	// HTTP Basic auth.
	ClientSecretInBody bool
	RequestTimeout     time.Duration
	HTTPClient         core.HTTPDoer
}

// TokenClient talks to an OAuth2 token endpoint. The endpoint URL is passed
// per call because Zoho routes by data-center region.
type TokenClient struct {
	cfg        TokenClientConfig
	httpClient core.HTTPDoer
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	APIDomain        string
	ErrorCode        string
	ErrorDescription string
}

func NewTokenClient(cfg TokenClientConfig) (*TokenClient, error) {
	if !cfg.Platform.Valid() {
		return nil, fmt.Errorf("providers: token client platform %q is invalid", cfg.Platform)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers: %s client id is required", cfg.Platform.DisplayName())
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTokenRequestTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &TokenClient{cfg: cfg, httpClient: client}, nil
}

func (c *TokenClient) Platform() core.Platform {
	return c.cfg.Platform
}

func (c *TokenClient) ClientID() string {
	return c.cfg.ClientID
}

// ExchangeCode runs the authorization_code grant.
func (c *TokenClient) ExchangeCode(ctx context.Context, tokenURL string, code string, redirectURI string) (core.TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	if redirectURI = strings.TrimSpace(redirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	payload, err := c.fetchToken(ctx, tokenURL, form, "token exchange")
	if err != nil {
		return core.TokenGrant{}, err
	}
	return payload.grant(), nil
}

// RefreshToken runs the refresh_token grant.
func (c *TokenClient) RefreshToken(ctx context.Context, tokenURL string, refreshToken string) (core.TokenGrant, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return core.TokenGrant{}, fmt.Errorf("providers: refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", strings.TrimSpace(refreshToken))
	payload, err := c.fetchToken(ctx, tokenURL, form, "token refresh")
	if err != nil {
		return core.TokenGrant{}, err
	}
	return payload.grant(), nil
}

// Revoke posts form to a revocation endpoint and expects a 2xx.
func (c *TokenClient) Revoke(ctx context.Context, revokeURL string, form url.Values) error {
	res, body, err := c.post(ctx, revokeURL, form)
	if err != nil {
		return core.ProviderError(c.cfg.Platform, "token revocation", 0, "", err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		payload, _ := parseTokenPayload(body, res.Header.Get("Content-Type"))
		return core.ProviderError(c.cfg.Platform, "token revocation", res.StatusCode, describeTokenError(payload), nil)
	}
	return nil
}

func (c *TokenClient) fetchToken(ctx context.Context, tokenURL string, form url.Values, operation string) (tokenEndpointPayload, error) {
	if c == nil || c.httpClient == nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token client is not configured")
	}
	res, body, err := c.post(ctx, tokenURL, form)
	if err != nil {
		return tokenEndpointPayload{}, core.ProviderError(c.cfg.Platform, operation, 0, "", err)
	}
	payload, parseErr := parseTokenPayload(body, res.Header.Get("Content-Type"))
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		detail := "unknown error"
		if parseErr == nil {
			detail = describeTokenError(payload)
		}
		return tokenEndpointPayload{}, core.ProviderError(c.cfg.Platform, operation, res.StatusCode, detail, nil)
	}
	if parseErr != nil {
		return tokenEndpointPayload{}, core.ProviderError(c.cfg.Platform, operation, res.StatusCode, "decode token response", parseErr)
	}
	// Zoho reports grant errors with a 200 status.
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, core.ProviderError(c.cfg.Platform, operation, res.StatusCode, describeTokenError(payload), nil)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, core.ProviderError(c.cfg.Platform, operation, res.StatusCode, "response missing access token", nil)
	}
	return payload, nil
}

func (c *TokenClient) post(ctx context.Context, endpoint string, form url.Values) (*http.Response, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, nil, fmt.Errorf("providers: endpoint url is required for %s", c.cfg.Platform)
	}

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		values.Set("client_secret", c.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("providers: token endpoint request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxTokenResponseBodyBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("providers: read token endpoint response: %w", err)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return nil, nil, fmt.Errorf("providers: token endpoint response exceeds %d bytes", maxTokenResponseBodyBytes)
	}
	return res, body, nil
}

func (p tokenEndpointPayload) grant() core.TokenGrant {
	return core.TokenGrant{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		Scope:        p.Scope,
		ExpiresIn:    p.ExpiresIn,
		APIDomain:    p.APIDomain,
	}
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.Contains(contentType, "json"):
		return parseTokenPayloadJSON(body)
	case strings.Contains(contentType, "x-www-form-urlencoded"), strings.Contains(contentType, "text/plain"):
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		APIDomain:        readAnyString(decoded["api_domain"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		APIDomain:        strings.TrimSpace(values.Get("api_domain")),
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
		if parsed, err := typed.Float64(); err == nil {
			return int64(parsed)
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
