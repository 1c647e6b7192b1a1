package core

import (
	"context"
	"fmt"
	"strings"
)

// Signer applies a client handle's credentials to an outbound request.
type Signer interface {
	Sign(ctx context.Context, req *TransportRequest, handle ClientHandle) error
}

// TokenSigner writes "<Scheme> <token>" into Authorization and scopes the
// request to the handle's tenant through a header, a query parameter or
// both.
type TokenSigner struct {
	Scheme       string
	TenantHeader string
	TenantQuery  string
}

func BearerTokenSigner(tenantHeader string) TokenSigner {
	return TokenSigner{Scheme: "Bearer", TenantHeader: tenantHeader}
}

func (s TokenSigner) Sign(_ context.Context, req *TransportRequest, handle ClientHandle) error {
	if req == nil {
		return fmt.Errorf("core: transport request is required")
	}
	token := strings.TrimSpace(handle.AccessToken)
	if token == "" {
		return fmt.Errorf("core: access token is required for signing")
	}
	scheme := strings.TrimSpace(s.Scheme)
	if scheme == "" {
		scheme = "Bearer"
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Authorization"] = scheme + " " + token

	tenant := strings.TrimSpace(handle.TenantID)
	if tenant == "" {
		return nil
	}
	if header := strings.TrimSpace(s.TenantHeader); header != "" {
		req.Headers[header] = tenant
	}
	if param := strings.TrimSpace(s.TenantQuery); param != "" {
		if req.Query == nil {
			req.Query = map[string]string{}
		}
		if _, set := req.Query[param]; !set {
			req.Query[param] = tenant
		}
	}
	return nil
}

var _ Signer = TokenSigner{}
