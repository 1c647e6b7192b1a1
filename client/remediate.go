package client

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/gateway"
)

// Remediation is the next step for a recoverable failure. AuthURL is set
// for auth_required; Tenants is set for tenant_required.
type Remediation struct {
	Kind     string        `json:"kind"`
	Platform core.Platform `json:"platform"`
	AuthURL  string        `json:"auth_url,omitempty"`
	Tenants  []core.Tenant `json:"tenants,omitempty"`
}

// Remediate inspects a failed call for userID. On AUTH_REQUIRED it fetches a
// fresh authorization URL; on TENANT_REQUIRED it lists the connected
// tenants so one can be passed to SelectTenant. Other errors come back
// unchanged. fallback names the platform when the error does not carry one.
func (c *Client) Remediate(ctx context.Context, userID string, fallback core.Platform, err error) (Remediation, error) {
	kind := core.Remediation(err)
	if kind == "" {
		return Remediation{}, err
	}
	platform := remediationPlatform(err)
	if platform == "" {
		platform = fallback
	}
	out := Remediation{Kind: kind, Platform: platform}
	switch kind {
	case core.RemediationAuth:
		authURL, callErr := c.AuthorizationURL(ctx, userID, platform)
		if callErr != nil {
			return out, callErr
		}
		out.AuthURL = authURL
	case core.RemediationTenant:
		tenants, callErr := c.ConnectedTenants(ctx, userID, platform)
		if callErr != nil {
			return out, callErr
		}
		out.Tenants = tenants
	}
	return out, nil
}

func remediationPlatform(err error) core.Platform {
	var rpcErr *gateway.RPCError
	if !errors.As(err, &rpcErr) {
		return ""
	}
	data, ok := rpcErr.Data.(map[string]any)
	if !ok {
		return ""
	}
	value, _ := data["platform"].(string)
	return core.Platform(strings.ToUpper(strings.TrimSpace(value)))
}
