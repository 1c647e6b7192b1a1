package ledgerbridge

import (
	"fmt"

	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/providers/xero"
	"github.com/goliatone/go-ledgerbridge/providers/zoho"
	"github.com/goliatone/go-ledgerbridge/transport"
)

func ZohoProtocol(cfg core.Config, client core.HTTPDoer) (*zoho.OAuth, error) {
	protocol := zoho.ConfigFrom(cfg.Zoho)
	protocol.RequestTimeout = cfg.RequestTimeout
	protocol.HTTPClient = client
	return zoho.NewOAuth(protocol)
}

func XeroProtocol(cfg core.Config, client core.HTTPDoer) (*xero.OAuth, error) {
	protocol := xero.ConfigFrom(cfg.Xero)
	protocol.RequestTimeout = cfg.RequestTimeout
	protocol.HTTPClient = client
	return xero.NewOAuth(protocol)
}

// ZohoAdapter builds the Zoho adapter. A nil adapter falls back to the
// rate limited, breaker guarded provider stack.
func ZohoAdapter(credentials *core.CredentialManager, adapter core.TransportAdapter) (*zoho.Adapter, error) {
	if adapter == nil {
		adapter = transport.NewProviderAdapter(transport.ProviderConfig{Platform: core.PlatformZoho})
	}
	if credentials == nil {
		return nil, fmt.Errorf("ledgerbridge: credential manager is required")
	}
	return zoho.NewAdapter(zoho.AdapterConfig{
		Credentials: credentials,
		Transport:   adapter,
		Observer:    credentials.Observer(),
		Timeout:     credentials.Config().RequestTimeout,
	})
}

func XeroAdapter(credentials *core.CredentialManager, adapter core.TransportAdapter) (*xero.Adapter, error) {
	if adapter == nil {
		adapter = transport.NewProviderAdapter(transport.ProviderConfig{Platform: core.PlatformXero})
	}
	if credentials == nil {
		return nil, fmt.Errorf("ledgerbridge: credential manager is required")
	}
	return xero.NewAdapter(xero.AdapterConfig{
		Credentials: credentials,
		Transport:   adapter,
		Observer:    credentials.Observer(),
		Timeout:     credentials.Config().RequestTimeout,
	})
}
