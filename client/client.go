// Package client calls the ledgerbridge JSON-RPC gateway and runs the
// two-step recovery for AUTH_REQUIRED and TENANT_REQUIRED failures.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/gateway"
	"github.com/goliatone/go-ledgerbridge/transport"
)

type Client struct {
	endpoint  string
	transport core.TransportAdapter
	nextID    atomic.Int64
}

type Option func(*Client)

// WithTransport replaces the default REST transport.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(c *Client) {
		if adapter != nil {
			c.transport = adapter
		}
	}
}

// New targets the gateway's /rpc endpoint, e.g. "http://localhost:8080/rpc".
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, clientError("client: rpc endpoint is required", goerrors.CategoryBadInput, nil)
	}
	c := &Client{endpoint: endpoint, transport: transport.NewRESTAdapter(nil)}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Call invokes method and decodes the result into out. Failures reported by
// the gateway come back as *gateway.RPCError.
func (c *Client) Call(ctx context.Context, method string, params map[string]any, out any) error {
	id := c.nextID.Add(1)
	body, err := json.Marshal(gateway.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(strconv.FormatInt(id, 10)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "client: encode request")
	}
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:   http.MethodPost,
		URL:      c.endpoint,
		Body:     body,
		Metadata: map[string]any{"method": method},
	})
	if err != nil {
		return err
	}

	var envelope struct {
		Result json.RawMessage   `json:"result"`
		Error  *gateway.RPCError `json:"error"`
	}
	if err := json.Unmarshal(res.Body, &envelope); err != nil {
		return clientError(
			fmt.Sprintf("client: decode %s response (status %d)", method, res.StatusCode),
			goerrors.CategoryExternal,
			map[string]any{"method": method, "status_code": res.StatusCode},
		)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "client: decode "+method+" result")
	}
	return nil
}

func (c *Client) AuthorizationURL(ctx context.Context, userID string, platform core.Platform) (string, error) {
	var out struct {
		AuthURL string `json:"auth_url"`
	}
	err := c.Call(ctx, gateway.MethodGetOAuthURL, userPlatform(userID, platform), &out)
	return out.AuthURL, err
}

func (c *Client) ConnectedTenants(ctx context.Context, userID string, platform core.Platform) ([]core.Tenant, error) {
	var out struct {
		Tenants []core.Tenant `json:"tenants"`
	}
	err := c.Call(ctx, gateway.MethodGetConnectedTenants, userPlatform(userID, platform), &out)
	return out.Tenants, err
}

func (c *Client) SelectTenant(ctx context.Context, userID string, platform core.Platform, tenantID string) error {
	params := userPlatform(userID, platform)
	params["tenant_id"] = tenantID
	return c.Call(ctx, gateway.MethodSetSelectedTenant, params, nil)
}

func (c *Client) ListContacts(ctx context.Context, userID string, platform core.Platform, role core.ContactType) ([]core.UnifiedContact, error) {
	params := userPlatform(userID, platform)
	if role != "" {
		params["contact_type"] = string(role)
	}
	var out []core.UnifiedContact
	err := c.Call(ctx, gateway.MethodGetContactSummary, params, &out)
	return out, err
}

func (c *Client) FinancialSummary(ctx context.Context, userID string, platform core.Platform, start string, end string) (core.FinancialSummary, error) {
	params := userPlatform(userID, platform)
	params["start_date"] = start
	params["end_date"] = end
	var out core.FinancialSummary
	err := c.Call(ctx, gateway.MethodGetFinancialSummary, params, &out)
	return out, err
}

func (c *Client) CreateInvoice(ctx context.Context, userID string, platform core.Platform, in core.CreateInvoiceInput) (core.InvoiceResult, error) {
	params := userPlatform(userID, platform)
	params["contact_id"] = in.ContactID
	params["amount"] = in.Amount
	params["due_date"] = in.DueDate
	var out core.InvoiceResult
	err := c.Call(ctx, gateway.MethodCreateInvoice, params, &out)
	return out, err
}

func (c *Client) CreateContact(ctx context.Context, userID string, platform core.Platform, in core.CreateContactInput) (core.UnifiedContact, error) {
	params := userPlatform(userID, platform)
	params["name"] = in.Name
	params["email"] = in.Email
	params["contact_type"] = string(in.Type)
	var out core.UnifiedContact
	err := c.Call(ctx, gateway.MethodCreateContact, params, &out)
	return out, err
}

func (c *Client) SendEmail(ctx context.Context, in core.SendEmailInput) (core.EmailResult, error) {
	params := map[string]any{"to": in.To, "subject": in.Subject, "html": in.HTML}
	if len(in.Tags) > 0 {
		params["tags"] = in.Tags
	}
	var out core.EmailResult
	err := c.Call(ctx, gateway.MethodSendEmail, params, &out)
	return out, err
}

func userPlatform(userID string, platform core.Platform) map[string]any {
	return map[string]any{"user_id": userID, "platform": string(platform)}
}

func clientError(message string, category goerrors.Category, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(core.LedgerHTTPStatus(category)).
		WithTextCode(core.DefaultTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
