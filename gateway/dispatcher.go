package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ledgercommand "github.com/goliatone/go-ledgerbridge/command"
	"github.com/goliatone/go-ledgerbridge/core"
	ledgerquery "github.com/goliatone/go-ledgerbridge/query"
)

const (
	MethodGetOAuthURL         = "get_oauth_url"
	MethodGetConnectedTenants = "get_connected_tenants"
	MethodSetSelectedTenant   = "set_selected_tenant"
	MethodGetContactSummary   = "get_contact_summary"
	MethodGetFinancialSummary = "get_financial_summary"
	MethodCreateInvoice       = "create_invoice"
	MethodCreateContact       = "create_contact"
	MethodSendEmail           = "send_email"
)

const jsonRPCVersion = "2.0"

// Backend exposes the command and query handlers the methods run on.
type Backend interface {
	Commands() ledgercommand.Handlers
	Queries() ledgerquery.Handlers
}

// MethodFunc runs one RPC method against decoded params.
type MethodFunc func(ctx context.Context, params Params) (any, error)

type method struct {
	run MethodFunc
	// verbatim forwards untyped failures with their own message instead
	// of the generic internal error.
	verbatim bool
}

// Dispatcher routes RPC requests by exact method name.
type Dispatcher struct {
	observer *core.Observer

	mu      sync.RWMutex
	methods map[string]method
}

func NewDispatcher(backend Backend, observer *core.Observer) (*Dispatcher, error) {
	if backend == nil {
		return nil, fmt.Errorf("gateway: backend is required")
	}
	if observer == nil {
		observer = core.NewObserver(nil, nil)
	}
	d := &Dispatcher{observer: observer, methods: map[string]method{}}
	registerLedgerMethods(d, backend.Commands(), backend.Queries())
	return d, nil
}

// Register adds or replaces a method.
func (d *Dispatcher) Register(name string, verbatim bool, run MethodFunc) {
	name = strings.TrimSpace(name)
	if d == nil || name == "" || run == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[name] = method{run: run, verbatim: verbatim}
}

func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	startedAt := time.Now().UTC()
	resp = Response{JSONRPC: jsonRPCVersion, ID: req.ID}
	if len(resp.ID) == 0 {
		resp.ID = json.RawMessage("null")
	}
	fields := map[string]any{"method": req.Method}
	if platform := req.Params.Platform(); platform != "" {
		fields["platform"] = string(platform)
	}
	var failure error
	defer func() {
		if recovered := recover(); recovered != nil {
			resp.Result = nil
			resp.Error = &RPCError{Code: CodeServerError, Message: MessageInternal, Data: fmt.Sprint(recovered)}
			failure = fmt.Errorf("panic: %v", recovered)
		}
		d.observer.Observe(ctx, startedAt, "rpc", failure, fields)
	}()

	if strings.TrimSpace(req.Method) == "" {
		failure = errors.New("method required")
		resp.Error = &RPCError{Code: CodeServerError, Message: MessageInternal, Data: "Method required"}
		return resp
	}

	d.mu.RLock()
	handler, ok := d.methods[req.Method]
	d.mu.RUnlock()
	if !ok {
		failure = fmt.Errorf("%s: %s", MessageMethodNotFound, req.Method)
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: MessageMethodNotFound}
		return resp
	}

	params := req.Params
	if params == nil {
		params = Params{}
	}
	result, err := handler.run(ctx, params)
	if err != nil {
		failure = err
		resp.Error = rpcError(err, handler.verbatim)
		return resp
	}
	resp.Result = result
	return resp
}

func registerLedgerMethods(d *Dispatcher, commands ledgercommand.Handlers, queries ledgerquery.Handlers) {
	d.Register(MethodGetOAuthURL, true, func(ctx context.Context, p Params) (any, error) {
		authURL, err := ledgerquery.Ask[ledgerquery.AuthorizationURLMessage, string](ctx, queries.AuthorizationURL,
			ledgerquery.AuthorizationURLMessage{UserID: p.Get("user_id"), Platform: p.Platform()})
		if err != nil {
			return nil, err
		}
		return map[string]string{"auth_url": authURL}, nil
	})

	d.Register(MethodGetConnectedTenants, true, func(ctx context.Context, p Params) (any, error) {
		tenants, err := ledgerquery.Ask[ledgerquery.ConnectedTenantsMessage, []core.Tenant](ctx, queries.ConnectedTenants,
			ledgerquery.ConnectedTenantsMessage{UserID: p.Get("user_id"), Platform: p.Platform()})
		if err != nil {
			return nil, err
		}
		if tenants == nil {
			tenants = []core.Tenant{}
		}
		return map[string]any{"tenants": tenants}, nil
	})

	d.Register(MethodSetSelectedTenant, true, func(ctx context.Context, p Params) (any, error) {
		err := ledgercommand.Exec[ledgercommand.SelectTenantMessage](ctx, commands.SelectTenant,
			ledgercommand.SelectTenantMessage{UserID: p.Get("user_id"), Platform: p.Platform(), TenantID: p.Get("tenant_id")})
		if err != nil {
			return nil, err
		}
		return map[string]bool{"success": true}, nil
	})

	d.Register(MethodGetContactSummary, false, func(ctx context.Context, p Params) (any, error) {
		contacts, err := ledgerquery.Ask[ledgerquery.ListContactsMessage, []core.UnifiedContact](ctx, queries.ListContacts,
			ledgerquery.ListContactsMessage{UserID: p.Get("user_id"), Platform: p.Platform(), Role: p.ContactType("contact_type")})
		if err != nil {
			return nil, err
		}
		if contacts == nil {
			contacts = []core.UnifiedContact{}
		}
		return contacts, nil
	})

	d.Register(MethodGetFinancialSummary, false, func(ctx context.Context, p Params) (any, error) {
		return ledgerquery.Ask[ledgerquery.FinancialSummaryMessage, core.FinancialSummary](ctx, queries.FinancialSummary,
			ledgerquery.FinancialSummaryMessage{
				UserID:    p.Get("user_id"),
				Platform:  p.Platform(),
				StartDate: p.Get("start_date"),
				EndDate:   p.Get("end_date"),
			})
	})

	d.Register(MethodCreateInvoice, false, func(ctx context.Context, p Params) (any, error) {
		return ledgercommand.Run[ledgercommand.CreateInvoiceMessage, core.InvoiceResult](ctx, commands.CreateInvoice,
			ledgercommand.CreateInvoiceMessage{
				UserID:   p.Get("user_id"),
				Platform: p.Platform(),
				Input: core.CreateInvoiceInput{
					ContactID: p.Get("contact_id"),
					Amount:    p.Amount("amount"),
					DueDate:   p.Get("due_date"),
				},
			})
	})

	d.Register(MethodCreateContact, false, func(ctx context.Context, p Params) (any, error) {
		return ledgercommand.Run[ledgercommand.CreateContactMessage, core.UnifiedContact](ctx, commands.CreateContact,
			ledgercommand.CreateContactMessage{
				UserID:   p.Get("user_id"),
				Platform: p.Platform(),
				Input: core.CreateContactInput{
					Name:  p.Get("name"),
					Email: p.Get("email"),
					Type:  p.ContactType("contact_type"),
				},
			})
	})

	d.Register(MethodSendEmail, true, func(ctx context.Context, p Params) (any, error) {
		return ledgercommand.Run[ledgercommand.SendEmailMessage, core.EmailResult](ctx, commands.SendEmail,
			ledgercommand.SendEmailMessage{Input: core.SendEmailInput{
				To:      p.Get("to"),
				Subject: p.Get("subject"),
				HTML:    p.Get("html"),
				Tags:    p.Tags("tags"),
			}})
	})
}
