package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	ledgercommand "github.com/goliatone/go-ledgerbridge/command"
	"github.com/goliatone/go-ledgerbridge/core"
	ledgerquery "github.com/goliatone/go-ledgerbridge/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "ledger.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "ledger.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "ledger.command.test" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(ledgercommand.SelectTenantMessage{UserID: "u1", Platform: core.PlatformXero}); err == nil {
		t.Fatalf("expected missing tenant to fail contract validation")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	sub, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	t.Cleanup(sub.Unsubscribe)
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

type ledgerStub struct {
	selected string
}

func (s *ledgerStub) ExchangeCode(context.Context, core.Platform, string, string, string) (core.ExchangeResult, error) {
	return core.ExchangeResult{RequiresOrgSelection: true}, nil
}

func (s *ledgerStub) SelectTenant(_ context.Context, _ string, _ core.Platform, tenantID string) error {
	s.selected = tenantID
	return nil
}

func (s *ledgerStub) Revoke(context.Context, string, core.Platform) error { return nil }

func (s *ledgerStub) CreateInvoice(context.Context, string, core.Platform, core.CreateInvoiceInput) (core.InvoiceResult, error) {
	return core.InvoiceResult{InvoiceID: "inv-1"}, nil
}

func (s *ledgerStub) CreateContact(_ context.Context, _ string, _ core.Platform, in core.CreateContactInput) (core.UnifiedContact, error) {
	return core.UnifiedContact{ID: "c1", Name: in.Name, Type: in.Type}, nil
}

func (s *ledgerStub) SendEmail(context.Context, core.SendEmailInput) (core.EmailResult, error) {
	return core.EmailResult{EmailID: "em_1"}, nil
}

func (s *ledgerStub) AuthorizationURL(context.Context, string, core.Platform) (string, error) {
	return "https://auth.example.test", nil
}

func (s *ledgerStub) ConnectedTenants(context.Context, string, core.Platform) ([]core.Tenant, error) {
	return []core.Tenant{{ID: "t1"}}, nil
}

func (s *ledgerStub) ListContacts(_ context.Context, _ string, _ core.Platform, role core.ContactType) ([]core.UnifiedContact, error) {
	return []core.UnifiedContact{{ID: "c1", Type: role}}, nil
}

func (s *ledgerStub) FinancialSummary(_ context.Context, _ string, _ core.Platform, window core.DateRange) (core.FinancialSummary, error) {
	return core.NewFinancialSummary(window.StartString(), window.EndString(), 5, 2, ""), nil
}

func TestRegisterLedgerHandlers_DispatchAndQuery(t *testing.T) {
	stub := &ledgerStub{}
	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterLedgerHandlers(adapter, ledgercommand.NewHandlers(stub), ledgerquery.NewHandlers(stub))
	if err != nil {
		t.Fatalf("register ledger handlers: %v", err)
	}
	t.Cleanup(subs.Unsubscribe)
	if len(subs) != 10 {
		t.Fatalf("expected 10 subscriptions, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), ledgercommand.SelectTenantMessage{
		UserID: "u1", Platform: core.PlatformZoho, TenantID: "org-1",
	}); err != nil {
		t.Fatalf("dispatch select tenant: %v", err)
	}
	if stub.selected != "org-1" {
		t.Fatalf("expected org-1 selected, got %q", stub.selected)
	}

	contacts, err := Query[ledgerquery.ListContactsMessage, []core.UnifiedContact](context.Background(), ledgerquery.ListContactsMessage{
		UserID: "u1", Platform: core.PlatformZoho, Role: core.ContactTypeVendor,
	})
	if err != nil {
		t.Fatalf("query contacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Type != core.ContactTypeVendor {
		t.Fatalf("unexpected contacts %#v", contacts)
	}
}
