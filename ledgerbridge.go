package ledgerbridge

import (
	"context"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	ledgercommand "github.com/goliatone/go-ledgerbridge/command"
	"github.com/goliatone/go-ledgerbridge/core"
	ledgerquery "github.com/goliatone/go-ledgerbridge/query"
)

type Config = core.Config

type TokenRecord = core.TokenRecord

type Platform = core.Platform

// Service joins the credential manager, the per-platform adapters and the
// email sender behind the command and query handlers.
type Service struct {
	credentials *core.CredentialManager
	adapters    map[core.Platform]core.AccountingAdapter
	email       core.EmailSender
	commands    ledgercommand.Handlers
	queries     ledgerquery.Handlers
}

type ServiceOption func(*Service)

func WithAdapter(adapter core.AccountingAdapter) ServiceOption {
	return func(s *Service) {
		if adapter == nil {
			return
		}
		s.adapters[adapter.Platform()] = adapter
	}
}

func WithEmailSender(sender core.EmailSender) ServiceOption {
	return func(s *Service) {
		s.email = sender
	}
}

func NewService(credentials *core.CredentialManager, opts ...ServiceOption) (*Service, error) {
	if credentials == nil {
		return nil, fmt.Errorf("ledgerbridge: credential manager is required")
	}
	svc := &Service{
		credentials: credentials,
		adapters:    map[core.Platform]core.AccountingAdapter{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(svc)
	}
	svc.commands = ledgercommand.NewHandlers(svc)
	svc.queries = ledgerquery.NewHandlers(svc)
	return svc, nil
}

func (s *Service) Commands() ledgercommand.Handlers {
	if s == nil {
		return ledgercommand.Handlers{}
	}
	return s.commands
}

func (s *Service) Queries() ledgerquery.Handlers {
	if s == nil {
		return ledgerquery.Handlers{}
	}
	return s.queries
}

func (s *Service) Credentials() *core.CredentialManager {
	if s == nil {
		return nil
	}
	return s.credentials
}

func (s *Service) AuthorizationURL(ctx context.Context, userID string, platform core.Platform) (string, error) {
	return s.credentials.AuthorizationURL(ctx, platform, userID)
}

func (s *Service) ExchangeCode(ctx context.Context, platform core.Platform, code string, userID string, accountsServer string) (core.ExchangeResult, error) {
	return s.credentials.ExchangeCodeForToken(ctx, platform, code, userID, accountsServer)
}

func (s *Service) ConnectedTenants(ctx context.Context, userID string, platform core.Platform) ([]core.Tenant, error) {
	return s.credentials.ConnectedTenants(ctx, userID, platform)
}

func (s *Service) SelectTenant(ctx context.Context, userID string, platform core.Platform, tenantID string) error {
	return s.credentials.SetOrgID(ctx, userID, platform, tenantID)
}

func (s *Service) Revoke(ctx context.Context, userID string, platform core.Platform) error {
	return s.credentials.Revoke(ctx, userID, platform)
}

func (s *Service) ListContacts(ctx context.Context, userID string, platform core.Platform, role core.ContactType) ([]core.UnifiedContact, error) {
	adapter, err := s.adapter(platform)
	if err != nil {
		return nil, err
	}
	return adapter.ListContacts(ctx, userID, role)
}

func (s *Service) FinancialSummary(ctx context.Context, userID string, platform core.Platform, window core.DateRange) (core.FinancialSummary, error) {
	adapter, err := s.adapter(platform)
	if err != nil {
		return core.FinancialSummary{}, err
	}
	return adapter.FinancialSummary(ctx, userID, window)
}

func (s *Service) CreateInvoice(ctx context.Context, userID string, platform core.Platform, in core.CreateInvoiceInput) (core.InvoiceResult, error) {
	adapter, err := s.adapter(platform)
	if err != nil {
		return core.InvoiceResult{}, err
	}
	return adapter.CreateInvoice(ctx, userID, in)
}

func (s *Service) CreateContact(ctx context.Context, userID string, platform core.Platform, in core.CreateContactInput) (core.UnifiedContact, error) {
	adapter, err := s.adapter(platform)
	if err != nil {
		return core.UnifiedContact{}, err
	}
	return adapter.CreateContact(ctx, userID, in)
}

func (s *Service) SendEmail(ctx context.Context, in core.SendEmailInput) (core.EmailResult, error) {
	if s.email == nil {
		return core.EmailResult{}, goerrors.New("ledgerbridge: email sender is not configured", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.LedgerErrorInternal)
	}
	return s.email.SendEmail(ctx, in)
}

func (s *Service) adapter(platform core.Platform) (core.AccountingAdapter, error) {
	adapter, ok := s.adapters[platform]
	if !ok || adapter == nil {
		return nil, core.NotFoundError("ledgerbridge: no adapter registered for platform", map[string]any{
			"platform": string(platform),
		})
	}
	return adapter, nil
}

var (
	_ ledgercommand.MutatingService = (*Service)(nil)
	_ ledgerquery.ReadService       = (*Service)(nil)
)
