package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-ledgerbridge/core"
)

// MutatingService is the write side of the ledger bridge.
type MutatingService interface {
	ExchangeCode(ctx context.Context, platform core.Platform, code string, userID string, accountsServer string) (core.ExchangeResult, error)
	SelectTenant(ctx context.Context, userID string, platform core.Platform, tenantID string) error
	Revoke(ctx context.Context, userID string, platform core.Platform) error
	CreateInvoice(ctx context.Context, userID string, platform core.Platform, in core.CreateInvoiceInput) (core.InvoiceResult, error)
	CreateContact(ctx context.Context, userID string, platform core.Platform, in core.CreateContactInput) (core.UnifiedContact, error)
	SendEmail(ctx context.Context, in core.SendEmailInput) (core.EmailResult, error)
}

type ExchangeCodeCommand struct {
	service MutatingService
}

func NewExchangeCodeCommand(service MutatingService) *ExchangeCodeCommand {
	return &ExchangeCodeCommand{service: service}
}

func (c *ExchangeCodeCommand) Execute(ctx context.Context, msg ExchangeCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.ExchangeCode(ctx, msg.Platform, msg.Code, msg.UserID, msg.AccountsServer)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SelectTenantCommand struct {
	service MutatingService
}

func NewSelectTenantCommand(service MutatingService) *SelectTenantCommand {
	return &SelectTenantCommand{service: service}
}

func (c *SelectTenantCommand) Execute(ctx context.Context, msg SelectTenantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: tenant service is required")
	}
	return c.service.SelectTenant(ctx, msg.UserID, msg.Platform, msg.TenantID)
}

type RevokeCommand struct {
	service MutatingService
}

func NewRevokeCommand(service MutatingService) *RevokeCommand {
	return &RevokeCommand{service: service}
}

func (c *RevokeCommand) Execute(ctx context.Context, msg RevokeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	return c.service.Revoke(ctx, msg.UserID, msg.Platform)
}

type CreateInvoiceCommand struct {
	service MutatingService
}

func NewCreateInvoiceCommand(service MutatingService) *CreateInvoiceCommand {
	return &CreateInvoiceCommand{service: service}
}

func (c *CreateInvoiceCommand) Execute(ctx context.Context, msg CreateInvoiceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: invoice service is required")
	}
	out, err := c.service.CreateInvoice(ctx, msg.UserID, msg.Platform, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateContactCommand struct {
	service MutatingService
}

func NewCreateContactCommand(service MutatingService) *CreateContactCommand {
	return &CreateContactCommand{service: service}
}

func (c *CreateContactCommand) Execute(ctx context.Context, msg CreateContactMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	out, err := c.service.CreateContact(ctx, msg.UserID, msg.Platform, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendEmailCommand struct {
	service MutatingService
}

func NewSendEmailCommand(service MutatingService) *SendEmailCommand {
	return &SendEmailCommand{service: service}
}

func (c *SendEmailCommand) Execute(ctx context.Context, msg SendEmailMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: email service is required")
	}
	out, err := c.service.SendEmail(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// Handlers bundles every command over one service.
type Handlers struct {
	ExchangeCode  *ExchangeCodeCommand
	SelectTenant  *SelectTenantCommand
	Revoke        *RevokeCommand
	CreateInvoice *CreateInvoiceCommand
	CreateContact *CreateContactCommand
	SendEmail     *SendEmailCommand
}

func NewHandlers(service MutatingService) Handlers {
	return Handlers{
		ExchangeCode:  NewExchangeCodeCommand(service),
		SelectTenant:  NewSelectTenantCommand(service),
		Revoke:        NewRevokeCommand(service),
		CreateInvoice: NewCreateInvoiceCommand(service),
		CreateContact: NewCreateContactCommand(service),
		SendEmail:     NewSendEmailCommand(service),
	}
}

// Run validates msg, executes cmd and returns the result it stored.
func Run[T interface{ Validate() error }, R any](ctx context.Context, cmd gocmd.Commander[T], msg T) (R, error) {
	var zero R
	if err := msg.Validate(); err != nil {
		return zero, err
	}
	collector := gocmd.NewResult[R]()
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, _ := collector.Load()
	return out, nil
}

// Exec validates msg and executes a command that stores no result.
func Exec[T interface{ Validate() error }](ctx context.Context, cmd gocmd.Commander[T], msg T) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return cmd.Execute(ctx, msg)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
