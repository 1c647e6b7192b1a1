package command

import (
	"strings"

	"github.com/goliatone/go-ledgerbridge/core"
)

const (
	TypeExchangeCode  = "ledger.command.oauth.exchange"
	TypeSelectTenant  = "ledger.command.tenant.select"
	TypeRevoke        = "ledger.command.revoke"
	TypeCreateInvoice = "ledger.command.invoice.create"
	TypeCreateContact = "ledger.command.contact.create"
	TypeSendEmail     = "ledger.command.email.send"
)

// ExchangeCodeMessage completes an OAuth callback. AccountsServer is the
// Zoho accounts-server hint and is ignored for Xero.
type ExchangeCodeMessage struct {
	Platform       core.Platform
	Code           string
	UserID         string
	AccountsServer string
}

func (ExchangeCodeMessage) Type() string { return TypeExchangeCode }

func (m ExchangeCodeMessage) Validate() error {
	if err := validatePlatform(m.Platform); err != nil {
		return err
	}
	if strings.TrimSpace(m.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("state", "user state is required")
	}
	return nil
}

type SelectTenantMessage struct {
	UserID   string
	Platform core.Platform
	TenantID string
}

func (SelectTenantMessage) Type() string { return TypeSelectTenant }

func (m SelectTenantMessage) Validate() error {
	if err := validateUserPlatform(m.UserID, m.Platform); err != nil {
		return err
	}
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "user_id, platform (ZOHO or XERO), and tenant_id are required")
	}
	return nil
}

type RevokeMessage struct {
	UserID   string
	Platform core.Platform
}

func (RevokeMessage) Type() string { return TypeRevoke }

func (m RevokeMessage) Validate() error {
	return validateUserPlatform(m.UserID, m.Platform)
}

type CreateInvoiceMessage struct {
	UserID   string
	Platform core.Platform
	Input    core.CreateInvoiceInput
}

func (CreateInvoiceMessage) Type() string { return TypeCreateInvoice }

func (m CreateInvoiceMessage) Validate() error {
	const required = "user_id, platform, contact_id, amount, and due_date are required"
	if err := validateUserPlatform(m.UserID, m.Platform); err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(m.Input.ContactID) == "":
		return commandValidationError("contact_id", required)
	case m.Input.Amount <= 0:
		return commandValidationError("amount", required)
	case strings.TrimSpace(m.Input.DueDate) == "":
		return commandValidationError("due_date", required)
	}
	return nil
}

type CreateContactMessage struct {
	UserID   string
	Platform core.Platform
	Input    core.CreateContactInput
}

func (CreateContactMessage) Type() string { return TypeCreateContact }

func (m CreateContactMessage) Validate() error {
	const required = "user_id, platform, name, and valid contact_type (CUSTOMER or VENDOR) are required"
	if err := validateUserPlatform(m.UserID, m.Platform); err != nil {
		return err
	}
	if strings.TrimSpace(m.Input.Name) == "" {
		return commandValidationError("name", required)
	}
	if m.Input.Type != core.ContactTypeCustomer && m.Input.Type != core.ContactTypeVendor {
		return commandValidationError("contact_type", required)
	}
	return nil
}

type SendEmailMessage struct {
	Input core.SendEmailInput
}

func (SendEmailMessage) Type() string { return TypeSendEmail }

func (m SendEmailMessage) Validate() error {
	return m.Input.Validate()
}

func validatePlatform(platform core.Platform) error {
	if !platform.Valid() {
		return commandValidationError("platform", "platform must be ZOHO or XERO")
	}
	return nil
}

func validateUserPlatform(userID string, platform core.Platform) error {
	if strings.TrimSpace(userID) == "" {
		return commandValidationError("user_id", "user_id and platform (ZOHO or XERO) are required")
	}
	return validatePlatform(platform)
}
