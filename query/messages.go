package query

import (
	"strings"

	"github.com/goliatone/go-ledgerbridge/core"
)

const (
	TypeAuthorizationURL = "ledger.query.oauth.authorization_url"
	TypeConnectedTenants = "ledger.query.tenants.list"
	TypeListContacts     = "ledger.query.contacts.list"
	TypeFinancialSummary = "ledger.query.financial_summary"
)

const userPlatformRequired = "user_id and platform (ZOHO or XERO) are required"

type AuthorizationURLMessage struct {
	UserID   string
	Platform core.Platform
}

func (AuthorizationURLMessage) Type() string { return TypeAuthorizationURL }

func (m AuthorizationURLMessage) Validate() error {
	return validateUserPlatform(m.UserID, m.Platform)
}

type ConnectedTenantsMessage struct {
	UserID   string
	Platform core.Platform
}

func (ConnectedTenantsMessage) Type() string { return TypeConnectedTenants }

func (m ConnectedTenantsMessage) Validate() error {
	return validateUserPlatform(m.UserID, m.Platform)
}

// ListContactsMessage lists contacts for Role, CUSTOMER when empty.
type ListContactsMessage struct {
	UserID   string
	Platform core.Platform
	Role     core.ContactType
}

func (ListContactsMessage) Type() string { return TypeListContacts }

func (m ListContactsMessage) Validate() error {
	if err := validateUserPlatform(m.UserID, m.Platform); err != nil {
		return err
	}
	switch m.Role {
	case "", core.ContactTypeCustomer, core.ContactTypeVendor:
		return nil
	}
	return queryValidationError("contact_type", "contact_type must be CUSTOMER or VENDOR")
}

func (m ListContactsMessage) ResolvedRole() core.ContactType {
	if m.Role == "" {
		return core.ContactTypeCustomer
	}
	return m.Role
}

type FinancialSummaryMessage struct {
	UserID    string
	Platform  core.Platform
	StartDate string
	EndDate   string
}

func (FinancialSummaryMessage) Type() string { return TypeFinancialSummary }

func (m FinancialSummaryMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" || !m.Platform.Valid() ||
		strings.TrimSpace(m.StartDate) == "" || strings.TrimSpace(m.EndDate) == "" {
		return queryValidationError("start_date", "user_id, platform, start_date, and end_date are required")
	}
	_, err := m.Range()
	return err
}

func (m FinancialSummaryMessage) Range() (core.DateRange, error) {
	return core.ParseDateRange(m.StartDate, m.EndDate)
}

func validateUserPlatform(userID string, platform core.Platform) error {
	if strings.TrimSpace(userID) == "" {
		return queryValidationError("user_id", userPlatformRequired)
	}
	if !platform.Valid() {
		return queryValidationError("platform", userPlatformRequired)
	}
	return nil
}
