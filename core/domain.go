package core

import (
	"encoding/json"
	"strings"
	"time"
)

// TokenRecord is the persisted OAuth state for one (user, platform) pair.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	RefreshedAt  *time.Time
	APIDomain    string
	OrgID        string
}

type tokenRecordWire struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiryTime   int64  `json:"expiryTime"`
	Scope        string `json:"scope,omitempty"`
	RefreshedAt  int64  `json:"refreshedAt,omitempty"`
	APIDomain    string `json:"apiDomain,omitempty"`
	OrgID        string `json:"orgId,omitempty"`
}

// MarshalJSON keeps epoch-millisecond timestamps so records written by
// earlier deployments stay readable.
func (r TokenRecord) MarshalJSON() ([]byte, error) {
	wire := tokenRecordWire{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Scope:        r.Scope,
		APIDomain:    r.APIDomain,
		OrgID:        r.OrgID,
	}
	if !r.ExpiresAt.IsZero() {
		wire.ExpiryTime = r.ExpiresAt.UnixMilli()
	}
	if r.RefreshedAt != nil && !r.RefreshedAt.IsZero() {
		wire.RefreshedAt = r.RefreshedAt.UnixMilli()
	}
	return json.Marshal(wire)
}

func (r *TokenRecord) UnmarshalJSON(data []byte) error {
	var wire tokenRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = TokenRecord{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		Scope:        wire.Scope,
		APIDomain:    wire.APIDomain,
		OrgID:        wire.OrgID,
	}
	if wire.ExpiryTime > 0 {
		r.ExpiresAt = time.UnixMilli(wire.ExpiryTime).UTC()
	}
	if wire.RefreshedAt > 0 {
		refreshedAt := time.UnixMilli(wire.RefreshedAt).UTC()
		r.RefreshedAt = &refreshedAt
	}
	return nil
}

func (r TokenRecord) Valid() bool {
	return strings.TrimSpace(r.AccessToken) != ""
}

func (r TokenRecord) CanRefresh() bool {
	return strings.TrimSpace(r.RefreshToken) != ""
}

func (r TokenRecord) HasTenant() bool {
	return strings.TrimSpace(r.OrgID) != ""
}

func (r TokenRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// NeedsRefresh reports a token that expires within margin of now.
func (r TokenRecord) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return !ResolveTokenState(now, r, margin).IsFresh
}

func (r TokenRecord) Clone() TokenRecord {
	cloned := r
	if r.RefreshedAt != nil {
		value := *r.RefreshedAt
		cloned.RefreshedAt = &value
	}
	return cloned
}

// TokenGrant is a token endpoint response normalized across platforms.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
	APIDomain    string
}

type ExchangeResult struct {
	RequiresOrgSelection bool `json:"requiresOrgSelection"`
}

type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"tenantType,omitempty"`
}

// ClientHandle is the read-only, tenant-scoped view adapters receive.
type ClientHandle struct {
	UserID      string
	Platform    Platform
	AccessToken string
	TenantID    string
	APIDomain   string
}

type ContactType string

const (
	ContactTypeCustomer ContactType = "CUSTOMER"
	ContactTypeVendor   ContactType = "VENDOR"
)

func ParseContactType(value string) (ContactType, error) {
	switch ContactType(strings.ToUpper(strings.TrimSpace(value))) {
	case ContactTypeCustomer:
		return ContactTypeCustomer, nil
	case ContactTypeVendor:
		return ContactTypeVendor, nil
	}
	return "", validationError("contact_type", "contact_type must be CUSTOMER or VENDOR")
}

// MatchesRole reports whether a contact flagged with the given roles belongs
// in a listing for role. Contacts with neither flag match both roles.
func MatchesRole(isCustomer bool, isVendor bool, role ContactType) bool {
	if !isCustomer && !isVendor {
		return true
	}
	switch role {
	case ContactTypeCustomer:
		return isCustomer
	case ContactTypeVendor:
		return isVendor
	}
	return false
}

type UnifiedContact struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email,omitempty"`
	Type    ContactType `json:"type"`
	Balance float64     `json:"balance"`
}

type FinancialSummary struct {
	StartDate     string  `json:"startDate"`
	EndDate       string  `json:"endDate"`
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalExpenses float64 `json:"totalExpenses"`
	NetIncome     float64 `json:"netIncome"`
	Currency      string  `json:"currency"`
}

const DefaultCurrency = "USD"

// NewFinancialSummary derives net income from the two totals.
func NewFinancialSummary(start string, end string, revenue float64, expenses float64, currency string) FinancialSummary {
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	return FinancialSummary{
		StartDate:     start,
		EndDate:       end,
		TotalRevenue:  revenue,
		TotalExpenses: expenses,
		NetIncome:     revenue - expenses,
		Currency:      currency,
	}
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

const DateLayout = "2006-01-02"

// ParseDateRange validates YYYY-MM-DD bounds with start <= end.
func ParseDateRange(start string, end string) (DateRange, error) {
	startAt, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, validationError("start_date", "start_date must be YYYY-MM-DD")
	}
	endAt, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return DateRange{}, validationError("end_date", "end_date must be YYYY-MM-DD")
	}
	if endAt.Before(startAt) {
		return DateRange{}, validationError("end_date", "end_date must not be before start_date")
	}
	return DateRange{Start: startAt, End: endAt}, nil
}

func (r DateRange) StartString() string { return r.Start.Format(DateLayout) }

func (r DateRange) EndString() string { return r.End.Format(DateLayout) }

// Contains is inclusive on both ends, compared by calendar day.
func (r DateRange) Contains(at time.Time) bool {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(r.Start) && !day.After(r.End)
}

type CreateInvoiceInput struct {
	ContactID string
	Amount    float64
	DueDate   string
}

type InvoiceResult struct {
	InvoiceID string `json:"invoice_id"`
}

type CreateContactInput struct {
	Name  string
	Email string
	Type  ContactType
}
