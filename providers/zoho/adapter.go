package zoho

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/providers"
	"github.com/goliatone/go-ledgerbridge/transport"
	"golang.org/x/sync/errgroup"
)

const (
	contactsPageSize = 200
	defaultLineItem  = "General Service/Item"
)

type AdapterConfig struct {
	Credentials core.ClientHandleResolver
	Transport   core.TransportAdapter
	Observer    *core.Observer
	Timeout     time.Duration
	MaxPages    int
	Now         func() time.Time
}

// Adapter maps the unified accounting operations onto Zoho Books v3.
type Adapter struct {
	credentials core.ClientHandleResolver
	api         providers.APIClient
	observer    *core.Observer
	maxPages    int
	now         func() time.Time
}

func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("zoho: credentials resolver is required")
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	if cfg.Observer == nil {
		cfg.Observer = core.NewObserver(nil, nil)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Adapter{
		credentials: cfg.Credentials,
		api: providers.APIClient{
			Platform:  core.PlatformZoho,
			Transport: cfg.Transport,
			Signer:    core.TokenSigner{Scheme: "Zoho-oauthtoken", TenantQuery: "organization_id"},
			Timeout:   cfg.Timeout,
		},
		observer: cfg.Observer,
		maxPages: cfg.MaxPages,
		now:      cfg.Now,
	}, nil
}

func (*Adapter) Platform() core.Platform { return core.PlatformZoho }

type pageContext struct {
	Page        int  `json:"page"`
	HasMorePage bool `json:"has_more_page"`
}

type contactPerson struct {
	ContactPersonID string `json:"contact_person_id,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Email           string `json:"email,omitempty"`
	IsPrimary       bool   `json:"is_primary_contact,omitempty"`
}

type contact struct {
	ContactID                   string          `json:"contact_id"`
	ContactCode                 string          `json:"contact_code"`
	ContactName                 string          `json:"contact_name"`
	ContactType                 string          `json:"contact_type"`
	Email                       string          `json:"email"`
	OutstandingReceivableAmount any             `json:"outstanding_receivable_amount"`
	OutstandingPayableAmount    any             `json:"outstanding_payable_amount"`
	Balance                     any             `json:"balance"`
	ContactPersons              []contactPerson `json:"contact_persons"`
}

type contactsResponse struct {
	Contacts    []contact   `json:"contacts"`
	PageContext pageContext `json:"page_context"`
}

func (a *Adapter) ListContacts(ctx context.Context, userID string, role core.ContactType) (contacts []core.UnifiedContact, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(core.PlatformZoho), "user_id": userID, "contact_type": string(role)}
	defer func() {
		fields["count"] = len(contacts)
		a.observer.Observe(ctx, startedAt, "list_contacts", err, fields)
	}()

	handle, err := a.credentials.ClientHandle(ctx, userID, core.PlatformZoho)
	if err != nil {
		return nil, err
	}

	var all []contact
	_, partial, err := providers.CollectPages(ctx, a.maxPages, func(ctx context.Context, page int) (bool, error) {
		var payload contactsResponse
		if err := a.api.Do(ctx, handle, providers.Call{
			Operation: "contact listing",
			Method:    http.MethodGet,
			URL:       booksURL(handle.APIDomain) + "/contacts",
			Query: map[string]string{
				"page":         strconv.Itoa(page),
				"per_page":     strconv.Itoa(contactsPageSize),
				"contact_type": zohoContactType(role),
			},
		}, &payload); err != nil {
			return false, err
		}
		all = append(all, payload.Contacts...)
		return payload.PageContext.HasMorePage, nil
	})
	if err != nil {
		return nil, err
	}
	if partial != nil {
		fields["partial"] = partial.Error()
	}

	contacts = make([]core.UnifiedContact, 0, len(all))
	for _, item := range all {
		kind := strings.ToLower(strings.TrimSpace(item.ContactType))
		if !core.MatchesRole(kind == "customer", kind == "vendor", role) {
			continue
		}
		contacts = append(contacts, projectContact(item, role))
	}
	return contacts, nil
}

func projectContact(item contact, role core.ContactType) core.UnifiedContact {
	balance := core.FirstAmount(item.OutstandingReceivableAmount, item.Balance)
	if role == core.ContactTypeVendor {
		balance = core.FirstAmount(item.OutstandingPayableAmount, item.Balance)
	}
	email := strings.TrimSpace(item.Email)
	if email == "" && len(item.ContactPersons) > 0 {
		email = item.ContactPersons[0].Email
	}
	name := firstNonEmpty(item.ContactName, "Unnamed")
	return core.UnifiedContact{
		ID:      firstNonEmpty(item.ContactID, item.ContactCode, item.ContactName, "unknown"),
		Name:    name,
		Email:   email,
		Type:    role,
		Balance: balance,
	}
}

func zohoContactType(role core.ContactType) string {
	if role == core.ContactTypeVendor {
		return "vendor"
	}
	return "customer"
}

type reportNode struct {
	Name                string       `json:"name"`
	Total               any          `json:"total"`
	AccountTransactions []reportNode `json:"account_transactions"`
}

type profitAndLossResponse struct {
	ProfitAndLoss []reportNode `json:"profit_and_loss"`
	CurrencyCode  string       `json:"currency_code"`
}

// FinancialSummary reads the P&L report. When the report call fails the
// totals are rebuilt from invoices and expenses, each side degrading to
// zero on its own.
func (a *Adapter) FinancialSummary(ctx context.Context, userID string, period core.DateRange) (summary core.FinancialSummary, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"platform":   string(core.PlatformZoho),
		"user_id":    userID,
		"start_date": period.StartString(),
		"end_date":   period.EndString(),
	}
	defer func() {
		a.observer.Observe(ctx, startedAt, "financial_summary", err, fields)
	}()

	handle, err := a.credentials.ClientHandle(ctx, userID, core.PlatformZoho)
	if err != nil {
		return core.FinancialSummary{}, err
	}

	totals, currency, reportErr := a.profitAndLoss(ctx, handle, period)
	if reportErr == nil {
		fields["source"] = "profit_and_loss"
		return core.NewFinancialSummary(period.StartString(), period.EndString(), totals.Revenue, totals.Expenses, currency), nil
	}
	if core.IsNeedsAuth(reportErr) {
		return core.FinancialSummary{}, reportErr
	}
	fields["source"] = "fallback"
	fields["report_error"] = reportErr.Error()

	revenue, expenses := a.fallbackTotals(ctx, handle, period)
	return core.NewFinancialSummary(
		period.StartString(),
		period.EndString(),
		revenue.Amount,
		expenses.Amount,
		revenue.Currency,
	), nil
}

func (a *Adapter) profitAndLoss(ctx context.Context, handle core.ClientHandle, period core.DateRange) (core.ReportTotals, string, error) {
	var payload profitAndLossResponse
	err := a.api.Do(ctx, handle, providers.Call{
		Operation: "profit and loss report",
		Method:    http.MethodGet,
		URL:       booksURL(handle.APIDomain) + "/reports/profitandloss",
		Query: map[string]string{
			"from_date": period.StartString(),
			"to_date":   period.EndString(),
		},
	}, &payload)
	if err != nil {
		return core.ReportTotals{}, "", err
	}
	if len(payload.ProfitAndLoss) == 0 {
		return core.ReportTotals{}, "", fmt.Errorf("zoho: profit and loss report has no sections")
	}
	var totals core.ReportTotals
	for _, section := range payload.ProfitAndLoss {
		// A section total already includes its account lines.
		if section.Total != nil {
			totals.Add(section.Name, core.ParseAmount(section.Total))
			continue
		}
		for _, line := range section.AccountTransactions {
			label := section.Name
			if core.ClassifyReportLabel(label) == core.ReportLineOther {
				label = line.Name
			}
			totals.Add(label, core.ParseAmount(line.Total))
		}
	}
	return totals, firstNonEmpty(payload.CurrencyCode, core.DefaultCurrency), nil
}

func (a *Adapter) fallbackTotals(ctx context.Context, handle core.ClientHandle, period core.DateRange) (core.Contribution, core.Contribution) {
	var revenue, expenses core.Contribution
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var outcomes []core.StepOutcome
		revenue, outcomes = core.RunSummarySteps(groupCtx, a.RevenueSteps(handle, period))
		a.logOutcomes(groupCtx, "revenue", outcomes)
		return nil
	})
	group.Go(func() error {
		var outcomes []core.StepOutcome
		expenses, outcomes = core.RunSummarySteps(groupCtx, a.ExpenseSteps(handle, period))
		a.logOutcomes(groupCtx, "expenses", outcomes)
		return nil
	})
	_ = group.Wait()
	if revenue.Currency == "" {
		revenue.Currency = core.DefaultCurrency
	}
	return revenue, expenses
}

// RevenueSteps sums invoices issued in the period.
func (a *Adapter) RevenueSteps(handle core.ClientHandle, period core.DateRange) []core.SummaryStep {
	return []core.SummaryStep{
		{Name: "invoices", Run: a.sumDocuments(handle, period, "/invoices", "invoices")},
	}
}

// ExpenseSteps tries expenses, then vendor payments; an exhausted chain
// counts as zero.
func (a *Adapter) ExpenseSteps(handle core.ClientHandle, period core.DateRange) []core.SummaryStep {
	return []core.SummaryStep{
		{Name: "expenses", Run: a.sumDocuments(handle, period, "/expenses", "expenses")},
		{Name: "vendorpayments", Run: a.sumDocuments(handle, period, "/vendorpayments", "vendorpayments")},
	}
}

func (a *Adapter) sumDocuments(handle core.ClientHandle, period core.DateRange, path string, key string) func(context.Context) (core.Contribution, error) {
	return func(ctx context.Context) (core.Contribution, error) {
		var contribution core.Contribution
		_, partial, err := providers.CollectPages(ctx, a.maxPages, func(ctx context.Context, page int) (bool, error) {
			var payload map[string]any
			if err := a.api.Do(ctx, handle, providers.Call{
				Operation: strings.TrimPrefix(path, "/") + " listing",
				Method:    http.MethodGet,
				URL:       booksURL(handle.APIDomain) + path,
				Query: map[string]string{
					"date_start": period.StartString(),
					"date_end":   period.EndString(),
					"page":       strconv.Itoa(page),
					"per_page":   strconv.Itoa(contactsPageSize),
				},
			}, &payload); err != nil {
				return false, err
			}
			items, _ := payload[key].([]any)
			for _, raw := range items {
				document, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				contribution.Amount += core.FirstAmount(document["total"], document["amount"])
				if contribution.Currency == "" {
					if code, ok := document["currency_code"].(string); ok {
						contribution.Currency = strings.TrimSpace(code)
					}
				}
			}
			pageCtx, _ := payload["page_context"].(map[string]any)
			more, _ := pageCtx["has_more_page"].(bool)
			return more, nil
		})
		if err != nil {
			return core.Contribution{}, err
		}
		if partial != nil {
			a.observer.Log(ctx, "warn", "zoho pagination stopped early", map[string]any{
				"platform": string(core.PlatformZoho),
				"path":     path,
				"error":    partial.Error(),
			})
		}
		return contribution, nil
	}
}

func (a *Adapter) logOutcomes(ctx context.Context, side string, outcomes []core.StepOutcome) {
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			continue
		}
		a.observer.Log(ctx, "warn", "summary step failed", map[string]any{
			"platform": string(core.PlatformZoho),
			"side":     side,
			"step":     outcome.Name,
			"error":    outcome.Err.Error(),
		})
	}
}

type invoiceLineItem struct {
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Description string  `json:"description"`
}

type invoicePayload struct {
	CustomerID string            `json:"customer_id"`
	Date       string            `json:"date"`
	DueDate    string            `json:"due_date"`
	LineItems  []invoiceLineItem `json:"line_items"`
}

type invoiceResponse struct {
	Invoice struct {
		InvoiceID string `json:"invoice_id"`
	} `json:"invoice"`
}

func (a *Adapter) CreateInvoice(ctx context.Context, userID string, in core.CreateInvoiceInput) (result core.InvoiceResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(core.PlatformZoho), "user_id": userID, "contact_id": in.ContactID}
	defer func() {
		fields["invoice_id"] = result.InvoiceID
		a.observer.Observe(ctx, startedAt, "create_invoice", err, fields)
	}()

	handle, err := a.credentials.ClientHandle(ctx, userID, core.PlatformZoho)
	if err != nil {
		return core.InvoiceResult{}, err
	}
	var payload invoiceResponse
	err = a.api.Do(ctx, handle, providers.Call{
		Operation: "create invoice",
		Method:    http.MethodPost,
		URL:       booksURL(handle.APIDomain) + "/invoices",
		Body: invoicePayload{
			CustomerID: in.ContactID,
			Date:       a.now().Format(core.DateLayout),
			DueDate:    in.DueDate,
			LineItems: []invoiceLineItem{{
				Quantity:    1,
				Rate:        in.Amount,
				Description: defaultLineItem,
			}},
		},
	}, &payload)
	if err != nil {
		return core.InvoiceResult{}, err
	}
	if payload.Invoice.InvoiceID == "" {
		return core.InvoiceResult{}, core.ProviderError(core.PlatformZoho, "create invoice", 0, "response missing invoice id", nil)
	}
	return core.InvoiceResult{InvoiceID: payload.Invoice.InvoiceID}, nil
}

type contactPayload struct {
	ContactName    string          `json:"contact_name"`
	ContactType    string          `json:"contact_type"`
	ContactPersons []contactPerson `json:"contact_persons"`
}

type contactResponse struct {
	Contact contact `json:"contact"`
}

func (a *Adapter) CreateContact(ctx context.Context, userID string, in core.CreateContactInput) (created core.UnifiedContact, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(core.PlatformZoho), "user_id": userID, "contact_type": string(in.Type)}
	defer func() {
		fields["contact_id"] = created.ID
		a.observer.Observe(ctx, startedAt, "create_contact", err, fields)
	}()

	handle, err := a.credentials.ClientHandle(ctx, userID, core.PlatformZoho)
	if err != nil {
		return core.UnifiedContact{}, err
	}
	body := contactPayload{
		ContactName:    in.Name,
		ContactType:    zohoContactType(in.Type),
		ContactPersons: []contactPerson{},
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		first, last := splitName(in.Name)
		body.ContactPersons = append(body.ContactPersons, contactPerson{
			FirstName: first,
			LastName:  last,
			Email:     email,
			IsPrimary: true,
		})
	}

	var payload contactResponse
	err = a.api.Do(ctx, handle, providers.Call{
		Operation: "create contact",
		Method:    http.MethodPost,
		URL:       booksURL(handle.APIDomain) + "/contacts",
		Body:      body,
	}, &payload)
	if err != nil {
		return core.UnifiedContact{}, err
	}
	result := payload.Contact
	email := ""
	if len(result.ContactPersons) > 0 {
		email = result.ContactPersons[0].Email
	}
	return core.UnifiedContact{
		ID:      result.ContactID,
		Name:    result.ContactName,
		Email:   email,
		Type:    in.Type,
		Balance: 0,
	}, nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

var _ core.AccountingAdapter = (*Adapter)(nil)
