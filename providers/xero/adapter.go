package xero

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
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PageSize is Xero's fixed page length; a shorter page is the last one.
const PageSize = 100

const defaultLineItem = "General Service/Item"

type AdapterConfig struct {
	Credentials core.ClientHandleResolver
	Transport   core.TransportAdapter
	Observer    *core.Observer
	BaseURL     string
	Timeout     time.Duration
	MaxPages    int
	Now         func() time.Time
	// NewIdempotencyKey feeds Xero's Idempotency-Key header on writes.
	NewIdempotencyKey func() string
}

// Adapter maps the unified accounting operations onto the Xero
// Accounting API.
type Adapter struct {
	credentials    core.ClientHandleResolver
	api            providers.APIClient
	observer       *core.Observer
	baseURL        string
	maxPages       int
	now            func() time.Time
	idempotencyKey func() string
}

func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("xero: credentials resolver is required")
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
	if cfg.NewIdempotencyKey == nil {
		cfg.NewIdempotencyKey = uuid.NewString
	}
	return &Adapter{
		credentials: cfg.Credentials,
		api: providers.APIClient{
			Platform:  core.PlatformXero,
			Transport: cfg.Transport,
			Signer:    core.BearerTokenSigner(TenantHeader),
			Timeout:   cfg.Timeout,
		},
		observer:       cfg.Observer,
		baseURL:        strings.TrimRight(valueOr(cfg.BaseURL, APIBaseURL), "/"),
		maxPages:       cfg.MaxPages,
		now:            cfg.Now,
		idempotencyKey: cfg.NewIdempotencyKey,
	}, nil
}

func (*Adapter) Platform() core.Platform { return core.PlatformXero }

type outstanding struct {
	Outstanding any `json:"Outstanding"`
}

type contact struct {
	ContactID     string `json:"ContactID,omitempty"`
	ContactNumber string `json:"ContactNumber,omitempty"`
	Name          string `json:"Name,omitempty"`
	EmailAddress  string `json:"EmailAddress,omitempty"`
	IsCustomer    bool   `json:"IsCustomer,omitempty"`
	IsSupplier    bool   `json:"IsSupplier,omitempty"`
	Balances      *struct {
		AccountsReceivable outstanding `json:"AccountsReceivable"`
		AccountsPayable    outstanding `json:"AccountsPayable"`
	} `json:"Balances,omitempty"`
}

type contactsEnvelope struct {
	Contacts []contact `json:"Contacts"`
}

func (a *Adapter) ListContacts(ctx context.Context, userID string, role core.ContactType) (contacts []core.UnifiedContact, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(core.PlatformXero), "user_id": userID, "contact_type": string(role)}
	defer func() {
		fields["count"] = len(contacts)
		a.observer.Observe(ctx, startedAt, "list_contacts", err, fields)
	}()

	handle, err := a.credentials.ClientHandle(ctx, userID, core.PlatformXero)
	if err != nil {
		return nil, err
	}

	var all []contact
	_, partial, err := providers.CollectPages(ctx, a.maxPages, func(ctx context.Context, page int) (bool, error) {
		var payload contactsEnvelope
		if err := a.api.Do(ctx, handle, providers.Call{
			Operation: "contact listing",
			Method:    http.MethodGet,
			URL:       a.baseURL + "/Contacts",
			Query:     map[string]string{"page": strconv.Itoa(page)},
		}, &payload); err != nil {
			return false, err
		}
		all = append(all, payload.Contacts...)
		return len(payload.Contacts) >= PageSize, nil
	})
	if err != nil {
		return nil, err
	}
	if partial != nil {
		fields["partial"] = partial.Error()
	}

	contacts = make([]core.UnifiedContact, 0, len(all))
	for _, item := range all {
		if !core.MatchesRole(item.IsCustomer, item.IsSupplier, role) {
			continue
		}
		contacts = append(contacts, projectContact(item, role))
	}
	return contacts, nil
}

func projectContact(item contact, role core.ContactType) core.UnifiedContact {
	var balance float64
	if item.Balances != nil {
		if role == core.ContactTypeVendor {
			balance = core.ParseAmount(item.Balances.AccountsPayable.Outstanding)
		} else {
			balance = core.ParseAmount(item.Balances.AccountsReceivable.Outstanding)
		}
	}
	return core.UnifiedContact{
		ID:      valueOr(item.ContactID, valueOr(item.ContactNumber, item.Name)),
		Name:    valueOr(item.Name, "Unnamed"),
		Email:   strings.TrimSpace(item.EmailAddress),
		Type:    role,
		Balance: balance,
	}
}

type reportCell struct {
	Value any `json:"Value"`
}

type reportRow struct {
	RowType string       `json:"RowType"`
	Title   string       `json:"Title"`
	Label   string       `json:"Label"`
	Cells   []reportCell `json:"Cells"`
	Rows    []reportRow  `json:"Rows"`
}

type reportsEnvelope struct {
	Reports []struct {
		ReportName string      `json:"ReportName"`
		Currency   string      `json:"Currency"`
		Rows       []reportRow `json:"Rows"`
	} `json:"Reports"`
}

// FinancialSummary reads the P&L report. When the report call fails the
// totals are rebuilt from authorised invoices and spend bank transactions,
// each side degrading to zero on its own.
func (a *Adapter) FinancialSummary(ctx context.Context, userID string, period core.DateRange) (summary core.FinancialSummary, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"platform":   string(core.PlatformXero),
		"user_id":    userID,
		"start_date": period.StartString(),
		"end_date":   period.EndString(),
	}
	defer func() {
		a.observer.Observe(ctx, startedAt, "financial_summary", err, fields)
	}()

	handle, err := a.credentials.ClientHandle(ctx, userID, core.PlatformXero)
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

	return core.NewFinancialSummary(
		period.StartString(),
		period.EndString(),
		revenue.Amount,
		expenses.Amount,
		core.DefaultCurrency,
	), nil
}

func (a *Adapter) profitAndLoss(ctx context.Context, handle core.ClientHandle, period core.DateRange) (core.ReportTotals, string, error) {
	var payload reportsEnvelope
	err := a.api.Do(ctx, handle, providers.Call{
		Operation: "profit and loss report",
		Method:    http.MethodGet,
		URL:       a.baseURL + "/Reports/ProfitAndLoss",
		Query: map[string]string{
			"fromDate": period.StartString(),
			"toDate":   period.EndString(),
		},
	}, &payload)
	if err != nil {
		return core.ReportTotals{}, "", err
	}
	if len(payload.Reports) == 0 {
		return core.ReportTotals{}, "", fmt.Errorf("xero: profit and loss response has no report")
	}
	report := payload.Reports[0]
	var totals core.ReportTotals
	for _, row := range report.Rows {
		label, value, ok := rowTotal(row)
		if ok {
			totals.Add(label, value)
		}
	}
	return totals, valueOr(report.Currency, core.DefaultCurrency), nil
}

// rowTotal reads the label and amount of a top-level report row. Sections
// are summarised by their SummaryRow so nested lines are not counted twice.
func rowTotal(row reportRow) (string, float64, bool) {
	if len(row.Rows) > 0 {
		for _, child := range row.Rows {
			if strings.EqualFold(child.RowType, "SummaryRow") && len(child.Cells) > 1 {
				label := valueOr(cellString(child.Cells[0]), row.Title)
				return label, core.ParseAmount(child.Cells[1].Value), true
			}
		}
		return "", 0, false
	}
	if len(row.Cells) < 2 {
		return "", 0, false
	}
	label := valueOr(row.Label, valueOr(row.Title, cellString(row.Cells[0])))
	return label, core.ParseAmount(row.Cells[1].Value), true
}

func cellString(cell reportCell) string {
	if value, ok := cell.Value.(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// RevenueSteps sums authorised sales invoices dated in the period.
func (a *Adapter) RevenueSteps(handle core.ClientHandle, period core.DateRange) []core.SummaryStep {
	where := fmt.Sprintf(`Type=="ACCREC" AND Status=="AUTHORISED" AND %s`, dateFilter(period))
	return []core.SummaryStep{
		{Name: "invoices", Run: a.sumDocuments(handle, "/Invoices", "Invoices", where)},
	}
}

// ExpenseSteps sums spend bank transactions dated in the period.
func (a *Adapter) ExpenseSteps(handle core.ClientHandle, period core.DateRange) []core.SummaryStep {
	where := fmt.Sprintf(`Type=="SPEND" AND %s`, dateFilter(period))
	return []core.SummaryStep{
		{Name: "bank_transactions", Run: a.sumDocuments(handle, "/BankTransactions", "BankTransactions", where)},
	}
}

func dateFilter(period core.DateRange) string {
	return fmt.Sprintf("Date >= %s AND Date <= %s", xeroDateTime(period.Start), xeroDateTime(period.End))
}

func xeroDateTime(at time.Time) string {
	return fmt.Sprintf("DateTime(%d, %02d, %02d)", at.Year(), int(at.Month()), at.Day())
}

func (a *Adapter) sumDocuments(handle core.ClientHandle, path string, key string, where string) func(context.Context) (core.Contribution, error) {
	return func(ctx context.Context) (core.Contribution, error) {
		var contribution core.Contribution
		_, partial, err := providers.CollectPages(ctx, a.maxPages, func(ctx context.Context, page int) (bool, error) {
			var payload map[string]any
			if err := a.api.Do(ctx, handle, providers.Call{
				Operation: strings.ToLower(key) + " listing",
				Method:    http.MethodGet,
				URL:       a.baseURL + path,
				Query: map[string]string{
					"where": where,
					"page":  strconv.Itoa(page),
				},
			}, &payload); err != nil {
				return false, err
			}
			items, _ := payload[key].([]any)
			for _, raw := range items {
				if document, ok := raw.(map[string]any); ok {
					contribution.Amount += core.ParseAmount(document["Total"])
				}
			}
			return len(items) >= PageSize, nil
		})
		if err != nil {
			return core.Contribution{}, err
		}
		if partial != nil {
			a.observer.Log(ctx, "warn", "xero pagination stopped early", map[string]any{
				"platform": string(core.PlatformXero),
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
			"platform": string(core.PlatformXero),
			"side":     side,
			"step":     outcome.Name,
			"error":    outcome.Err.Error(),
		})
	}
}

type lineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
}

type invoice struct {
	InvoiceID string     `json:"InvoiceID,omitempty"`
	Type      string     `json:"Type,omitempty"`
	Contact   *contact   `json:"Contact,omitempty"`
	Date      string     `json:"Date,omitempty"`
	DueDate   string     `json:"DueDate,omitempty"`
	LineItems []lineItem `json:"LineItems,omitempty"`
}

type invoicesEnvelope struct {
	Invoices []invoice `json:"Invoices"`
}

func (a *Adapter) CreateInvoice(ctx context.Context, userID string, in core.CreateInvoiceInput) (result core.InvoiceResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(core.PlatformXero), "user_id": userID, "contact_id": in.ContactID}
	defer func() {
		fields["invoice_id"] = result.InvoiceID
		a.observer.Observe(ctx, startedAt, "create_invoice", err, fields)
	}()

	handle, err := a.credentials.ClientHandle(ctx, userID, core.PlatformXero)
	if err != nil {
		return core.InvoiceResult{}, err
	}
	var payload invoicesEnvelope
	err = a.api.Do(ctx, handle, providers.Call{
		Operation:   "create invoice",
		Method:      http.MethodPost,
		URL:         a.baseURL + "/Invoices",
		Idempotency: a.idempotencyKey(),
		Body: invoicesEnvelope{Invoices: []invoice{{
			Type:      "ACCREC",
			Contact:   &contact{ContactID: in.ContactID},
			Date:      a.now().Format(core.DateLayout),
			DueDate:   in.DueDate,
			LineItems: []lineItem{{Description: defaultLineItem, Quantity: 1, UnitAmount: in.Amount}},
		}}},
	}, &payload)
	if err != nil {
		return core.InvoiceResult{}, err
	}
	if len(payload.Invoices) == 0 || payload.Invoices[0].InvoiceID == "" {
		return core.InvoiceResult{}, core.ProviderError(core.PlatformXero, "create invoice", 0, "response missing invoice id", nil)
	}
	return core.InvoiceResult{InvoiceID: payload.Invoices[0].InvoiceID}, nil
}

func (a *Adapter) CreateContact(ctx context.Context, userID string, in core.CreateContactInput) (created core.UnifiedContact, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(core.PlatformXero), "user_id": userID, "contact_type": string(in.Type)}
	defer func() {
		fields["contact_id"] = created.ID
		a.observer.Observe(ctx, startedAt, "create_contact", err, fields)
	}()

	handle, err := a.credentials.ClientHandle(ctx, userID, core.PlatformXero)
	if err != nil {
		return core.UnifiedContact{}, err
	}
	body := contact{
		Name:         in.Name,
		EmailAddress: strings.TrimSpace(in.Email),
		IsCustomer:   in.Type == core.ContactTypeCustomer,
		IsSupplier:   in.Type == core.ContactTypeVendor,
	}
	var payload contactsEnvelope
	err = a.api.Do(ctx, handle, providers.Call{
		Operation:   "create contact",
		Method:      http.MethodPost,
		URL:         a.baseURL + "/Contacts",
		Idempotency: a.idempotencyKey(),
		Body:        contactsEnvelope{Contacts: []contact{body}},
	}, &payload)
	if err != nil {
		return core.UnifiedContact{}, err
	}
	if len(payload.Contacts) == 0 {
		return core.UnifiedContact{}, core.ProviderError(core.PlatformXero, "create contact", 0, "response missing contact", nil)
	}
	result := payload.Contacts[0]
	return core.UnifiedContact{
		ID:      result.ContactID,
		Name:    result.Name,
		Email:   result.EmailAddress,
		Type:    in.Type,
		Balance: 0,
	}, nil
}

var _ core.AccountingAdapter = (*Adapter)(nil)
