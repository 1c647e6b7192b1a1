package query

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-ledgerbridge/core"
)

// ReadService is the read side of the ledger bridge.
type ReadService interface {
	AuthorizationURL(ctx context.Context, userID string, platform core.Platform) (string, error)
	ConnectedTenants(ctx context.Context, userID string, platform core.Platform) ([]core.Tenant, error)
	ListContacts(ctx context.Context, userID string, platform core.Platform, role core.ContactType) ([]core.UnifiedContact, error)
	FinancialSummary(ctx context.Context, userID string, platform core.Platform, window core.DateRange) (core.FinancialSummary, error)
}

type AuthorizationURLQuery struct {
	reader ReadService
}

func NewAuthorizationURLQuery(reader ReadService) *AuthorizationURLQuery {
	return &AuthorizationURLQuery{reader: reader}
}

func (q *AuthorizationURLQuery) Query(ctx context.Context, msg AuthorizationURLMessage) (string, error) {
	if q == nil || q.reader == nil {
		return "", queryDependencyError("query: authorization reader is required")
	}
	return q.reader.AuthorizationURL(ctx, msg.UserID, msg.Platform)
}

type ConnectedTenantsQuery struct {
	reader ReadService
}

func NewConnectedTenantsQuery(reader ReadService) *ConnectedTenantsQuery {
	return &ConnectedTenantsQuery{reader: reader}
}

func (q *ConnectedTenantsQuery) Query(ctx context.Context, msg ConnectedTenantsMessage) ([]core.Tenant, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: tenant reader is required")
	}
	return q.reader.ConnectedTenants(ctx, msg.UserID, msg.Platform)
}

type ListContactsQuery struct {
	reader ReadService
}

func NewListContactsQuery(reader ReadService) *ListContactsQuery {
	return &ListContactsQuery{reader: reader}
}

func (q *ListContactsQuery) Query(ctx context.Context, msg ListContactsMessage) ([]core.UnifiedContact, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: contact reader is required")
	}
	return q.reader.ListContacts(ctx, msg.UserID, msg.Platform, msg.ResolvedRole())
}

type FinancialSummaryQuery struct {
	reader ReadService
}

func NewFinancialSummaryQuery(reader ReadService) *FinancialSummaryQuery {
	return &FinancialSummaryQuery{reader: reader}
}

func (q *FinancialSummaryQuery) Query(ctx context.Context, msg FinancialSummaryMessage) (core.FinancialSummary, error) {
	if q == nil || q.reader == nil {
		return core.FinancialSummary{}, queryDependencyError("query: summary reader is required")
	}
	window, err := msg.Range()
	if err != nil {
		return core.FinancialSummary{}, err
	}
	return q.reader.FinancialSummary(ctx, msg.UserID, msg.Platform, window)
}

type Handlers struct {
	AuthorizationURL *AuthorizationURLQuery
	ConnectedTenants *ConnectedTenantsQuery
	ListContacts     *ListContactsQuery
	FinancialSummary *FinancialSummaryQuery
}

func NewHandlers(reader ReadService) Handlers {
	return Handlers{
		AuthorizationURL: NewAuthorizationURLQuery(reader),
		ConnectedTenants: NewConnectedTenantsQuery(reader),
		ListContacts:     NewListContactsQuery(reader),
		FinancialSummary: NewFinancialSummaryQuery(reader),
	}
}

// Ask validates msg before running the query.
func Ask[T interface{ Validate() error }, R any](ctx context.Context, q gocmd.Querier[T, R], msg T) (R, error) {
	if err := msg.Validate(); err != nil {
		var zero R
		return zero, err
	}
	return q.Query(ctx, msg)
}
