package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-ledgerbridge/core"
)

var (
	_ gocmd.Querier[AuthorizationURLMessage, string]                = (*AuthorizationURLQuery)(nil)
	_ gocmd.Querier[ConnectedTenantsMessage, []core.Tenant]         = (*ConnectedTenantsQuery)(nil)
	_ gocmd.Querier[ListContactsMessage, []core.UnifiedContact]     = (*ListContactsQuery)(nil)
	_ gocmd.Querier[FinancialSummaryMessage, core.FinancialSummary] = (*FinancialSummaryQuery)(nil)
)
