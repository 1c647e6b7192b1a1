package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ExchangeCodeMessage]  = (*ExchangeCodeCommand)(nil)
	_ gocmd.Commander[SelectTenantMessage]  = (*SelectTenantCommand)(nil)
	_ gocmd.Commander[RevokeMessage]        = (*RevokeCommand)(nil)
	_ gocmd.Commander[CreateInvoiceMessage] = (*CreateInvoiceCommand)(nil)
	_ gocmd.Commander[CreateContactMessage] = (*CreateContactCommand)(nil)
	_ gocmd.Commander[SendEmailMessage]     = (*SendEmailCommand)(nil)
)
