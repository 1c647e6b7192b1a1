// Package sqlstore persists token records in the ledger_tokens table
// through go-repository-bun, with an optional go-repository-cache read
// through layer.
package sqlstore
