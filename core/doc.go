// Package core contains the credential and tenancy contracts shared by the
// accounting adapters, stores and the RPC gateway. Provider and store
// packages depend on core; core must not import them.
package core
