package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// TokenStore persists one TokenRecord per key. Put overwrites, so
// concurrent writers resolve as last writer wins.
type TokenStore interface {
	Get(ctx context.Context, key string) (TokenRecord, bool, error)
	Put(ctx context.Context, key string, record TokenRecord) error
	Delete(ctx context.Context, key string) error
}

// OAuthProtocol captures the per-platform exchange and refresh wire
// formats behind one contract.
type OAuthProtocol interface {
	Platform() Platform
	AuthorizationURL(state string) (string, error)
	Exchange(ctx context.Context, code string, hint string) (TokenGrant, error)
	Refresh(ctx context.Context, record TokenRecord) (TokenGrant, error)
	ListTenants(ctx context.Context, record TokenRecord) ([]Tenant, error)
	// DefaultLifetime is used when the exchange response omits expires_in.
	DefaultLifetime() time.Duration
	// DefaultAPIDomain is recorded when neither the response nor the
	// callback hint supplies one.
	DefaultAPIDomain() string
}

// TokenRevoker is implemented by protocols with a revocation endpoint.
type TokenRevoker interface {
	Revoke(ctx context.Context, record TokenRecord) error
}

// ClientHandleResolver hands adapters an authorized, tenant-scoped handle.
type ClientHandleResolver interface {
	ClientHandle(ctx context.Context, userID string, platform Platform) (ClientHandle, error)
}

// AccountingAdapter is the unified operation surface of one platform.
type AccountingAdapter interface {
	Platform() Platform
	ListContacts(ctx context.Context, userID string, role ContactType) ([]UnifiedContact, error)
	FinancialSummary(ctx context.Context, userID string, period DateRange) (FinancialSummary, error)
	CreateInvoice(ctx context.Context, userID string, in CreateInvoiceInput) (InvoiceResult, error)
	CreateContact(ctx context.Context, userID string, in CreateContactInput) (UnifiedContact, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// KeyLocker serializes refreshes of one token key across callers.
type KeyLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Idempotency          string
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
