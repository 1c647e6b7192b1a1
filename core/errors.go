package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AuthRequiredMarker   = "AUTH_REQUIRED:"
	TenantRequiredMarker = "TENANT_REQUIRED:"
)

const (
	LedgerErrorBadInput        = "LEDGER_BAD_INPUT"
	LedgerErrorAuthRequired    = "LEDGER_AUTH_REQUIRED"
	LedgerErrorTenantRequired  = "LEDGER_TENANT_REQUIRED"
	LedgerErrorNotFound        = "LEDGER_NOT_FOUND"
	LedgerErrorProviderFailure = "LEDGER_PROVIDER_FAILURE"
	LedgerErrorRefreshLocked   = "LEDGER_REFRESH_LOCKED"
	LedgerErrorNoTenants       = "LEDGER_NO_TENANTS"
	LedgerErrorRateLimited     = "LEDGER_RATE_LIMITED"
	LedgerErrorInternal        = "LEDGER_INTERNAL_ERROR"
)

const (
	RemediationAuth   = "auth_required"
	RemediationTenant = "tenant_required"
)

// NeedsAuth signals that the caller must run the OAuth flow again. The
// message keeps the AUTH_REQUIRED: marker for string-based callers.
func NeedsAuth(platform Platform, cause string) *goerrors.Error {
	cause = strings.TrimSpace(cause)
	if cause == "" {
		cause = fmt.Sprintf("No valid %s token found. Please authenticate.", platform.DisplayName())
	}
	err := goerrors.New(AuthRequiredMarker+" "+cause, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(LedgerErrorAuthRequired)
	err.WithMetadata(map[string]any{
		"remediation": RemediationAuth,
		"platform":    string(platform),
	})
	return err
}

// NeedsTenant signals a valid token without a selected organization.
func NeedsTenant(platform Platform, cause string) *goerrors.Error {
	cause = strings.TrimSpace(cause)
	if cause == "" {
		cause = fmt.Sprintf("%s organization is not selected. Call get_connected_tenants and set_selected_tenant.", platform.DisplayName())
	}
	err := goerrors.New(TenantRequiredMarker+" "+cause, goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(LedgerErrorTenantRequired)
	err.WithMetadata(map[string]any{
		"remediation": RemediationTenant,
		"platform":    string(platform),
	})
	return err
}

func IsNeedsAuth(err error) bool {
	return hasRemediation(err, LedgerErrorAuthRequired, AuthRequiredMarker)
}

func IsNeedsTenant(err error) bool {
	return hasRemediation(err, LedgerErrorTenantRequired, TenantRequiredMarker)
}

// Remediation returns the remediation kind carried by err, or "".
func Remediation(err error) string {
	switch {
	case IsNeedsAuth(err):
		return RemediationAuth
	case IsNeedsTenant(err):
		return RemediationTenant
	}
	return ""
}

func hasRemediation(err error, textCode string, marker string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == textCode {
		return true
	}
	return strings.Contains(err.Error(), marker)
}

// ProviderError wraps a failed provider call with the platform's message.
func ProviderError(platform Platform, operation string, status int, detail string, source error) *goerrors.Error {
	message := fmt.Sprintf("%s %s failed", platform.DisplayName(), strings.TrimSpace(operation))
	if status > 0 {
		message = fmt.Sprintf("%s (status %d)", message, status)
	}
	if detail = strings.TrimSpace(detail); detail != "" {
		message = message + ": " + detail
	}
	metadata := map[string]any{
		"platform":  string(platform),
		"operation": operation,
	}
	if status > 0 {
		metadata["status_code"] = status
	}
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryExternal, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryExternal)
	}
	err = err.
		WithCode(http.StatusBadGateway).
		WithTextCode(LedgerErrorProviderFailure)
	err.WithMetadata(metadata)
	return err
}

func NotFoundError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(LedgerErrorNotFound)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func validationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(LedgerErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// ValidationError is exported for packages that validate RPC parameters.
func ValidationError(field string, message string) *goerrors.Error {
	return validationError(field, message)
}

// MapError normalizes any error into a go-errors envelope with a stable
// text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureLedgerErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(err.Error(), AuthRequiredMarker):
		return newLedgerError(err.Error(), goerrors.CategoryAuth, LedgerErrorAuthRequired)
	case strings.Contains(err.Error(), TenantRequiredMarker):
		return newLedgerError(err.Error(), goerrors.CategoryAuthz, LedgerErrorTenantRequired)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "refresh lock"):
		return newLedgerError(err.Error(), goerrors.CategoryConflict, LedgerErrorRefreshLocked)
	case strings.Contains(msg, "not found"):
		return newLedgerError(err.Error(), goerrors.CategoryNotFound, LedgerErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unsupported"):
		return newLedgerError(err.Error(), goerrors.CategoryBadInput, LedgerErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureLedgerErrorEnvelope(mapped)
}

func newLedgerError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureLedgerErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureLedgerErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = LedgerHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultLedgerTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

// DefaultTextCode maps a category to the text code used when none is set.
func DefaultTextCode(category goerrors.Category) string {
	return defaultLedgerTextCode(category)
}

func defaultLedgerTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return LedgerErrorBadInput
	case goerrors.CategoryNotFound:
		return LedgerErrorNotFound
	case goerrors.CategoryAuth:
		return LedgerErrorAuthRequired
	case goerrors.CategoryAuthz:
		return LedgerErrorTenantRequired
	case goerrors.CategoryConflict:
		return LedgerErrorRefreshLocked
	case goerrors.CategoryRateLimit:
		return LedgerErrorRateLimited
	case goerrors.CategoryExternal:
		return LedgerErrorProviderFailure
	default:
		return LedgerErrorInternal
	}
}

func LedgerHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
