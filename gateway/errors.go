package gateway

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ledgerbridge/core"
)

func gatewayError(message string, category goerrors.Category, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(core.LedgerHTTPStatus(category)).
		WithTextCode(core.DefaultTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// rpcError maps a handler failure onto the RPC error contract. Recoverable
// remediation errors keep their marker text and carry the kind in data.
// With verbatim unset, untyped failures are reported as internal with the
// original message in data.
func rpcError(err error, verbatim bool) *RPCError {
	if err == nil {
		return nil
	}
	message := errorMessage(err)
	if kind := core.Remediation(err); kind != "" {
		return &RPCError{
			Code:    CodeServerError,
			Message: message,
			Data:    RemediationData{Kind: kind, Platform: errorPlatform(err)},
		}
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) &&
		(rich.Category == goerrors.CategoryValidation || rich.Category == goerrors.CategoryBadInput) {
		return &RPCError{Code: CodeInvalidParams, Message: message}
	}
	if verbatim {
		return &RPCError{Code: CodeServerError, Message: message}
	}
	return &RPCError{Code: CodeServerError, Message: MessageInternal, Data: message}
}

func errorMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		return rich.Message
	}
	return err.Error()
}

func errorPlatform(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata == nil {
		return ""
	}
	if platform, ok := rich.Metadata["platform"]; ok && platform != nil {
		return fmt.Sprint(platform)
	}
	return ""
}

func httpStatus(rpcErr *RPCError) int {
	if rpcErr == nil {
		return http.StatusOK
	}
	switch rpcErr.Code {
	case CodeInvalidParams, CodeParseError:
		return http.StatusBadRequest
	}
	return http.StatusOK
}
