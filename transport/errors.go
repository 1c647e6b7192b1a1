package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ledgerbridge/core"
)

func transportError(message string, category goerrors.Category, code int, metadata map[string]any) error {
	return decorate(goerrors.New(message, category), category, code, metadata)
}

// transportWrapError keeps source in the chain so callers can still match
// context cancellation and deadline errors.
func transportWrapError(source error, category goerrors.Category, message string, code int, metadata map[string]any) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	return decorate(goerrors.Wrap(source, category, message), category, code, metadata)
}

func decorate(err *goerrors.Error, category goerrors.Category, code int, metadata map[string]any) *goerrors.Error {
	err = err.WithCode(code).WithTextCode(core.DefaultTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
