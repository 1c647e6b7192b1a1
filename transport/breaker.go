package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/sony/gobreaker"
)

const (
	defaultBreakerTimeout  = 30 * time.Second
	defaultBreakerFailures = 3
)

type BreakerConfig struct {
	Name                string
	Timeout             time.Duration
	ConsecutiveFailures uint32
	OnStateChange       func(name string, from gobreaker.State, to gobreaker.State)
}

// BreakerAdapter stops calling a provider after repeated transport
// failures or 5xx responses. Client errors (4xx) do not count.
type BreakerAdapter struct {
	next    core.TransportAdapter
	breaker *gobreaker.CircuitBreaker
	name    string
}

type serverFailure struct {
	response core.TransportResponse
}

func (f serverFailure) Error() string {
	return fmt.Sprintf("transport: upstream returned %d", f.response.StatusCode)
}

func NewBreakerAdapter(next core.TransportAdapter, cfg BreakerConfig) *BreakerAdapter {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "provider-circuit-breaker"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	settings := gobreaker.Settings{
		Name:          name,
		Timeout:       timeout,
		ReadyToTrip:   func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures },
		OnStateChange: cfg.OnStateChange,
	}
	return &BreakerAdapter{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    name,
	}
}

func (a *BreakerAdapter) Kind() string {
	if a == nil || a.next == nil {
		return KindREST
	}
	return a.next.Kind()
}

func (a *BreakerAdapter) State() gobreaker.State {
	return a.breaker.State()
}

func (a *BreakerAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.next == nil {
		return core.TransportResponse{}, transportError(
			"transport: breaker adapter requires a next adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": "breaker"},
		)
	}
	result, err := a.breaker.Execute(func() (interface{}, error) {
		response, err := a.next.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if response.StatusCode >= http.StatusInternalServerError {
			return nil, serverFailure{response: response}
		}
		return response, nil
	})

	var failure serverFailure
	switch {
	case err == nil:
		return result.(core.TransportResponse), nil
	case errors.As(err, &failure):
		return failure.response, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: provider circuit is open",
			http.StatusServiceUnavailable,
			map[string]any{"adapter": "breaker", "breaker": a.name},
		)
	default:
		return core.TransportResponse{}, err
	}
}

var _ core.TransportAdapter = (*BreakerAdapter)(nil)
