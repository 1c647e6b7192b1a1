package core

import (
	"strings"
	"time"
)

// TokenState captures the lifecycle flags derived from a stored record.
type TokenState struct {
	HasAccessToken  bool
	HasRefreshToken bool
	IsExpired       bool
	// IsFresh means the token outlives now plus the safety margin and may
	// be used without a refresh call.
	IsFresh bool
}

// ResolveTokenState evaluates a record against now and the refresh margin.
func ResolveTokenState(now time.Time, record TokenRecord, margin time.Duration) TokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if margin < 0 {
		margin = 0
	}
	state := TokenState{
		HasAccessToken:  strings.TrimSpace(record.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(record.RefreshToken) != "",
	}
	if record.ExpiresAt.IsZero() {
		state.IsExpired = true
		return state
	}
	expiresAt := record.ExpiresAt.UTC()
	state.IsExpired = !expiresAt.After(now)
	state.IsFresh = state.HasAccessToken && expiresAt.After(now.Add(margin))
	return state
}

// ShouldRefresh reports whether a refresh call is both needed and possible.
func ShouldRefresh(state TokenState) bool {
	return !state.IsFresh && state.HasRefreshToken
}

// Irrecoverable reports a record that can only be fixed by re-authenticating.
func Irrecoverable(state TokenState) bool {
	return !state.IsFresh && !state.HasRefreshToken
}
