package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
)

// FakeProtocol is a scripted core.OAuthProtocol for manager and gateway
// tests.
type FakeProtocol struct {
	mu sync.Mutex

	PlatformID    core.Platform
	Lifetime      time.Duration
	APIDomain     string
	ExchangeGrant core.TokenGrant
	ExchangeErr   error
	RefreshGrant  core.TokenGrant
	RefreshErr    error
	Tenants       []core.Tenant
	TenantsErr    error
	RevokeErr     error
	RefreshDelay  time.Duration
	exchangeCalls int
	refreshCalls  int
	revokeCalls   int
	lastExchange  []string
	refreshedWith []string
}

func NewFakeProtocol(platform core.Platform) *FakeProtocol {
	return &FakeProtocol{
		PlatformID: platform,
		Lifetime:   time.Hour,
		ExchangeGrant: core.TokenGrant{
			AccessToken:  "access-exchanged",
			RefreshToken: "refresh-exchanged",
			ExpiresIn:    3600,
		},
		RefreshGrant: core.TokenGrant{
			AccessToken: "access-refreshed",
			ExpiresIn:   3600,
		},
	}
}

func (p *FakeProtocol) Platform() core.Platform { return p.PlatformID }

func (p *FakeProtocol) AuthorizationURL(state string) (string, error) {
	return fmt.Sprintf("https://auth.example.test/%s/authorize?state=%s", strings.ToLower(string(p.PlatformID)), state), nil
}

func (p *FakeProtocol) Exchange(_ context.Context, code string, hint string) (core.TokenGrant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCalls++
	p.lastExchange = []string{code, hint}
	if p.ExchangeErr != nil {
		return core.TokenGrant{}, p.ExchangeErr
	}
	return p.ExchangeGrant, nil
}

func (p *FakeProtocol) Refresh(ctx context.Context, record core.TokenRecord) (core.TokenGrant, error) {
	if p.RefreshDelay > 0 {
		select {
		case <-ctx.Done():
			return core.TokenGrant{}, ctx.Err()
		case <-time.After(p.RefreshDelay):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	p.refreshedWith = append(p.refreshedWith, record.RefreshToken)
	if p.RefreshErr != nil {
		return core.TokenGrant{}, p.RefreshErr
	}
	return p.RefreshGrant, nil
}

func (p *FakeProtocol) ListTenants(_ context.Context, _ core.TokenRecord) ([]core.Tenant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TenantsErr != nil {
		return nil, p.TenantsErr
	}
	return append([]core.Tenant(nil), p.Tenants...), nil
}

func (p *FakeProtocol) Revoke(_ context.Context, _ core.TokenRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revokeCalls++
	return p.RevokeErr
}

func (p *FakeProtocol) DefaultLifetime() time.Duration { return p.Lifetime }

func (p *FakeProtocol) DefaultAPIDomain() string { return p.APIDomain }

func (p *FakeProtocol) ExchangeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls
}

func (p *FakeProtocol) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

func (p *FakeProtocol) RevokeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revokeCalls
}

// LastExchange returns the code and hint of the most recent exchange.
func (p *FakeProtocol) LastExchange() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.lastExchange) != 2 {
		return "", ""
	}
	return p.lastExchange[0], p.lastExchange[1]
}

var (
	_ core.OAuthProtocol = (*FakeProtocol)(nil)
	_ core.TokenRevoker  = (*FakeProtocol)(nil)
)

// SeedRecord writes a record directly, bypassing the manager, for tests
// that start from an existing connection.
func SeedRecord(ctx context.Context, store core.TokenStore, userID string, platform core.Platform, record core.TokenRecord) error {
	return store.Put(ctx, core.TokenKey(userID, platform), record)
}

// RefreshedWith lists the refresh tokens presented to Refresh, in order.
func (p *FakeProtocol) RefreshedWith() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.refreshedWith...)
}
