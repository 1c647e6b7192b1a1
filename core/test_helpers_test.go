package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type stubProtocol struct {
	mu sync.Mutex

	platform      Platform
	lifetime      time.Duration
	apiDomain     string
	exchangeGrant TokenGrant
	exchangeErr   error
	refreshGrant  TokenGrant
	refreshErr    error
	refreshDelay  time.Duration
	tenants       []Tenant
	tenantsErr    error
	revokeErr     error

	exchangeCalls int
	refreshCalls  int
	revokeCalls   int
	lastHint      string
}

func newStubProtocol(platform Platform) *stubProtocol {
	return &stubProtocol{
		platform: platform,
		lifetime: time.Hour,
		exchangeGrant: TokenGrant{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
		},
		refreshGrant: TokenGrant{
			AccessToken: "access-2",
			ExpiresIn:   3600,
		},
	}
}

func (p *stubProtocol) Platform() Platform { return p.platform }

func (p *stubProtocol) AuthorizationURL(state string) (string, error) {
	return fmt.Sprintf("https://auth.example.test/authorize?state=%s", state), nil
}

func (p *stubProtocol) Exchange(_ context.Context, _ string, hint string) (TokenGrant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCalls++
	p.lastHint = hint
	return p.exchangeGrant, p.exchangeErr
}

func (p *stubProtocol) Refresh(ctx context.Context, _ TokenRecord) (TokenGrant, error) {
	if p.refreshDelay > 0 {
		select {
		case <-ctx.Done():
			return TokenGrant{}, ctx.Err()
		case <-time.After(p.refreshDelay):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	if p.refreshErr != nil {
		return TokenGrant{}, p.refreshErr
	}
	return p.refreshGrant, nil
}

func (p *stubProtocol) ListTenants(context.Context, TokenRecord) ([]Tenant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Tenant(nil), p.tenants...), p.tenantsErr
}

func (p *stubProtocol) Revoke(context.Context, TokenRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revokeCalls++
	return p.revokeErr
}

func (p *stubProtocol) DefaultLifetime() time.Duration { return p.lifetime }

func (p *stubProtocol) DefaultAPIDomain() string { return p.apiDomain }

func (p *stubProtocol) refreshes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct {
	*MemoryTokenStore
	putErr error
}

func (s *failingStore) Put(ctx context.Context, key string, record TokenRecord) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryTokenStore.Put(ctx, key, record)
}
