package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// DefaultRefreshLifetime applies when a refresh response omits expires_in.
const DefaultRefreshLifetime = time.Hour

// CredentialManager owns the token lifecycle. It is the only writer of
// TokenRecords; adapters read them through ClientHandle.
type CredentialManager struct {
	config         Config
	store          TokenStore
	protocols      map[Platform]OAuthProtocol
	locker         KeyLocker
	backoff        BackoffScheduler
	observer       *Observer
	loggerProvider LoggerProvider
	errorMapper    ErrorMapper
	now            func() time.Time
}

func NewCredentialManager(cfg Config, opts ...Option) (*CredentialManager, error) {
	builder := defaultManagerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("ledgerbridge", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("ledgerbridge.credentials"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.runtimeConfig, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.store == nil {
		builder.store = NewMemoryTokenStore()
	}
	if builder.locker == nil && finalConfig.RefreshLock.Enabled {
		builder.locker = NewMemoryKeyLocker()
	}

	protocols := make(map[Platform]OAuthProtocol, len(builder.protocols))
	for _, protocol := range builder.protocols {
		platform := protocol.Platform()
		if !platform.Valid() {
			return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: invalid protocol platform %q", platform))
		}
		protocols[platform] = protocol
	}

	return &CredentialManager{
		config:         finalConfig,
		store:          builder.store,
		protocols:      protocols,
		locker:         builder.locker,
		backoff:        builder.backoff,
		observer:       NewObserver(logger, builder.metricsRecorder),
		loggerProvider: provider,
		errorMapper:    builder.errorMapper,
		now:            builder.now,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (m *CredentialManager) Config() Config {
	if m == nil {
		return Config{}
	}
	return m.config
}

func (m *CredentialManager) Observer() *Observer {
	if m == nil {
		return nil
	}
	return m.observer
}

func (m *CredentialManager) LoggerProvider() LoggerProvider {
	if m == nil {
		return nil
	}
	return m.loggerProvider
}

func (m *CredentialManager) Protocol(platform Platform) (OAuthProtocol, error) {
	if m == nil {
		return nil, fmt.Errorf("core: credential manager is nil")
	}
	protocol, ok := m.protocols[platform]
	if !ok || protocol == nil {
		return nil, m.mapError(validationError("platform", fmt.Sprintf("platform %q is not configured", platform)))
	}
	return protocol, nil
}

// AuthorizationURL builds the provider redirect with state=userID. It does
// not touch the store.
func (m *CredentialManager) AuthorizationURL(ctx context.Context, platform Platform, userID string) (authURL string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(platform), "user_id": userID}
	defer func() {
		m.observer.Observe(ctx, startedAt, "authorization_url", err, fields)
	}()

	if strings.TrimSpace(userID) == "" {
		return "", m.mapError(validationError("user_id", "user_id is required"))
	}
	protocol, err := m.Protocol(platform)
	if err != nil {
		return "", err
	}
	authURL, err = protocol.AuthorizationURL(strings.TrimSpace(userID))
	if err != nil {
		return "", m.mapError(err)
	}
	return authURL, nil
}

// ExchangeCodeForToken trades an authorization code for a fresh record.
// Tenant selection always remains a separate step.
func (m *CredentialManager) ExchangeCodeForToken(
	ctx context.Context,
	platform Platform,
	code string,
	userID string,
	hint string,
) (result ExchangeResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(platform), "user_id": userID}
	defer func() {
		m.observer.Observe(ctx, startedAt, "exchange_code", err, fields)
	}()

	if strings.TrimSpace(code) == "" {
		return ExchangeResult{}, m.mapError(validationError("code", "authorization code is required"))
	}
	if strings.TrimSpace(userID) == "" {
		return ExchangeResult{}, m.mapError(validationError("user_id", "user_id is required"))
	}
	protocol, err := m.Protocol(platform)
	if err != nil {
		return ExchangeResult{}, err
	}
	grant, err := protocol.Exchange(ctx, strings.TrimSpace(code), strings.TrimSpace(hint))
	if err != nil {
		return ExchangeResult{}, m.mapError(err)
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		return ExchangeResult{}, m.mapError(ProviderError(platform, "token exchange", 0, "response missing access token", nil))
	}

	now := m.now()
	record := TokenRecord{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    now.Add(lifetime(grant.ExpiresIn, protocol.DefaultLifetime())),
		Scope:        grant.Scope,
		APIDomain:    firstNonEmpty(grant.APIDomain, protocol.DefaultAPIDomain()),
	}
	if err = m.store.Put(ctx, TokenKey(userID, platform), record); err != nil {
		return ExchangeResult{}, m.mapError(err)
	}
	return ExchangeResult{RequiresOrgSelection: true}, nil
}

// GetValidTokenRecord returns a record usable for at least the refresh
// margin, refreshing it when needed. Every failure reads as absent; the
// cause is logged and the stored record stays as it was.
func (m *CredentialManager) GetValidTokenRecord(ctx context.Context, userID string, platform Platform) (TokenRecord, bool) {
	if m == nil || m.store == nil {
		return TokenRecord{}, false
	}
	key := TokenKey(userID, platform)
	record, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.observer.Log(ctx, "warn", "token store read failed", map[string]any{
			"platform": string(platform),
			"user_id":  userID,
			"error":    err.Error(),
		})
		return TokenRecord{}, false
	}
	if !ok || !record.Valid() {
		return TokenRecord{}, false
	}

	state := ResolveTokenState(m.now(), record, m.config.RefreshMargin)
	if state.IsFresh {
		return record, true
	}
	if !ShouldRefresh(state) {
		return TokenRecord{}, false
	}
	if m.locker != nil {
		return m.refreshLocked(ctx, key, userID, platform)
	}
	return m.refresh(ctx, key, userID, platform, record)
}

func (m *CredentialManager) refreshLocked(ctx context.Context, key string, userID string, platform Platform) (TokenRecord, bool) {
	handle, err := acquireWithBackoff(ctx, m.locker, key, m.config.RefreshLock.TTL, m.config.RefreshLock.MaxAttempts, m.backoff)
	if err != nil {
		m.observer.Log(ctx, "warn", "refresh lock unavailable", map[string]any{
			"platform": string(platform),
			"user_id":  userID,
			"error":    err.Error(),
		})
		return m.freshOnly(ctx, key)
	}
	defer func() {
		_ = handle.Unlock(ctx)
	}()

	// Another holder may have refreshed while we waited.
	current, ok, err := m.store.Get(ctx, key)
	if err != nil || !ok || !current.Valid() {
		return TokenRecord{}, false
	}
	state := ResolveTokenState(m.now(), current, m.config.RefreshMargin)
	if state.IsFresh {
		return current, true
	}
	if !ShouldRefresh(state) {
		return TokenRecord{}, false
	}
	return m.refresh(ctx, key, userID, platform, current)
}

func (m *CredentialManager) freshOnly(ctx context.Context, key string) (TokenRecord, bool) {
	current, ok, err := m.store.Get(ctx, key)
	if err != nil || !ok {
		return TokenRecord{}, false
	}
	if ResolveTokenState(m.now(), current, m.config.RefreshMargin).IsFresh {
		return current, true
	}
	return TokenRecord{}, false
}

func (m *CredentialManager) refresh(
	ctx context.Context,
	key string,
	userID string,
	platform Platform,
	record TokenRecord,
) (next TokenRecord, ok bool) {
	startedAt := time.Now().UTC()
	var err error
	fields := map[string]any{"platform": string(platform), "user_id": userID}
	defer func() {
		m.observer.Observe(ctx, startedAt, "token_refresh", err, fields)
	}()

	protocol, err := m.Protocol(platform)
	if err != nil {
		return TokenRecord{}, false
	}
	grant, err := protocol.Refresh(ctx, record)
	if err != nil {
		return TokenRecord{}, false
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		err = fmt.Errorf("core: refresh response missing access token")
		return TokenRecord{}, false
	}

	now := m.now()
	next = TokenRecord{
		AccessToken:  grant.AccessToken,
		RefreshToken: firstNonEmpty(grant.RefreshToken, record.RefreshToken),
		ExpiresAt:    now.Add(lifetime(grant.ExpiresIn, DefaultRefreshLifetime)),
		Scope:        firstNonEmpty(grant.Scope, record.Scope),
		RefreshedAt:  &now,
		APIDomain:    record.APIDomain,
		OrgID:        record.OrgID,
	}
	if err = m.store.Put(ctx, key, next); err != nil {
		return TokenRecord{}, false
	}
	return next, true
}

// ConnectedTenants lists the organizations the user's token can reach.
func (m *CredentialManager) ConnectedTenants(ctx context.Context, userID string, platform Platform) (tenants []Tenant, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(platform), "user_id": userID}
	defer func() {
		fields["tenant_count"] = len(tenants)
		m.observer.Observe(ctx, startedAt, "connected_tenants", err, fields)
	}()

	protocol, err := m.Protocol(platform)
	if err != nil {
		return nil, err
	}
	record, ok := m.GetValidTokenRecord(ctx, userID, platform)
	if !ok {
		return nil, NeedsAuth(platform, "No token found to check connections.")
	}
	tenants, err = protocol.ListTenants(ctx, record)
	if err != nil {
		return nil, m.mapError(err)
	}
	if len(tenants) == 0 {
		err = NotFoundError(
			fmt.Sprintf("%s account has no connected organizations", platform.DisplayName()),
			map[string]any{"platform": string(platform)},
		).WithTextCode(LedgerErrorNoTenants)
		return nil, err
	}
	return tenants, nil
}

// SetOrgID attaches the selected tenant to an existing record.
func (m *CredentialManager) SetOrgID(ctx context.Context, userID string, platform Platform, orgID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(platform), "user_id": userID, "org_id": orgID}
	defer func() {
		m.observer.Observe(ctx, startedAt, "set_org_id", err, fields)
	}()

	if strings.TrimSpace(orgID) == "" {
		return m.mapError(validationError("tenant_id", "tenant_id is required"))
	}
	key := TokenKey(userID, platform)
	if m.locker != nil {
		handle, lockErr := acquireWithBackoff(ctx, m.locker, key, m.config.RefreshLock.TTL, m.config.RefreshLock.MaxAttempts, m.backoff)
		if lockErr != nil {
			return m.mapError(lockErr)
		}
		defer func() {
			_ = handle.Unlock(ctx)
		}()
	}

	record, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return m.mapError(err)
	}
	if !ok {
		return NotFoundError(
			fmt.Sprintf("token record not found for user %s and platform %s", userID, platform),
			map[string]any{"platform": string(platform), "user_id": userID},
		)
	}
	record.OrgID = strings.TrimSpace(orgID)
	if err = m.store.Put(ctx, key, record); err != nil {
		return m.mapError(err)
	}
	return nil
}

func (m *CredentialManager) OrgID(ctx context.Context, userID string, platform Platform) (string, bool, error) {
	if m == nil || m.store == nil {
		return "", false, fmt.Errorf("core: credential manager is not configured")
	}
	record, ok, err := m.store.Get(ctx, TokenKey(userID, platform))
	if err != nil {
		return "", false, m.mapError(err)
	}
	if !ok || !record.HasTenant() {
		return "", false, nil
	}
	return record.OrgID, true, nil
}

// ClientHandle enforces both completeness dimensions before any provider
// call: a usable token, then a selected tenant.
func (m *CredentialManager) ClientHandle(ctx context.Context, userID string, platform Platform) (ClientHandle, error) {
	record, ok := m.GetValidTokenRecord(ctx, userID, platform)
	if !ok {
		return ClientHandle{}, NeedsAuth(platform, "")
	}
	if !record.HasTenant() {
		return ClientHandle{}, NeedsTenant(platform, "")
	}
	return ClientHandle{
		UserID:      userID,
		Platform:    platform,
		AccessToken: record.AccessToken,
		TenantID:    record.OrgID,
		APIDomain:   record.APIDomain,
	}, nil
}

// Revoke deletes the record, revoking the grant upstream when the
// protocol supports it. Upstream failures do not block the delete.
func (m *CredentialManager) Revoke(ctx context.Context, userID string, platform Platform) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(platform), "user_id": userID}
	defer func() {
		m.observer.Observe(ctx, startedAt, "revoke", err, fields)
	}()

	key := TokenKey(userID, platform)
	record, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return m.mapError(err)
	}
	if ok {
		if protocol, protocolErr := m.Protocol(platform); protocolErr == nil {
			if revoker, canRevoke := protocol.(TokenRevoker); canRevoke {
				if revokeErr := revoker.Revoke(ctx, record); revokeErr != nil {
					fields["revoke_error"] = revokeErr.Error()
				}
			}
		}
	}
	if err = m.store.Delete(ctx, key); err != nil {
		return m.mapError(err)
	}
	return nil
}

func (m *CredentialManager) mapError(err error) error {
	if err == nil {
		return nil
	}
	if m == nil || m.errorMapper == nil {
		return err
	}
	mapped := m.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func lifetime(expiresIn int64, fallback time.Duration) time.Duration {
	if expiresIn > 0 {
		return time.Duration(expiresIn) * time.Second
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ ClientHandleResolver = (*CredentialManager)(nil)
