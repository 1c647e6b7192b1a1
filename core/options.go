package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type managerBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	store           TokenStore
	protocols       []OAuthProtocol
	locker          KeyLocker
	backoff         BackoffScheduler
	now             func() time.Time
}

type Option func(*managerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *managerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *managerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *managerBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *managerBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *managerBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *managerBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTokenStore(store TokenStore) Option {
	return func(b *managerBuilder) {
		b.store = store
	}
}

// WithProtocol registers the OAuth protocol of one platform. A later
// registration for the same platform replaces the earlier one.
func WithProtocol(protocol OAuthProtocol) Option {
	return func(b *managerBuilder) {
		if protocol != nil {
			b.protocols = append(b.protocols, protocol)
		}
	}
}

// WithRefreshLocker serializes read-refresh-write per token key. Without it
// concurrent refreshes of the same key resolve as last writer wins.
func WithRefreshLocker(locker KeyLocker) Option {
	return func(b *managerBuilder) {
		b.locker = locker
	}
}

func WithBackoffScheduler(scheduler BackoffScheduler) Option {
	return func(b *managerBuilder) {
		b.backoff = scheduler
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *managerBuilder) {
		b.now = now
	}
}

func defaultManagerBuilder(runtime Config) managerBuilder {
	loggerProvider, logger := glog.Resolve("ledgerbridge", nil, nil)
	return managerBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		backoff: ExponentialBackoffScheduler{
			Initial: defaultLockInitialBackoff,
			Max:     defaultLockMaxBackoff,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw map, mostly for tests.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime overrides.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ResolveConfig runs the provider and resolver the same way the
// credential manager does, for hosts that need the merged config first.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type layer map[string]any

func (l layer) set(key string, value any, include bool) {
	if include {
		l[key] = value
	}
}

func (l layer) str(key string, value string, includeZero bool) {
	l.set(key, value, includeZero || strings.TrimSpace(value) != "")
}

func (l layer) nested(key string, child layer) {
	if len(child) > 0 {
		l[key] = map[string]any(child)
	}
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	root := layer{}
	root.str("service_name", cfg.ServiceName, includeZero)
	root.set("refresh_margin", cfg.RefreshMargin, includeZero || cfg.RefreshMargin != 0)
	root.set("request_timeout", cfg.RequestTimeout, includeZero || cfg.RequestTimeout != 0)

	refreshLock := layer{}
	refreshLock.set("enabled", cfg.RefreshLock.Enabled, includeZero || cfg.RefreshLock.Enabled)
	refreshLock.set("ttl", cfg.RefreshLock.TTL, includeZero || cfg.RefreshLock.TTL != 0)
	refreshLock.set("max_attempts", cfg.RefreshLock.MaxAttempts, includeZero || cfg.RefreshLock.MaxAttempts != 0)
	root.nested("refresh_lock", refreshLock)

	zoho := layer{}
	zoho.str("client_id", cfg.Zoho.ClientID, includeZero)
	zoho.str("client_secret", cfg.Zoho.ClientSecret, includeZero)
	zoho.str("redirect_uri", cfg.Zoho.RedirectURI, includeZero)
	zoho.str("scopes", cfg.Zoho.Scopes, includeZero)
	zoho.str("accounts_url", cfg.Zoho.AccountsURL, includeZero)
	zoho.str("api_domain", cfg.Zoho.APIDomain, includeZero)
	root.nested("zoho", zoho)

	xero := layer{}
	xero.str("client_id", cfg.Xero.ClientID, includeZero)
	xero.str("client_secret", cfg.Xero.ClientSecret, includeZero)
	xero.str("redirect_uri", cfg.Xero.RedirectURI, includeZero)
	xero.str("scopes", cfg.Xero.Scopes, includeZero)
	root.nested("xero", xero)

	resend := layer{}
	resend.str("api_key", cfg.Resend.APIKey, includeZero)
	resend.str("from", cfg.Resend.From, includeZero)
	root.nested("resend", resend)

	store := layer{}
	store.str("kind", cfg.Store.Kind, includeZero)
	store.str("encrypt_key", cfg.Store.EncryptKey, includeZero)
	store.set("cache_ttl", cfg.Store.CacheTTL, includeZero || cfg.Store.CacheTTL != 0)
	root.nested("store", store)

	redis := layer{}
	redis.str("addr", cfg.Redis.Addr, includeZero)
	redis.str("password", cfg.Redis.Password, includeZero)
	redis.set("db", cfg.Redis.DB, includeZero || cfg.Redis.DB != 0)
	redis.str("key_prefix", cfg.Redis.KeyPrefix, includeZero)
	root.nested("redis", redis)

	database := layer{}
	database.str("driver", cfg.Database.Driver, includeZero)
	database.str("dsn", cfg.Database.DSN, includeZero)
	root.nested("database", database)

	httpLayer := layer{}
	httpLayer.str("addr", cfg.HTTP.Addr, includeZero)
	root.nested("http", httpLayer)

	return map[string]any(root)
}
