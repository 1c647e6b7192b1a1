package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-ledgerbridge/core"
	ledgermigrations "github.com/goliatone/go-ledgerbridge/migrations"
	"github.com/goliatone/go-ledgerbridge/security"
	redisstore "github.com/goliatone/go-ledgerbridge/store/redis"
	sqlstore "github.com/goliatone/go-ledgerbridge/store/sql"
)

type storeBacking struct {
	kind    string
	store   core.TokenStore
	locker  core.KeyLocker
	closers []func() error
}

func (b *storeBacking) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openStore builds the token store named by store.kind. Redis also
// provides the refresh locker so replicas share one refresh per key.
func openStore(ctx context.Context, cfg core.Config) (*storeBacking, error) {
	codec, err := tokenCodec(cfg.Store)
	if err != nil {
		return nil, err
	}
	kind := strings.ToLower(strings.TrimSpace(cfg.Store.Kind))
	switch kind {
	case "", core.StoreKindMemory:
		return &storeBacking{kind: core.StoreKindMemory, store: core.NewMemoryTokenStore()}, nil
	case core.StoreKindRedis:
		return openRedis(ctx, cfg, codec)
	case core.StoreKindSQL:
		return openSQL(ctx, cfg, codec)
	}
	return nil, fmt.Errorf("unsupported store kind %q", cfg.Store.Kind)
}

func tokenCodec(cfg core.StoreConfig) (core.TokenCodec, error) {
	if strings.TrimSpace(cfg.EncryptKey) == "" {
		return core.JSONTokenCodec{}, nil
	}
	secrets, err := security.NewSecretProviderFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return core.NewSealedTokenCodec(secrets), nil
}

func openRedis(ctx context.Context, cfg core.Config, codec core.TokenCodec) (*storeBacking, error) {
	client, err := redisstore.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	backing := &storeBacking{kind: core.StoreKindRedis, closers: []func() error{client.Close}}
	store, err := redisstore.NewTokenStore(client,
		redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix),
		redisstore.WithCodec(codec),
	)
	if err != nil {
		backing.Close()
		return nil, err
	}
	locker, err := redisstore.NewLocker(client, cfg.Redis.KeyPrefix+"lock:")
	if err != nil {
		backing.Close()
		return nil, err
	}
	backing.store = store
	backing.locker = locker
	return backing, nil
}

type persistenceConfig struct {
	driver string
	dsn    string
}

func (c persistenceConfig) GetDebug() bool                { return false }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.dsn }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "ledgerbridge" }

func openSQL(ctx context.Context, cfg core.Config, codec core.TokenCodec) (*storeBacking, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	dialect, err := ledgermigrations.DialectForDriver(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	pcfg := persistenceConfig{driver: driver, dsn: cfg.Database.DSN}
	var client *persistence.Client
	if dialect == ledgermigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(pcfg, sqlDB, sqlitedialect.New())
	} else {
		client, err = persistence.New(pcfg, sqlDB, pgdialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}
	backing := &storeBacking{kind: core.StoreKindSQL, closers: []func() error{client.Close}}

	err = ledgermigrations.Apply(ctx, ledgermigrations.Target{
		Register: func(fsys fs.FS) { client.RegisterSQLMigrations(fsys) },
		Migrate:  client.Migrate,
	}, dialect)
	if err != nil {
		backing.Close()
		return nil, err
	}

	base, err := sqlstore.NewTokenStoreFromPersistence(client, codec)
	if err != nil {
		backing.Close()
		return nil, err
	}
	cacheConfig := repositorycache.DefaultConfig()
	if cfg.Store.CacheTTL > 0 {
		cacheConfig.TTL = cfg.Store.CacheTTL
	}
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		backing.Close()
		return nil, err
	}
	cached, err := sqlstore.NewCachedTokenStore(base, cacheService)
	if err != nil {
		backing.Close()
		return nil, err
	}
	backing.store = cached
	return backing, nil
}
