package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultRefreshMargin  = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultRefreshLockTTL = 15 * time.Second
)

type ZohoConfig struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       string `koanf:"scopes" mapstructure:"scopes"`
	AccountsURL  string `koanf:"accounts_url" mapstructure:"accounts_url"`
	APIDomain    string `koanf:"api_domain" mapstructure:"api_domain"`
}

type XeroConfig struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       string `koanf:"scopes" mapstructure:"scopes"`
}

type ResendConfig struct {
	APIKey string `koanf:"api_key" mapstructure:"api_key"`
	From   string `koanf:"from" mapstructure:"from"`
}

type RedisConfig struct {
	Addr      string `koanf:"addr" mapstructure:"addr"`
	Password  string `koanf:"password" mapstructure:"password"`
	DB        int    `koanf:"db" mapstructure:"db"`
	KeyPrefix string `koanf:"key_prefix" mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
}

type StoreConfig struct {
	Kind       string        `koanf:"kind" mapstructure:"kind"`
	EncryptKey string        `koanf:"encrypt_key" mapstructure:"encrypt_key"`
	CacheTTL   time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type RefreshLockConfig struct {
	Enabled     bool          `koanf:"enabled" mapstructure:"enabled"`
	TTL         time.Duration `koanf:"ttl" mapstructure:"ttl"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

const (
	StoreKindMemory = "memory"
	StoreKindRedis  = "redis"
	StoreKindSQL    = "sql"
)

type Config struct {
	ServiceName    string            `koanf:"service_name" mapstructure:"service_name"`
	RefreshMargin  time.Duration     `koanf:"refresh_margin" mapstructure:"refresh_margin"`
	RequestTimeout time.Duration     `koanf:"request_timeout" mapstructure:"request_timeout"`
	RefreshLock    RefreshLockConfig `koanf:"refresh_lock" mapstructure:"refresh_lock"`
	Zoho           ZohoConfig        `koanf:"zoho" mapstructure:"zoho"`
	Xero           XeroConfig        `koanf:"xero" mapstructure:"xero"`
	Resend         ResendConfig      `koanf:"resend" mapstructure:"resend"`
	Store          StoreConfig       `koanf:"store" mapstructure:"store"`
	Redis          RedisConfig       `koanf:"redis" mapstructure:"redis"`
	Database       DatabaseConfig    `koanf:"database" mapstructure:"database"`
	HTTP           HTTPConfig        `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "ledgerbridge",
		RefreshMargin:  DefaultRefreshMargin,
		RequestTimeout: DefaultRequestTimeout,
		RefreshLock: RefreshLockConfig{
			TTL:         DefaultRefreshLockTTL,
			MaxAttempts: 5,
		},
		Zoho: ZohoConfig{
			Scopes:      "ZohoBooks.fullaccess.all,offline_access",
			AccountsURL: "https://accounts.zoho.com",
			APIDomain:   "https://www.zohoapis.com",
		},
		Xero: XeroConfig{
			Scopes: "offline_access accounting.transactions accounting.settings accounting.contacts accounting.reports.read",
		},
		Resend: ResendConfig{
			From: "onboarding@resend.dev",
		},
		Store: StoreConfig{
			Kind:     StoreKindMemory,
			CacheTTL: time.Minute,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "ledgerbridge:",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file:ledgerbridge.db?cache=shared&_foreign_keys=on",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.RefreshMargin < 0 {
		return fmt.Errorf("core: refresh_margin must not be negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request_timeout must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Kind)) {
	case "", StoreKindMemory, StoreKindRedis, StoreKindSQL:
	default:
		return fmt.Errorf("core: invalid store kind %q", c.Store.Kind)
	}
	return nil
}
