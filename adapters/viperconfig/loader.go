package viperconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/goliatone/go-ledgerbridge/core"
)

const EnvPrefix = "LEDGERBRIDGE"

type kind int

const (
	kindString kind = iota
	kindDuration
	kindInt
	kindBool
)

type setting struct {
	key    string
	kind   kind
	legacy []string
}

// settings lists every core.Config key the loader reads. Legacy names are
// the unprefixed variables older deployments export.
var settings = []setting{
	{key: "service_name"},
	{key: "refresh_margin", kind: kindDuration},
	{key: "request_timeout", kind: kindDuration},
	{key: "refresh_lock.enabled", kind: kindBool},
	{key: "refresh_lock.ttl", kind: kindDuration},
	{key: "refresh_lock.max_attempts", kind: kindInt},
	{key: "zoho.client_id", legacy: []string{"ZOHO_CLIENT_ID"}},
	{key: "zoho.client_secret", legacy: []string{"ZOHO_CLIENT_SECRET"}},
	{key: "zoho.redirect_uri", legacy: []string{"ZOHO_REDIRECT_URI"}},
	{key: "zoho.scopes", legacy: []string{"ZOHO_SCOPES"}},
	{key: "zoho.accounts_url"},
	{key: "zoho.api_domain"},
	{key: "xero.client_id", legacy: []string{"XERO_CLIENT_ID"}},
	{key: "xero.client_secret", legacy: []string{"XERO_CLIENT_SECRET"}},
	{key: "xero.redirect_uri", legacy: []string{"XERO_REDIRECT_URI"}},
	{key: "xero.scopes", legacy: []string{"XERO_SCOPES"}},
	{key: "resend.api_key", legacy: []string{"RESEND_API_KEY"}},
	{key: "resend.from"},
	{key: "store.kind"},
	{key: "store.encrypt_key"},
	{key: "store.cache_ttl", kind: kindDuration},
	{key: "redis.addr"},
	{key: "redis.password"},
	{key: "redis.db", kind: kindInt},
	{key: "redis.key_prefix"},
	{key: "database.driver"},
	{key: "database.dsn"},
	{key: "http.addr"},
}

// Loader reads an optional YAML file and LEDGERBRIDGE_* variables
// (LEDGERBRIDGE_ZOHO_CLIENT_ID for zoho.client_id) into the raw map
// core.CfgxConfigProvider builds a Config from. Variables win over the file.
type Loader struct {
	Path   string
	Lookup func(string) (string, bool)
}

func NewLoader(path string) *Loader {
	return &Loader{Path: strings.TrimSpace(path)}
}

func (l *Loader) LoadRaw(context.Context) (map[string]any, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if l != nil && l.Path != "" {
		v.SetConfigFile(l.Path)
		if err := v.ReadInConfig(); err != nil && !missingFile(err) {
			return nil, fmt.Errorf("viperconfig: read %s: %w", l.Path, err)
		}
	}

	lookup := os.LookupEnv
	if l != nil && l.Lookup != nil {
		lookup = l.Lookup
	}
	for _, s := range settings {
		if value, ok := envValue(lookup, s); ok {
			v.Set(s.key, value)
		}
	}
	if port, ok := lookup("PORT"); ok && strings.TrimSpace(port) != "" && !v.IsSet("http.addr") {
		v.Set("http.addr", ":"+strings.TrimSpace(port))
	}

	raw := map[string]any{}
	for _, s := range settings {
		if !v.IsSet(s.key) {
			continue
		}
		setPath(raw, s.key, typed(v, s))
	}
	return raw, nil
}

func envValue(lookup func(string) (string, bool), s setting) (string, bool) {
	names := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(s.key, ".", "_"))}, s.legacy...)
	for _, name := range names {
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func typed(v *viper.Viper, s setting) any {
	switch s.kind {
	case kindDuration:
		return v.GetDuration(s.key)
	case kindInt:
		return v.GetInt(s.key)
	case kindBool:
		return v.GetBool(s.key)
	}
	return v.GetString(s.key)
}

func setPath(root map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	node := root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}

func missingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

var _ core.RawConfigLoader = (*Loader)(nil)
