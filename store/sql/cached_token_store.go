package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-ledgerbridge/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const tokenCacheKeyPrefix = "ledgerbridge::token::v1"

// CachedTokenStore is a read-through cache in front of a TokenStore.
// Every write or delete evicts the key before returning.
type CachedTokenStore struct {
	base  core.TokenStore
	cache repositorycache.CacheService
}

type cachedLookup struct {
	Record core.TokenRecord
	Found  bool
}

func NewCachedTokenStore(base core.TokenStore, cacheService repositorycache.CacheService) (*CachedTokenStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base token store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: token cache service is required")
	}
	return &CachedTokenStore{base: base, cache: cacheService}, nil
}

// TokenCacheKey returns ledgerbridge::token::v1::<escaped token key>.
func TokenCacheKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: token key is required")
	}
	return tokenCacheKeyPrefix + "::" + url.PathEscape(key), nil
}

func (s *CachedTokenStore) Get(ctx context.Context, key string) (core.TokenRecord, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.TokenRecord{}, false, fmt.Errorf("sqlstore: cached token store is not configured")
	}
	cacheKey, err := TokenCacheKey(key)
	if err != nil {
		return core.TokenRecord{}, false, err
	}
	lookup, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedLookup, error) {
		record, found, fetchErr := s.base.Get(ctx, key)
		if fetchErr != nil {
			return cachedLookup{}, fetchErr
		}
		return cachedLookup{Record: record.Clone(), Found: found}, nil
	})
	if err != nil {
		return core.TokenRecord{}, false, err
	}
	return lookup.Record.Clone(), lookup.Found, nil
}

func (s *CachedTokenStore) Put(ctx context.Context, key string, record core.TokenRecord) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached token store is not configured")
	}
	if err := s.base.Put(ctx, key, record); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedTokenStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached token store is not configured")
	}
	if err := s.base.Delete(ctx, key); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedTokenStore) evict(ctx context.Context, key string) error {
	cacheKey, err := TokenCacheKey(key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.TokenStore = (*CachedTokenStore)(nil)
