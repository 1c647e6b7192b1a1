package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-ledgerbridge/core"
	goredis "github.com/redis/go-redis/v9"
)

type TokenStore struct {
	client goredis.UniversalClient
	codec  core.TokenCodec
	prefix string
}

type TokenStoreOption func(*TokenStore)

func WithCodec(codec core.TokenCodec) TokenStoreOption {
	return func(s *TokenStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func WithKeyPrefix(prefix string) TokenStoreOption {
	return func(s *TokenStore) {
		s.prefix = strings.TrimSpace(prefix)
	}
}

func NewTokenStore(client goredis.UniversalClient, opts ...TokenStoreOption) (*TokenStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	store := &TokenStore{client: client, codec: core.JSONTokenCodec{}}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *TokenStore) Get(ctx context.Context, key string) (core.TokenRecord, bool, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return core.TokenRecord{}, false, nil
	}
	if err != nil {
		return core.TokenRecord{}, false, fmt.Errorf("redis: get token record: %w", err)
	}
	record, err := s.codec.Decode(ctx, payload)
	if err != nil {
		return core.TokenRecord{}, false, err
	}
	return record, true, nil
}

// Put stores the record without expiry; the refresh token outlives the
// access token it accompanies.
func (s *TokenStore) Put(ctx context.Context, key string, record core.TokenRecord) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("redis: token key is required")
	}
	payload, err := s.codec.Encode(ctx, record)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(key), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis: put token record: %w", err)
	}
	return nil
}

func (s *TokenStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete token record: %w", err)
	}
	return nil
}

func (s *TokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *TokenStore) key(key string) string {
	return s.prefix + strings.TrimSpace(key)
}

var _ core.TokenStore = (*TokenStore)(nil)
