package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenStore keeps one ledger_tokens row per token key. Payloads are
// written through a core.TokenCodec; production wiring uses the sealed
// codec so rows never hold clear-text tokens.
type TokenStore struct {
	db    *bun.DB
	repo  repository.Repository[*tokenRecordRow]
	codec core.TokenCodec
	now   func() time.Time
}

func NewTokenStore(db *bun.DB, codec core.TokenCodec) (*TokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if codec == nil {
		codec = core.JSONTokenCodec{}
	}
	repo := repository.NewRepository[*tokenRecordRow](db, tokenRecordHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid token repository wiring: %w", err)
		}
	}
	return &TokenStore{
		db:    db,
		repo:  repo,
		codec: codec,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func NewTokenStoreFromPersistence(client *persistence.Client, codec core.TokenCodec) (*TokenStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewTokenStore(db, codec)
}

func (s *TokenStore) Get(ctx context.Context, key string) (core.TokenRecord, bool, error) {
	if s == nil || s.repo == nil {
		return core.TokenRecord{}, false, fmt.Errorf("sqlstore: token store is not configured")
	}
	row, found, err := s.find(ctx, key)
	if err != nil || !found {
		return core.TokenRecord{}, false, err
	}
	if row.PayloadFormat != s.codec.Format() {
		return core.TokenRecord{}, false, fmt.Errorf("sqlstore: token %q stored as %q, codec reads %q", row.TokenKey, row.PayloadFormat, s.codec.Format())
	}
	record, err := s.codec.Decode(ctx, row.Payload)
	if err != nil {
		return core.TokenRecord{}, false, err
	}
	return record, true, nil
}

// Put inserts the row on first write and updates it in place afterwards,
// inside one transaction so concurrent first writes cannot both insert.
func (s *TokenStore) Put(ctx context.Context, key string, record core.TokenRecord) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: token key is required")
	}
	payload, err := s.codec.Encode(ctx, record)
	if err != nil {
		return err
	}
	now := s.now()
	userID, platform := splitTokenKey(key)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(tokenRecordRow)
		err := tx.NewSelect().Model(existing).Where("?TableAlias.token_key = ?", key).Limit(1).Scan(ctx)
		switch {
		case err == nil:
			_, updateErr := tx.NewUpdate().
				Model((*tokenRecordRow)(nil)).
				Set("payload = ?", payload).
				Set("payload_format = ?", s.codec.Format()).
				Set("expires_at = ?", expiresAt(record)).
				Set("updated_at = ?", now).
				Where("token_key = ?", key).
				Exec(ctx)
			return updateErr
		case isNoRows(err):
			_, createErr := s.repo.CreateTx(ctx, tx, &tokenRecordRow{
				ID:            uuid.NewString(),
				TokenKey:      key,
				UserID:        userID,
				Platform:      platform,
				Payload:       payload,
				PayloadFormat: s.codec.Format(),
				ExpiresAt:     expiresAt(record),
				CreatedAt:     now,
				UpdatedAt:     now,
			})
			return createErr
		default:
			return err
		}
	})
}

func (s *TokenStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*tokenRecordRow)(nil)).
		Where("token_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	return err
}

func (s *TokenStore) find(ctx context.Context, key string) (*tokenRecordRow, bool, error) {
	rows, _, err := s.repo.List(ctx,
		repository.SelectBy("token_key", "=", strings.TrimSpace(key)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func expiresAt(record core.TokenRecord) *time.Time {
	if record.ExpiresAt.IsZero() {
		return nil
	}
	value := record.ExpiresAt.UTC()
	return &value
}

// splitTokenKey recovers the indexed columns from tokens:<user>:<PLATFORM>.
func splitTokenKey(key string) (string, string) {
	trimmed := strings.TrimPrefix(key, core.TokenKeyPrefix+":")
	idx := strings.LastIndex(trimmed, ":")
	if idx < 0 {
		return trimmed, ""
	}
	return trimmed[:idx], trimmed[idx+1:]
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.TokenStore = (*TokenStore)(nil)
