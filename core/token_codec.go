package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	TokenPayloadFormatJSON      = "token_record_json"
	TokenPayloadFormatEncrypted = "token_record_sealed"
)

// TokenCodec turns a TokenRecord into the bytes a store persists.
type TokenCodec interface {
	Format() string
	Encode(ctx context.Context, record TokenRecord) ([]byte, error)
	Decode(ctx context.Context, payload []byte) (TokenRecord, error)
}

// JSONTokenCodec stores the camel-case wire layout of TokenRecord.
type JSONTokenCodec struct{}

func (JSONTokenCodec) Format() string {
	return TokenPayloadFormatJSON
}

func (JSONTokenCodec) Encode(_ context.Context, record TokenRecord) ([]byte, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("core: encode token record: %w", err)
	}
	return encoded, nil
}

func (JSONTokenCodec) Decode(_ context.Context, payload []byte) (TokenRecord, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return TokenRecord{}, fmt.Errorf("core: token payload is empty")
	}
	var record TokenRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return TokenRecord{}, fmt.Errorf("core: decode token record: %w", err)
	}
	return record, nil
}

// SealedTokenCodec encrypts the JSON payload with a SecretProvider so
// tokens are never written in clear text.
type SealedTokenCodec struct {
	Secrets SecretProvider
	Inner   TokenCodec
}

func NewSealedTokenCodec(secrets SecretProvider) SealedTokenCodec {
	return SealedTokenCodec{Secrets: secrets, Inner: JSONTokenCodec{}}
}

func (SealedTokenCodec) Format() string {
	return TokenPayloadFormatEncrypted
}

func (c SealedTokenCodec) Encode(ctx context.Context, record TokenRecord) ([]byte, error) {
	if c.Secrets == nil {
		return nil, fmt.Errorf("core: secret provider is required for sealed token payloads")
	}
	plaintext, err := c.inner().Encode(ctx, record)
	if err != nil {
		return nil, err
	}
	sealed, err := c.Secrets.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("core: seal token record: %w", err)
	}
	return sealed, nil
}

func (c SealedTokenCodec) Decode(ctx context.Context, payload []byte) (TokenRecord, error) {
	if c.Secrets == nil {
		return TokenRecord{}, fmt.Errorf("core: secret provider is required for sealed token payloads")
	}
	if len(payload) == 0 {
		return TokenRecord{}, fmt.Errorf("core: token payload is empty")
	}
	plaintext, err := c.Secrets.Decrypt(ctx, payload)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("core: open token record: %w", err)
	}
	return c.inner().Decode(ctx, plaintext)
}

func (c SealedTokenCodec) inner() TokenCodec {
	if c.Inner == nil {
		return JSONTokenCodec{}
	}
	return c.Inner
}

var (
	_ TokenCodec = JSONTokenCodec{}
	_ TokenCodec = SealedTokenCodec{}
)
