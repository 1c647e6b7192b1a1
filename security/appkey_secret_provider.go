package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-ledgerbridge/core"
)

const defaultKeyID = "app-key"

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals token payloads with AES-GCM under an
// application key. Payloads sealed under a retired key stay readable as
// long as that key is registered with WithPreviousKey.
type AppKeySecretProvider struct {
	keyID    string
	key      []byte
	previous map[string][]byte
	random   io.Reader
}

func WithKeyID(id string) Option {
	return func(provider *AppKeySecretProvider) {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			provider.keyID = trimmed
		}
	}
}

// WithPreviousKey registers a decrypt-only key under its key id.
func WithPreviousKey(id string, keyMaterial []byte) Option {
	return func(provider *AppKeySecretProvider) {
		id = strings.TrimSpace(id)
		material := bytes.TrimSpace(keyMaterial)
		if id == "" || len(material) == 0 {
			return
		}
		if provider.previous == nil {
			provider.previous = map[string][]byte{}
		}
		provider.previous[id] = normalizeKey(material)
	}
}

func withRandom(reader io.Reader) Option {
	return func(provider *AppKeySecretProvider) {
		if reader != nil {
			provider.random = reader
		}
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	provider := &AppKeySecretProvider{
		keyID:  defaultKeyID,
		key:    normalizeKey(key),
		random: rand.Reader,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	if _, clash := provider.previous[provider.keyID]; clash {
		return nil, fmt.Errorf("security: previous key %q shadows the active key id", provider.keyID)
	}
	return provider, nil
}

// NewAppKeySecretProviderFromString accepts raw key text or a "base64:"
// prefixed key.
func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	key = strings.TrimSpace(key)
	if encoded, ok := strings.CutPrefix(key, "base64:"); ok {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("security: decode base64 key: %w", err)
		}
		return NewAppKeySecretProvider(decoded, opts...)
	}
	return NewAppKeySecretProvider([]byte(key), opts...)
}

// NewSecretProviderFromConfig builds the provider for store.encrypt_key.
func NewSecretProviderFromConfig(cfg core.StoreConfig, opts ...Option) (*AppKeySecretProvider, error) {
	if strings.TrimSpace(cfg.EncryptKey) == "" {
		return nil, fmt.Errorf("security: store.encrypt_key is required for encrypted token storage")
	}
	return NewAppKeySecretProviderFromString(cfg.EncryptKey, opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := newGCM(p.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(p.random, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, []byte(p.keyID))
	return encodeEnvelope(p.keyID, nonce, sealed)
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	key, err := p.keyFor(env.KeyID)
	if err != nil {
		return nil, err
	}
	nonce, sealed, err := env.parts()
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce length %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, []byte(env.KeyID))
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) keyFor(id string) ([]byte, error) {
	if id == "" || id == p.keyID {
		return p.key, nil
	}
	if key, ok := p.previous[id]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("security: unknown key id %q", id)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

// normalizeKey keeps valid AES key sizes and hashes anything else to 32
// bytes.
func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
