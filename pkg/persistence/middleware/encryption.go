package middleware

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/inquiry/pkg/kv"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// envelope marks a sealed value; values without it were never encrypted.
var envelope = []byte("inq1:")

// ErrNotEncrypted is returned when a stored value lacks the envelope.
var ErrNotEncrypted = errors.New("stored value is not encrypted")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new values. Must be KeySize bytes.
	ActiveKey []byte

	// FallbackKeys are tried, in order, when the active key cannot open a
	// value. Rotating keys means moving the old active key here.
	FallbackKeys [][]byte
}

// ParseKeys decodes base64 keys into an EncryptionConfig.
func ParseKeys(active string, fallbacks ...string) (EncryptionConfig, error) {
	var cfg EncryptionConfig
	key, err := decodeKey(active)
	if err != nil {
		return cfg, fmt.Errorf("active key: %w", err)
	}
	cfg.ActiveKey = key
	for i, f := range fallbacks {
		k, err := decodeKey(f)
		if err != nil {
			return cfg, fmt.Errorf("fallback key %d: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, k)
	}
	return cfg, nil
}

func decodeKey(s string) ([]byte, error) {
	k, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(k) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(k))
	}
	return k, nil
}

type encryptedBackend struct {
	next   kv.Backend
	config EncryptionConfig
}

// NewEncryptionMiddleware returns a middleware sealing every value with
// AES-GCM. Keys are left in clear so prefix listing keeps working.
func NewEncryptionMiddleware(config EncryptionConfig) (BackendMiddleware, error) {
	if len(config.ActiveKey) != KeySize {
		return nil, fmt.Errorf("active key must be %d bytes (AES-256)", KeySize)
	}
	for i, k := range config.FallbackKeys {
		if len(k) != KeySize {
			return nil, fmt.Errorf("fallback key %d must be %d bytes", i, KeySize)
		}
	}
	return func(next kv.Backend) kv.Backend {
		return &encryptedBackend{next: next, config: config}
	}, nil
}

func (b *encryptedBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sealed, err := encrypt(value, b.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return b.next.Set(ctx, key, append(bytes.Clone(envelope), sealed...), ttl)
}

func (b *encryptedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := b.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	sealed, ok := bytes.CutPrefix(raw, envelope)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotEncrypted)
	}
	plain, err := decryptWithRotation(sealed, b.config.ActiveKey, b.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (b *encryptedBackend) Delete(ctx context.Context, key string) error {
	return b.next.Delete(ctx, key)
}

func (b *encryptedBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	return b.next.Keys(ctx, prefix)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext, active []byte, fallbacks [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, active); err == nil {
		return plain, nil
	}
	for _, key := range fallbacks {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
