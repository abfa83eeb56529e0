package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// EnvelopeField is the only field of an encrypted value as seen by the store.
const EnvelopeField = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new values.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried when decryption with the active key fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.VersionedStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts values with AES-GCM
// before they reach the store. Versions, keys and scopes stay in clear so
// compare-and-swap keeps working on the backend.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i)
		}
	}
	return func(next ports.VersionedStore) ports.VersionedStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (m *encryptionMiddleware) Get(ctx context.Context, ns domain.Namespace, key string) (domain.Entry, error) {
	entry, err := m.next.Get(ctx, ns, key)
	if err != nil || !entry.Exists() {
		return entry, err
	}

	// 1. Extract ciphertext
	envelope, ok := entry.Value.(map[string]any)
	if !ok {
		return domain.Entry{}, fmt.Errorf("value of %q is missing the encrypted envelope", key)
	}
	encoded, ok := envelope[EnvelopeField].(string)
	if !ok {
		return domain.Entry{}, fmt.Errorf("value of %q is missing the encrypted envelope", key)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	// 2. Decrypt (Try Active, then Fallback)
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to decrypt value of %q: %w", key, err)
	}

	// 3. Deserialize
	var value any
	if err := json.Unmarshal(plainText, &value); err != nil {
		return domain.Entry{}, fmt.Errorf("failed to unmarshal decrypted value: %w", err)
	}
	entry.Value = value
	return entry, nil
}

func (m *encryptionMiddleware) CompareAndSwap(ctx context.Context, ns domain.Namespace, key string, value any, expected uint32) (uint32, error) {
	plainText, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal value: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt value: %w", err)
	}

	envelope := map[string]any{
		EnvelopeField: base64.StdEncoding.EncodeToString(ciphertext),
	}
	return m.next.CompareAndSwap(ctx, ns, key, envelope, expected)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, ns domain.Namespace, key string) error {
	return m.next.Delete(ctx, ns, key)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
