package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agent2000/agent2000/pkg/history"
	"golang.org/x/crypto/chacha20poly1305"
)

// EnvelopeKey is the Data key holding the sealed payload.
const EnvelopeKey = "__encrypted__"

// ErrNotEncrypted is returned when a stored entry carries no envelope.
var ErrNotEncrypted = errors.New("entry is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new entries. Must be chacha20poly1305.KeySize bytes.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open an
	// entry, so keys can be rotated without rewriting history.
	FallbackKeys [][]byte
}

// ParseKey decodes a hex key and checks its length.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

type sealedPayload struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

type encryptionMiddleware struct {
	history.Store
	config EncryptionConfig
}

// NewEncryptionMiddleware seals Data and Metadata with XChaCha20-Poly1305.
// ID, Timestamp and Type stay readable so stores can name and index entries.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("active key must be %d bytes", chacha20poly1305.KeySize)
	}
	return func(next history.Store) history.Store {
		return &encryptionMiddleware{Store: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, e *history.Entry) error {
	plain, err := json.Marshal(sealedPayload{Data: e.Data, Metadata: e.Metadata})
	if err != nil {
		return fmt.Errorf("failed to marshal entry payload: %w", err)
	}
	sealed, err := seal(plain, m.config.ActiveKey, []byte(e.ID))
	if err != nil {
		return fmt.Errorf("failed to encrypt entry: %w", err)
	}

	envelope := &history.Entry{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Type:      e.Type,
		Data:      map[string]any{EnvelopeKey: base64.StdEncoding.EncodeToString(sealed)},
		Metadata:  map[string]any{},
	}
	return m.Store.Save(ctx, envelope)
}

func (m *encryptionMiddleware) LoadAll(ctx context.Context) ([]*history.Entry, error) {
	envelopes, err := m.Store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*history.Entry, 0, len(envelopes))
	for _, env := range envelopes {
		e, err := m.open(env)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", env.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *encryptionMiddleware) open(env *history.Entry) (*history.Entry, error) {
	encoded, ok := env.Data[EnvelopeKey].(string)
	if !ok {
		return nil, ErrNotEncrypted
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plain, err := openWithRotation(sealed, []byte(env.ID), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt entry: %w", err)
	}

	var payload sealedPayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted entry: %w", err)
	}
	return &history.Entry{
		ID:        env.ID,
		Timestamp: env.Timestamp,
		Type:      env.Type,
		Data:      payload.Data,
		Metadata:  payload.Metadata,
	}, nil
}

// seal binds the ciphertext to the entry ID through the additional data, so
// a payload moved to another entry fails to open.
func seal(plaintext, key, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, ad), nil
}

func openWithRotation(sealed, ad, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := open(sealed, activeKey, ad); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := open(sealed, key, ad); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func open(sealed, key, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, ad)
}
