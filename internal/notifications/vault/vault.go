// internal/notifications/vault/vault.go
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"notification-dispatch/internal/common/errors"
)

const (
	// Marker prefixes every stored ciphertext and is what display paths show instead of secrets.
	Marker = "$encrypted$"

	algorithm = "AESGCM"
	prefix    = Marker + algorithm + "$"
	keySize   = 32
)

// Vault encrypts the sensitive fields of a channel configuration with keys bound to the
// owning template and the field name, so a ciphertext copied to another record or field
// does not decrypt.
type Vault struct {
	secret []byte
}

// New returns a Vault keyed by the service secret.
func New(secret string) (*Vault, error) {
	if len(secret) < keySize {
		return nil, fmt.Errorf("vault secret must be at least %d bytes", keySize)
	}
	return &Vault{secret: []byte(secret)}, nil
}

// IsEncrypted reports whether v already carries the marker.
func IsEncrypted(v interface{}) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, Marker)
}

// Seal encrypts, in place, every sensitive field of cfg that is not already encrypted.
// Missing and empty fields are left alone.
func (v *Vault) Seal(recordID uuid.UUID, sensitive []string, cfg map[string]interface{}) error {
	for _, field := range sensitive {
		raw, ok := cfg[field]
		if !ok || raw == nil || IsEncrypted(raw) {
			continue
		}
		plain, ok := raw.(string)
		if !ok {
			plain = fmt.Sprint(raw)
		}
		if plain == "" {
			continue
		}

		sealed, err := v.encrypt(recordID, field, plain)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", field, err)
		}
		cfg[field] = sealed
	}
	return nil
}

// Open returns a copy of cfg with sensitive fields decrypted. cfg is not modified.
func (v *Vault) Open(recordID uuid.UUID, sensitive []string, cfg map[string]interface{}) (map[string]interface{}, error) {
	out := copyMap(cfg)
	for _, field := range sensitive {
		raw, ok := out[field]
		if !ok || !IsEncrypted(raw) {
			continue
		}
		plain, err := v.decrypt(recordID, field, raw.(string))
		if err != nil {
			return nil, errors.NewDecryptionFailedError(field, err)
		}
		out[field] = plain
	}
	return out, nil
}

// Mask returns a copy of cfg where every encrypted sensitive field reads Marker.
func Mask(sensitive []string, cfg map[string]interface{}) map[string]interface{} {
	out := copyMap(cfg)
	for _, field := range sensitive {
		if IsEncrypted(out[field]) {
			out[field] = Marker
		}
	}
	return out
}

func (v *Vault) encrypt(recordID uuid.UUID, field, plain string) (string, error) {
	aead, err := v.aead(recordID, field)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plain), []byte(field))
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) decrypt(recordID uuid.UUID, field, value string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return "", fmt.Errorf("unsupported ciphertext format")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", err
	}

	aead, err := v.aead(recordID, field)
	if err != nil {
		return "", err
	}
	if len(data) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(field))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (v *Vault) aead(recordID uuid.UUID, field string) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, v.secret, recordID[:], []byte(field))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, val := range in {
		out[k] = val
	}
	return out
}
