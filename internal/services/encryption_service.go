package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// Sealer protects sensitive columns at rest. Index returns a deterministic
// lookup value for a sealed column (emails).
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
	Index(value string) string
}

// EncryptionService seals values with AES-256-GCM and indexes them with
// HMAC-SHA256.
type EncryptionService struct {
	aead     cipher.AEAD
	indexKey []byte
}

// NewEncryptionService expects two independent 32 byte keys.
func NewEncryptionService(encryptionKey, blindIndexKey []byte) (*EncryptionService, error) {
	if len(encryptionKey) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	if len(blindIndexKey) != 32 {
		return nil, errors.New("blind index key must be 32 bytes")
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{aead: gcm, indexKey: blindIndexKey}, nil
}

// Seal returns base64(nonce || ciphertext). Empty input stays empty.
func (s *EncryptionService) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *EncryptionService) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("ciphertext too short")
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Index normalizes value (trim, lower case) before hashing so lookups are
// case-insensitive.
func (s *EncryptionService) Index(value string) string {
	value = normalize(value)
	if value == "" {
		return ""
	}
	h := hmac.New(sha256.New, s.indexKey)
	h.Write([]byte(value))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Plaintext is the Sealer used when no keys are configured.
type Plaintext struct{}

func (Plaintext) Seal(v string) (string, error) { return v, nil }
func (Plaintext) Open(v string) (string, error) { return v, nil }
func (Plaintext) Index(v string) string          { return normalize(v) }

func normalize(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
