package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// FieldCipher encrypts individual order fields before they reach disk. The
// gateway-issued password and secret are never stored in clear text.
type FieldCipher struct {
	secretKey string
}

// NewFieldCipher creates a field cipher from the application encrypt key
func NewFieldCipher(secretKey string) *FieldCipher {
	return &FieldCipher{secretKey: secretKey}
}

// Encrypt encrypts a field value using AES-GCM
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	key := c.deriveEncryptionKey()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	combined := append(nonce, ciphertext...)
	return base64.URLEncoding.EncodeToString(combined), nil
}

// Decrypt decrypts a field value encrypted with Encrypt
func (c *FieldCipher) Decrypt(encrypted string) (string, error) {
	key := c.deriveEncryptionKey()

	combined, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(combined) < gcm.NonceSize() {
		return "", errors.New("encrypted value too short")
	}

	nonce := combined[:gcm.NonceSize()]
	ciphertext := combined[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

// deriveEncryptionKey derives a 32-byte encryption key from the secret
func (c *FieldCipher) deriveEncryptionKey() []byte {
	hash := sha256.Sum256([]byte(c.secretKey + "-order-field-encryption-v1"))
	return hash[:]
}
