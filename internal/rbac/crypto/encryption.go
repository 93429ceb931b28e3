// Package crypto provides the default Encryptor used to satisfy the Change
// Tracker's Encrypted field contract: Encrypt(plaintext) -> base64(cipher),
// Decrypt(base64) -> plaintext. Production key management lives outside
// this package; callers supply a 32-byte key from wherever they source
// secrets.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// ChaCha20Poly1305Encryptor is the default Encryptor, backing tests and the
// CLI harness. Each ciphertext is prefixed with a fresh random nonce.
type ChaCha20Poly1305Encryptor struct {
	aead cipherAEAD
}

type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// NewChaCha20Poly1305Encryptor builds an Encryptor from a 32-byte key.
func NewChaCha20Poly1305Encryptor(key []byte) (*ChaCha20Poly1305Encryptor, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: construct aead: %w", err)
	}
	return &ChaCha20Poly1305Encryptor{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh nonce and returns base64(nonce||ciphertext).
func (e *ChaCha20Poly1305Encryptor) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *ChaCha20Poly1305Encryptor) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode base64: %w", err)
	}
	nonceSize := e.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("crypto: ciphertext shorter than nonce")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", err)
	}
	return plaintext, nil
}
