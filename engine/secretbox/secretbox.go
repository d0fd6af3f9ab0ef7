// Package secretbox encrypts Provider.Config and Trigger.State at rest
// (spec.md §7) using NaCl secretbox: XSalsa20-Poly1305 authenticated
// symmetric encryption keyed by a process-level key.
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Box encrypts and decrypts opaque byte payloads with a fixed 32-byte key.
type Box struct {
	key [keySize]byte
}

// NewBox builds a Box from a base64- or raw-encoded 32-byte key. Decryption
// failures downstream (wrong key, tampered ciphertext) surface as a 5xx per
// spec.md §7; key validation happens once, here, at startup.
func NewBox(key string) (*Box, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("decode secretbox key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("secretbox key must be %d bytes, got %d", keySize, len(raw))
	}
	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

func decodeKey(key string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(key); err == nil && len(decoded) == keySize {
		return decoded, nil
	}
	return []byte(key), nil
}

// Encrypt returns nonce||ciphertext, both opaque to callers.
func (b *Box) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plaintext, &nonce, &b.key)
	return out, nil
}

// Decrypt reverses Encrypt. Returns an error on truncated input, wrong key,
// or tampered ciphertext — callers must treat all three identically.
func (b *Box) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, fmt.Errorf("decrypt: authentication failed")
	}
	return plaintext, nil
}

// GenerateKey returns a fresh base64-encoded 32-byte key suitable for
// SECRET_ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	raw := make([]byte, keySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
