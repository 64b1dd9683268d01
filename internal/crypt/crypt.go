// Package crypt seals and opens small payloads with XChaCha20-Poly1305.
// It backs the branch id codec and the opaque authorization code handler.
package crypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest secret accepted by New.
const MinSecretLength = 16

var ErrOpen = errors.New("unable to open sealed value")

// Crypter seals values into URL safe strings and opens them again.
type Crypter struct {
	aead cipher.AEAD
}

// New derives a 256 bit key from secret with HKDF-SHA256, using info to
// separate keys for different purposes sharing one secret.
func New(secret []byte, info string) (*Crypter, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Crypter{aead: aead}, nil
}

// Seal encrypts plaintext with a random nonce. The result is nonce|ciphertext
// in unpadded base64url.
func (c *Crypter) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any decoding or authentication failure returns ErrOpen.
func (c *Crypter) Open(value string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrOpen
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, ErrOpen
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}
