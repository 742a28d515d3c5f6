package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrDecryption is returned when an envelope is malformed or fails to
// authenticate against the process key.
var ErrDecryption = errors.New("cannot decrypt message envelope")

// Cipher encrypts message bodies with AES-GCM under a single process-wide key.
// Each call to Encrypt uses a fresh random nonce, so encrypting the same
// plaintext twice yields different envelopes.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher with a random key held only in memory. Messages
// encrypted under it become unreadable once the process exits; use
// NewFromKeyFile when history must survive restarts.
func New() (*Cipher, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewWithKey(key)
}

// NewWithKey builds a Cipher from an existing 32-byte key.
func NewWithKey(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// NewFromKeyFile loads the key from path, creating a random one (mode 0600)
// on first use.
func NewFromKeyFile(path string) (*Cipher, error) {
	key, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		key = make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		if err := os.WriteFile(path, key, 0o600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return NewWithKey(key)
}

// Encrypt seals plaintext and returns a self-contained envelope:
// base64(nonce || ciphertext). No state beyond the process key is needed
// to decrypt it later.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt. It returns ErrDecryption
// when the envelope is not valid base64, too short to hold a nonce, or
// fails authentication.
func (c *Cipher) Decrypt(envelope string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, ErrDecryption
	}
	if len(sealed) < c.aead.NonceSize() {
		return nil, ErrDecryption
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}
