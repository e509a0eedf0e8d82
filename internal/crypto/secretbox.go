// Package crypto provides AES-256-GCM encryption of opaque secrets (provider
// API keys) at rest. Deliberately standard-library only: AES-GCM is a narrow,
// security-sensitive primitive the Go standard library implements directly
// and constant-time, and the nonce/tag framing below is small enough that a
// third-party wrapper would add an opaque dependency without adding
// capability.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
)

// KeySize is the required AES-256 key size in bytes.
const KeySize = 32

// SecretBox encrypts and decrypts opaque byte slices with a single static
// key. Safe for concurrent use.
type SecretBox struct {
	aead cipher.AEAD
}

// New constructs a SecretBox from a 32-byte key, returning an error if the
// key is the wrong size.
func New(key []byte) (*SecretBox, error) {
	if len(key) != KeySize {
		return nil, errors.New("crypto: key must be 32 bytes for AES-256")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Crypto, "construct cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Crypto, "construct gcm", err)
	}
	return &SecretBox{aead: aead}, nil
}

// Encrypt seals plaintext, prepending a fresh random nonce to the returned
// ciphertext.
func (b *SecretBox) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, relayerr.Wrap(relayerr.Crypto, "generate nonce", err)
	}
	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt, returning relayerr.Crypto on
// any authentication failure (tampered data, wrong key) or malformed input.
func (b *SecretBox) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := b.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, relayerr.New(relayerr.Crypto, "ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Crypto, "authentication failed", err)
	}
	return plaintext, nil
}

// EncryptString encrypts s and encodes the result as standard base64, the
// form persisted in the providers collection's encrypted_api_key field.
func (b *SecretBox) EncryptString(s string) (string, error) {
	ciphertext, err := b.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString reverses EncryptString.
func (b *SecretBox) DecryptString(encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", relayerr.Wrap(relayerr.Crypto, "decode base64", err)
	}
	plaintext, err := b.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
