package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

var (
	ErrInvalidKey    = errors.New("invalid_encryption_key")
	ErrDecryptFailed = errors.New("decrypt_failed")
)

// DecryptionError wraps the reason a ciphertext blob could not be opened.
// It always matches ErrDecryptFailed via errors.Is.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypt failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error { return ErrDecryptFailed }

// ParseKey decodes a hex-encoded 256-bit key.
func ParseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random nonce and
// returns base64(nonce || tag || ciphertext). Identical plaintexts never
// produce identical blobs.
func Encrypt(plaintext, key []byte) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Seal appends ciphertext || tag; the stored layout is nonce || tag || ciphertext.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, nonceSize+tagSize+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Tampered, truncated or
// wrong-key input returns a *DecryptionError, never corrupted plaintext.
func Decrypt(blob string, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, &DecryptionError{Reason: "malformed base64"}
	}
	if len(raw) < nonceSize+tagSize {
		return nil, &DecryptionError{Reason: "blob too short"}
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ciphertext := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, &DecryptionError{Reason: "authentication failed"}
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return cipher.NewGCM(block)
}
