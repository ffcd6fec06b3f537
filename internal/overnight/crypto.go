package overnight

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize        = 16
	pbkdf2KeyLen    = 32 // AES-256
	pbkdf2HashIters = 100000
)

// deriveKey derives a 256-bit AES key from a user passphrase and salt via
// PBKDF2-SHA256, per §4.5 stage 7. The salt is always returned alongside
// the ciphertext rather than folded into the key material, so decryption
// never has to guess it back out.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2HashIters, pbkdf2KeyLen, sha256.New)
}

// newSalt generates a fresh random per-user salt.
func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// encrypt seals plaintext under AES-256-GCM with a key derived from
// passphrase+salt. The wire form is IV || CIPHERTEXT || TAG, base64-encoded:
// gcm.Seal appends the 16-byte tag after the ciphertext and the IV is
// prepended, so the tag follows the ciphertext rather than preceding it.
func encrypt(plaintext []byte, passphrase string, salt []byte) (string, error) {
	key := deriveKey(passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(iv, iv, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func encodeSalt(salt []byte) string {
	return base64.StdEncoding.EncodeToString(salt)
}

func decodeSalt(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

// decrypt reverses encrypt, given the same passphrase and salt.
func decrypt(encoded string, passphrase string, salt []byte) ([]byte, error) {
	key := deriveKey(passphrase, salt)

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	iv, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
