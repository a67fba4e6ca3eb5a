package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	ErrKeyNotConfigured = errors.New("credentials key not configured")
	ErrInvalidKey       = errors.New("credentials key must decode to 32 bytes")
	ErrCiphertext       = errors.New("malformed ciphertext")
)

// Box seals short strings (broker API keys) with a fixed symmetric key.
// The output is base64(nonce || sealed).
type Box struct {
	key [32]byte
}

func NewBox(key [32]byte) *Box {
	return &Box{key: key}
}

// NewBoxFromBase64 parses the key the way it is stored in the environment.
func NewBoxFromBase64(encoded string) (*Box, error) {
	if encoded == "" {
		return nil, ErrKeyNotConfigured
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode credentials key: %w", err)
	}
	if len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	var key [32]byte
	copy(key[:], raw)
	return NewBox(key), nil
}

func (b *Box) Encrypt(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCiphertext
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", fmt.Errorf("%w: authentication failed", ErrCiphertext)
	}
	return string(plain), nil
}

func defaultBox() (*Box, error) {
	return NewBoxFromBase64(GetConfig().CredentialsKey)
}

// EncryptString seals plain with the key from BROKER_CREDENTIALS_KEY.
func EncryptString(plain string) (string, error) {
	box, err := defaultBox()
	if err != nil {
		return "", err
	}
	return box.Encrypt(plain)
}

// DecryptString opens a value produced by EncryptString.
func DecryptString(encoded string) (string, error) {
	box, err := defaultBox()
	if err != nil {
		return "", err
	}
	return box.Decrypt(encoded)
}
