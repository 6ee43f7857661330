// Package protect provides the string protection primitive used for settings
// fields marked as protected. Values are sealed with AES-256-GCM using a key
// derived from caller supplied key material.
package protect

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// Prefix marks a protected value in persisted blobs.
const Prefix = "enc:"

const keySize = 32

var (
	// ErrNotProtected indicates Unprotect received a value without the
	// protection prefix.
	ErrNotProtected = errors.New("protect: value is not protected")
	// ErrMalformed indicates the ciphertext could not be decoded or is too
	// short to hold a nonce.
	ErrMalformed = errors.New("protect: malformed ciphertext")
)

var hkdfInfo = []byte("go-settings protected value")

// AESGCM protects strings with AES-256-GCM. Keys are derived from key
// material via HKDF-SHA256 and cached per key material. Safe for concurrent
// use.
type AESGCM struct {
	salt []byte
	keys sync.Map
}

// Option configures an AESGCM protector.
type Option func(*AESGCM)

// WithSalt sets the HKDF salt. Changing the salt changes every derived key.
func WithSalt(salt []byte) Option {
	return func(p *AESGCM) {
		p.salt = append([]byte(nil), salt...)
	}
}

// NewAESGCM constructs a protector.
func NewAESGCM(opts ...Option) *AESGCM {
	p := &AESGCM{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Protect seals plaintext. Empty input is returned unchanged.
func (p *AESGCM) Protect(plaintext, keyMaterial string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}
	gcm, err := p.aead(keyMaterial)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("protect: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Unprotect opens a value produced by Protect. Empty input is returned
// unchanged.
func (p *AESGCM) Unprotect(ciphertext, keyMaterial string) (string, error) {
	if ciphertext == "" {
		return ciphertext, nil
	}
	if !IsProtected(ciphertext) {
		return "", ErrNotProtected
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	gcm, err := p.aead(keyMaterial)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: too short", ErrMalformed)
	}
	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("protect: open: %w", err)
	}
	return string(plaintext), nil
}

// IsProtected reports whether value carries the protection prefix.
func IsProtected(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

func (p *AESGCM) aead(keyMaterial string) (cipher.AEAD, error) {
	if cached, ok := p.keys.Load(keyMaterial); ok {
		return cached.(cipher.AEAD), nil
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(keyMaterial), p.salt, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("protect: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("protect: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("protect: create GCM: %w", err)
	}
	actual, _ := p.keys.LoadOrStore(keyMaterial, gcm)
	return actual.(cipher.AEAD), nil
}
