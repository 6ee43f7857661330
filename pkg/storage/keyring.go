package storage

import (
	"context"
	"errors"
	"fmt"

	zkr "github.com/zalando/go-keyring"
)

// Keyring stores blobs in the operating system credential store (macOS
// Keychain, Windows Credential Manager, Secret Service on Linux). Each blob is
// one secret under the configured service name. Platform size limits apply;
// Windows caps a credential at 2560 bytes.
type Keyring struct {
	service string
}

// NewKeyring constructs a Keyring backend scoped to service.
func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

// Service returns the credential store service name.
func (k *Keyring) Service() string {
	return k.service
}

// Read returns the blob stored under name.
func (k *Keyring) Read(_ context.Context, name string) (string, bool, error) {
	content, err := zkr.Get(k.service, name)
	if errors.Is(err, zkr.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: keyring get %s/%s: %w", k.service, name, err)
	}
	return content, true, nil
}

// Write replaces the blob stored under name.
func (k *Keyring) Write(_ context.Context, name, content string) error {
	if err := zkr.Set(k.service, name, content); err != nil {
		return fmt.Errorf("storage: keyring set %s/%s: %w", k.service, name, err)
	}
	return nil
}
