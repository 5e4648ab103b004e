package store

import (
	"errors"
	"fmt"

	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/zalando/go-keyring"
)

// Vault holds secrets (SSNs) outside the plain key-value store, keyed by person id.
type Vault interface {
	Get(account string) (string, error)
	Set(account, secret string) error
	Delete(account string) error
}

// KeyringVault uses the OS keychain.
type KeyringVault struct {
	Service string
}

// NewKeyringVault returns a vault scoped to the application service name.
func NewKeyringVault() *KeyringVault {
	return &KeyringVault{Service: config.KeyringService}
}

// Get returns "" without error when nothing is stored.
func (v *KeyringVault) Get(account string) (string, error) {
	secret, err := keyring.Get(v.Service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrVaultRead, err)
	}
	return secret, nil
}

func (v *KeyringVault) Set(account, secret string) error {
	if err := keyring.Set(v.Service, account, secret); err != nil {
		return fmt.Errorf("%s: %w", config.ErrVaultWrite, err)
	}
	return nil
}

// Delete is a no-op for unknown accounts.
func (v *KeyringVault) Delete(account string) error {
	err := keyring.Delete(v.Service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%s: %w", config.ErrVaultWrite, err)
	}
	return nil
}
