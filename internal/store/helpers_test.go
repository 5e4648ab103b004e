package store_test

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"
)

var errDisk = errors.New("disk unplugged")

// MockKV lets a test fail individual store calls.
type MockKV struct {
	mock.Mock
}

func (m *MockKV) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockKV) Set(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockKV) Remove(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// mapVault is an in-memory Vault.
type mapVault struct {
	mu      sync.Mutex
	secrets map[string]string
}

func newMapVault() *mapVault {
	return &mapVault{secrets: map[string]string{}}
}

func (v *mapVault) Get(account string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.secrets[account], nil
}

func (v *mapVault) Set(account, secret string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[account] = secret
	return nil
}

func (v *mapVault) Delete(account string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.secrets, account)
	return nil
}
