// Package credentials resolves and stores the tokens platformctl needs: the
// GitHub token (via device-flow login) and optionally the platform admin
// token, both kept in the operating system keyring.
package credentials

import (
	"errors"
	"fmt"
	"sync"

	keyringlib "github.com/zalando/go-keyring"
)

// ErrNotFound is returned when a credential is not present in the keyring.
var ErrNotFound = errors.New("credential not found in keyring")

// Keyring abstracts the OS keyring so tests can run against memory.
type Keyring interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
	// Delete must not fail when the entry does not exist.
	Delete(service, account string) error
}

// OSKeyring stores credentials in the operating system keyring.
type OSKeyring struct{}

func (OSKeyring) Get(service, account string) (string, error) {
	secret, err := keyringlib.Get(service, account)
	if err != nil {
		if errors.Is(err, keyringlib.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read OS keyring: %w", err)
	}
	return secret, nil
}

func (OSKeyring) Set(service, account, secret string) error {
	return keyringlib.Set(service, account, secret)
}

func (OSKeyring) Delete(service, account string) error {
	err := keyringlib.Delete(service, account)
	if errors.Is(err, keyringlib.ErrNotFound) {
		return nil
	}
	return err
}

// MemoryKeyring is an in-memory Keyring for tests.
type MemoryKeyring struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{entries: make(map[string]string)}
}

func (m *MemoryKeyring) Get(service, account string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.entries[service+"/"+account]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (m *MemoryKeyring) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[service+"/"+account] = secret
	return nil
}

func (m *MemoryKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, service+"/"+account)
	return nil
}

var (
	_ Keyring = OSKeyring{}
	_ Keyring = (*MemoryKeyring)(nil)
)
