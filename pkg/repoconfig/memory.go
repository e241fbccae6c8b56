package repoconfig

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests. Repositories must be added
// with AddRepo before they accept writes, mirroring the real store's
// behavior for unknown repositories.
type MemoryStore struct {
	mu        sync.Mutex
	repos     map[string]bool
	variables map[string]map[string]string // repo -> name -> value
	secrets   map[string]map[string]string // write-only, never exposed via a read
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		repos:     make(map[string]bool),
		variables: make(map[string]map[string]string),
		secrets:   make(map[string]map[string]string),
	}
}

// AddRepo registers a repository so writes against it succeed.
func (m *MemoryStore) AddRepo(repo string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[repo] = true
}

func (m *MemoryStore) SetSecret(ctx context.Context, repo, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.repos[repo] {
		return fmt.Errorf("repository %s not found", repo)
	}
	if m.secrets[repo] == nil {
		m.secrets[repo] = make(map[string]string)
	}
	m.secrets[repo][name] = value
	return nil
}

func (m *MemoryStore) SetVariable(ctx context.Context, repo, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.repos[repo] {
		return fmt.Errorf("repository %s not found", repo)
	}
	if m.variables[repo] == nil {
		m.variables[repo] = make(map[string]string)
	}
	m.variables[repo][name] = value
	return nil
}

func (m *MemoryStore) GetVariable(ctx context.Context, repo, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.variables[repo][name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("variable %s on %s: %w", name, repo, ErrNotFound)
}

func (m *MemoryStore) DeleteSecret(ctx context.Context, repo, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets[repo], name)
	return nil
}

func (m *MemoryStore) DeleteVariable(ctx context.Context, repo, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.variables[repo], name)
	return nil
}

func (m *MemoryStore) RepoExists(ctx context.Context, repo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repos[repo], nil
}

// SecretCount reports how many secrets a repository holds. Tests use it to
// assert secrets landed without exposing their values through a read path.
func (m *MemoryStore) SecretCount(repo string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.secrets[repo])
}

var _ Store = (*MemoryStore)(nil)
