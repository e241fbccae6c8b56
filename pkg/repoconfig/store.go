// Package repoconfig abstracts the per-repository configuration store:
// write-only secrets and readable variables attached to org/repo pairs.
package repoconfig

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetVariable when the variable does not exist on
// the repository.
var ErrNotFound = errors.New("variable not found")

// Store is the repository configuration backend. Secrets are write-only by
// construction: there is deliberately no secret read operation, so callers
// can only judge a secret write by the call's own result.
type Store interface {
	// SetSecret writes (or overwrites) a write-only secret.
	SetSecret(ctx context.Context, repo, name, value string) error
	// SetVariable writes (or overwrites) a readable variable.
	SetVariable(ctx context.Context, repo, name, value string) error
	// GetVariable reads a variable back; ErrNotFound when absent.
	GetVariable(ctx context.Context, repo, name string) (string, error)
	// DeleteSecret removes a secret; a missing secret is not an error.
	DeleteSecret(ctx context.Context, repo, name string) error
	// DeleteVariable removes a variable; a missing variable is not an error.
	DeleteVariable(ctx context.Context, repo, name string) error
	// RepoExists reports whether the repository exists and is accessible.
	RepoExists(ctx context.Context, repo string) (bool, error)
}
