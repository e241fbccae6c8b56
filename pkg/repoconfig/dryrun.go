package repoconfig

import (
	"context"
	"log/slog"
)

// DryRunStore wraps a real store: reads and existence probes pass through,
// every write or delete is logged and skipped. Secret values are never
// logged, only their names.
type DryRunStore struct {
	Next   Store
	Logger *slog.Logger
}

// NewDryRunStore wraps next.
func NewDryRunStore(next Store, logger *slog.Logger) *DryRunStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunStore{Next: next, Logger: logger}
}

func (d *DryRunStore) SetSecret(ctx context.Context, repo, name, value string) error {
	d.Logger.Info("dry-run: would set secret", "repo", repo, "name", name)
	return nil
}

func (d *DryRunStore) SetVariable(ctx context.Context, repo, name, value string) error {
	d.Logger.Info("dry-run: would set variable", "repo", repo, "name", name, "value", value)
	return nil
}

func (d *DryRunStore) GetVariable(ctx context.Context, repo, name string) (string, error) {
	return d.Next.GetVariable(ctx, repo, name)
}

func (d *DryRunStore) DeleteSecret(ctx context.Context, repo, name string) error {
	d.Logger.Info("dry-run: would delete secret", "repo", repo, "name", name)
	return nil
}

func (d *DryRunStore) DeleteVariable(ctx context.Context, repo, name string) error {
	d.Logger.Info("dry-run: would delete variable", "repo", repo, "name", name)
	return nil
}

func (d *DryRunStore) RepoExists(ctx context.Context, repo string) (bool, error) {
	return d.Next.RepoExists(ctx, repo)
}

var _ Store = (*DryRunStore)(nil)
