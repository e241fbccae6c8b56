package distribute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/demostack/platformctl/pkg/repoconfig"
)

// FilterExisting probes each candidate repository name under org and returns
// the org/name identifiers that exist and are accessible. Missing candidates
// are logged and skipped; an empty result is fatal because there is nothing
// to operate on.
func FilterExisting(ctx context.Context, store repoconfig.Store, org string, candidates []string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var repos []string
	for _, name := range candidates {
		repo := name
		if !strings.Contains(name, "/") {
			repo = org + "/" + name
		}
		ok, err := store.RepoExists(ctx, repo)
		if err != nil {
			logger.Warn("repository probe failed, skipping", "repo", repo, "error", err)
			continue
		}
		if !ok {
			logger.Warn("repository not found, skipping", "repo", repo)
			continue
		}
		repos = append(repos, repo)
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("organization %s: %w", org, ErrNoRepositories)
	}
	return repos, nil
}

// ErrNoRepositories means none of the candidate repositories exist or are
// accessible.
var ErrNoRepositories = errors.New("no accessible repositories found")
