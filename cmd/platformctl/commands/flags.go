package commands

import (
	"fmt"
	"strings"

	"github.com/demostack/platformctl/pkg/credentials"
	"github.com/demostack/platformctl/pkg/distribute"
	"github.com/demostack/platformctl/pkg/platform"
	"github.com/demostack/platformctl/pkg/repoconfig"
	"github.com/demostack/platformctl/pkg/runstate"
)

// platformFlags identify and authenticate against the target platform.
type platformFlags struct {
	PlatformURL string `help:"Target platform base URL (https://<hostname>)" env:"JFROG_URL" required:""`
	AdminToken  string `help:"Platform admin bearer token" env:"JFROG_ADMIN_TOKEN" required:""`
}

func (f *platformFlags) client(ctx *cliCtx) (*platform.Client, error) {
	return platform.NewClient(platform.Config{
		BaseURL:    f.PlatformURL,
		AdminToken: f.AdminToken,
		Logger:     ctx.Logger,
	})
}

// githubFlags identify the repository set and the GitHub credentials.
type githubFlags struct {
	Org         string   `help:"GitHub organization owning the repositories" env:"PLATFORM_ORG" required:""`
	GithubToken string   `help:"GitHub token (falls back to the OS keyring entry created by 'auth login')" env:"GITHUB_TOKEN"`
	Repos       []string `help:"Candidate repository names, filtered to the ones that exist" default:"web-portal,inventory-service,recommendations-service,checkout-service,platform-infra,helm-charts"`
}

func (f *githubFlags) store(ctx *cliCtx, dryRun bool) (repoconfig.Store, error) {
	manager := credentials.NewManager(ctx.Keyring, "", ctx.Logger)
	token, err := manager.GithubToken(f.GithubToken)
	if err != nil {
		return nil, err
	}
	store, err := repoconfig.NewGitHubStore(repoconfig.GitHubConfig{
		Token:  token,
		Logger: ctx.Logger,
	})
	if err != nil {
		return nil, err
	}
	if dryRun {
		return repoconfig.NewDryRunStore(store, ctx.Logger), nil
	}
	return store, nil
}

// runFlags control how a distribution run behaves.
type runFlags struct {
	DryRun                bool   `help:"Log intended writes without performing any"`
	ContinueOnAuthFailure bool   `help:"Proceed with distribution even when the platform auth probe fails (disaster-recovery escape hatch)"`
	Concurrency           int    `help:"Bounded parallel fan-out across repositories (1 = sequential)" default:"1"`
	RetryFailed           bool   `help:"Operate only on the repositories the previous run left failed"`
	StatePath             string `help:"Path to the local run-state database (defaults to ~/.platformctl/state.db)" type:"path"`
}

func (f *runFlags) statePath() (string, error) {
	if f.StatePath != "" {
		return f.StatePath, nil
	}
	return runstate.DefaultPath()
}

// distributionTarget bundles everything a mutating fan-out command needs.
type distributionTarget struct {
	platformFlags
	githubFlags
	runFlags
}

// healthCheck runs the pre-flight probes; skipped in dry-run only for the
// auth stage via the escape hatch, never for reachability.
func (t *distributionTarget) healthCheck(ctx *cliCtx, client *platform.Client) error {
	hc := platform.NewHealthChecker(client, ctx.Logger)
	hc.ContinueOnAuthFailure = t.ContinueOnAuthFailure
	return hc.Check(ctx)
}

// resolveRepos returns the repositories to operate on: either the filtered
// candidate list, or the failed set recorded by the previous run.
func (t *distributionTarget) resolveRepos(ctx *cliCtx, store repoconfig.Store, platformURL string) ([]string, error) {
	candidates := t.Repos
	if t.RetryFailed {
		path, err := t.statePath()
		if err != nil {
			return nil, err
		}
		state, err := runstate.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run state: %w", err)
		}
		defer state.Close()
		failed, err := state.FailedRepos(t.Org, platformURL)
		if err != nil {
			return nil, err
		}
		if len(failed) == 0 {
			return nil, fmt.Errorf("no failed repositories recorded for %s at %s", t.Org, platformURL)
		}
		ctx.Logger.Info("retrying previously failed repositories", "count", len(failed))
		candidates = failed
	}
	return distribute.FilterExisting(ctx, store, t.Org, candidates, ctx.Logger)
}

// runDistribution executes the fan-out, reports, persists the outcome for
// --retry-failed, and turns a non-empty failed set into a process failure.
func (t *distributionTarget) runDistribution(ctx *cliCtx, store repoconfig.Store, platformURL string, repos []string, items []distribute.Item) error {
	d := distribute.New(store, ctx.Logger)
	d.Concurrency = t.Concurrency
	d.DryRun = t.DryRun

	summary := d.Distribute(ctx, repos, items)
	printSummary(summary)

	if !t.DryRun {
		if err := t.recordOutcome(ctx, platformURL, summary); err != nil {
			ctx.Logger.Warn("failed to persist run state", "error", err)
		}
	}
	if !summary.OK() {
		return fmt.Errorf("%d of %d repositories failed: %s",
			len(summary.Failed), summary.Total(), strings.Join(summary.FailedRepos(), ", "))
	}
	return nil
}

func (t *distributionTarget) recordOutcome(ctx *cliCtx, platformURL string, summary *distribute.Summary) error {
	path, err := t.statePath()
	if err != nil {
		return err
	}
	state, err := runstate.Open(path)
	if err != nil {
		return err
	}
	defer state.Close()
	return state.RecordFailures(t.Org, platformURL, summary.FailedRepos())
}
