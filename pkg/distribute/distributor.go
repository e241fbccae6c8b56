// Package distribute fans configuration items out across a repository set,
// verifies readable items with bounded retries, and aggregates per-repository
// results across a main pass and a final verification pass.
package distribute

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/demostack/platformctl/pkg/repoconfig"
	"github.com/demostack/platformctl/pkg/retry"
)

// Distributor pushes items to every repository in a set. The zero
// concurrency value processes repositories strictly sequentially, which
// keeps log output attributable per repository; a larger value enables a
// bounded worker pool with the same result semantics.
type Distributor struct {
	Store  repoconfig.Store
	Logger *slog.Logger

	// Concurrency bounds the worker pool for the main pass; values <= 1 mean
	// sequential processing.
	Concurrency int

	// DryRun skips read-back verification (the wrapped store performs no
	// writes, so reads would never converge).
	DryRun bool

	// RetryOptions tune the verify-with-retry schedule. Tests inject a fake
	// timer here.
	RetryOptions []retry.Option
}

// New returns a sequential Distributor over the given store.
func New(store repoconfig.Store, logger *slog.Logger) *Distributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{Store: store, Logger: logger}
}

// Distribute runs the main pass over every repository, then the final
// verification pass over the repositories that failed. Repository-level
// failures never abort the loop; every repository is attempted exactly once
// per pass.
func (d *Distributor) Distribute(ctx context.Context, repos []string, items []Item) *Summary {
	failedItems := make([][]string, len(repos))

	if d.Concurrency > 1 {
		sem := make(chan struct{}, d.Concurrency)
		var wg sync.WaitGroup
		for i, repo := range repos {
			wg.Add(1)
			go func(i int, repo string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				failedItems[i] = d.distributeRepo(ctx, repo, items)
			}(i, repo)
		}
		// Barrier: the final pass must only see the fully accumulated
		// failed set.
		wg.Wait()
	} else {
		for i, repo := range repos {
			failedItems[i] = d.distributeRepo(ctx, repo, items)
		}
	}

	summary := &Summary{}
	for i, repo := range repos {
		summary.record(repo, failedItems[i])
	}

	if !d.DryRun {
		d.finalPass(ctx, summary, items)
	}
	return summary
}

// distributeRepo applies every item to one repository and returns the names
// of the items that failed. Item-level failures are isolated: one failing
// item never stops the remaining items.
func (d *Distributor) distributeRepo(ctx context.Context, repo string, items []Item) []string {
	log := d.Logger.With("repo", repo)
	failedSet := make(map[string]bool)

	// Secrets first: their only failure signal is the write call itself.
	for _, it := range items {
		if !it.Secret {
			continue
		}
		if err := d.Store.SetSecret(ctx, repo, it.Name, it.Value); err != nil {
			log.Error("secret write failed", "name", it.Name, "error", err)
			failedSet[it.Name] = true
		}
	}

	for _, it := range items {
		if it.Secret {
			continue
		}
		if err := d.Store.SetVariable(ctx, repo, it.Name, it.Value); err != nil {
			log.Error("variable write failed", "name", it.Name, "error", err)
			failedSet[it.Name] = true
		}
	}

	if !d.DryRun {
		for _, it := range items {
			if it.Secret {
				continue
			}
			if err := d.verifyVariable(ctx, repo, it); err == nil {
				continue
			}
			// One blind rewrite, then one more verify cycle, before giving
			// up on this item for this repository.
			log.Warn("variable did not converge, rewriting once", "name", it.Name)
			if err := d.Store.SetVariable(ctx, repo, it.Name, it.Value); err != nil {
				log.Error("variable rewrite failed", "name", it.Name, "error", err)
				failedSet[it.Name] = true
				continue
			}
			if err := d.verifyVariable(ctx, repo, it); err != nil {
				log.Error("variable verification failed after rewrite", "name", it.Name, "error", err)
				failedSet[it.Name] = true
			}
		}
	}

	if len(failedSet) == 0 {
		log.Info("repository configured", "items", len(items))
		return nil
	}
	// Preserve item order in the failure report.
	var failed []string
	for _, it := range items {
		if failedSet[it.Name] {
			failed = append(failed, it.Name)
		}
	}
	return failed
}

// verifyVariable reads the variable back until it matches the expected value,
// with capped exponential backoff. Leading/trailing whitespace is ignored on
// both sides to tolerate platform-side formatting quirks.
func (d *Distributor) verifyVariable(ctx context.Context, repo string, it Item) error {
	want := strings.TrimSpace(it.Value)
	return retry.Do(ctx, func() error {
		got, err := d.Store.GetVariable(ctx, repo, it.Name)
		if err != nil {
			return err
		}
		if strings.TrimSpace(got) != want {
			return fmt.Errorf("variable %s on %s has not converged", it.Name, repo)
		}
		return nil
	}, d.RetryOptions...)
}

// finalPass re-verifies previously failed repositories without rewriting
// first: a write that appeared to fail (or to not converge) during the main
// pass may have landed since. Repositories whose only outstanding failures
// are now-converged variables move to the succeeded set. Failed secret
// writes cannot be verified by read-back, so they keep their repository in
// the failed set.
func (d *Distributor) finalPass(ctx context.Context, summary *Summary, items []Item) {
	if len(summary.Failed) == 0 {
		return
	}
	d.Logger.Info("running final verification pass", "repos", len(summary.Failed))

	byName := make(map[string]Item, len(items))
	for _, it := range items {
		byName[it.Name] = it
	}

	var promote []string
	for _, f := range summary.Failed {
		recovered := true
		for _, name := range f.FailedItems {
			it, ok := byName[name]
			if !ok || it.Secret {
				recovered = false
				break
			}
			if err := d.verifyVariable(ctx, f.Repo, it); err != nil {
				recovered = false
				break
			}
		}
		if recovered {
			d.Logger.Info("repository converged during final pass", "repo", f.Repo)
			promote = append(promote, f.Repo)
		}
	}
	for _, repo := range promote {
		summary.promote(repo)
	}
}
