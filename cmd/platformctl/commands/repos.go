package commands

import (
	"fmt"

	"github.com/demostack/platformctl/pkg/distribute"
)

// ReposCmd probes the candidate repository list and prints the subset that
// exists and is accessible with the current GitHub token.
type ReposCmd struct {
	githubFlags
}

func (c *ReposCmd) Run(ctx *cliCtx) error {
	store, err := c.store(ctx, false)
	if err != nil {
		return err
	}
	repos, err := distribute.FilterExisting(ctx, store, c.Org, c.Repos, ctx.Logger)
	if err != nil {
		return err
	}
	for _, repo := range repos {
		fmt.Println(repo)
	}
	return nil
}
