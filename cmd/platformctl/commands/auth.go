package commands

import (
	"fmt"

	"github.com/demostack/platformctl/pkg/credentials"
)

// AuthCmd manages the GitHub token platformctl uses for repository writes.
type AuthCmd struct {
	Login  AuthLoginCmd  `cmd:"" help:"Log in to GitHub via the device flow and store the token in the OS keyring"`
	Logout AuthLogoutCmd `cmd:"" help:"Remove the stored GitHub token"`
	Token  AuthTokenCmd  `cmd:"" help:"Show where the GitHub token would be sourced from"`
}

type AuthLoginCmd struct {
	ClientID string `help:"GitHub OAuth app client ID" env:"PLATFORMCTL_GITHUB_CLIENT_ID" required:""`
}

func (c *AuthLoginCmd) Run(ctx *cliCtx) error {
	return credentials.NewManager(ctx.Keyring, c.ClientID, ctx.Logger).Login(ctx)
}

type AuthLogoutCmd struct{}

func (c *AuthLogoutCmd) Run(ctx *cliCtx) error {
	if err := credentials.NewManager(ctx.Keyring, "", ctx.Logger).Logout(); err != nil {
		return err
	}
	fmt.Println("GitHub token removed from the OS keyring.")
	return nil
}

type AuthTokenCmd struct {
	GithubToken string `help:"GitHub token" env:"GITHUB_TOKEN"`
}

func (c *AuthTokenCmd) Run(ctx *cliCtx) error {
	token, err := credentials.NewManager(ctx.Keyring, "", ctx.Logger).GithubToken(c.GithubToken)
	if err != nil {
		return err
	}
	// Never print the token itself, only enough to identify it.
	fmt.Printf("GitHub token available (%s)\n", maskToken(token))
	return nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-2:]
}
