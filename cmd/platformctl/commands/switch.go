package commands

import (
	"strings"

	"github.com/demostack/platformctl/pkg/distribute"
)

// SwitchPlatformCmd repoints every repository's platform configuration at a
// new target platform and verifies the writes landed.
type SwitchPlatformCmd struct {
	distributionTarget

	ProjectKey     string `help:"Platform project key distributed as PROJECT_KEY" env:"PROJECT_KEY" default:"demo"`
	DockerRegistry string `help:"Registry host distributed as DOCKER_REGISTRY (defaults to the platform host)"`
}

func (c *SwitchPlatformCmd) Run(ctx *cliCtx) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	if err := c.healthCheck(ctx, client); err != nil {
		return err
	}

	registry := c.DockerRegistry
	if registry == "" {
		registry = strings.TrimPrefix(client.BaseURL, "https://")
	}

	store, err := c.store(ctx, c.DryRun)
	if err != nil {
		return err
	}
	repos, err := c.resolveRepos(ctx, store, client.BaseURL)
	if err != nil {
		return err
	}

	items := []distribute.Item{
		{Name: "JFROG_URL", Value: client.BaseURL},
		{Name: "DOCKER_REGISTRY", Value: registry},
		{Name: "PROJECT_KEY", Value: c.ProjectKey},
		{Name: "JFROG_ADMIN_TOKEN", Value: c.AdminToken, Secret: true},
	}
	ctx.Logger.Info("switching platform configuration",
		"platform", client.BaseURL, "repos", len(repos), "items", len(items))

	return c.runDistribution(ctx, store, client.BaseURL, repos, items)
}
