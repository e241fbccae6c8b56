package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/demostack/platformctl/pkg/credentials"
)

// defaultsFile is an optional dotenv file in the working directory that
// supplies per-checkout defaults (PLATFORM_ORG, JFROG_URL, ...). It is loaded
// before kong resolves env-tagged flags, so real environment variables still
// win over file values.
const defaultsFile = ".platformctl"

type cliCtx struct {
	context.Context
	Logger  *slog.Logger
	Keyring credentials.Keyring
}

type cli struct {
	Debug bool `help:"Enable debug logging"`

	SwitchPlatform SwitchPlatformCmd `cmd:"" name:"switch-platform" help:"Point every repository at a new target platform"`
	UpdateKeys     UpdateKeysCmd     `cmd:"" name:"update-keys" help:"Rotate the evidence signing key pair and distribute it"`
	Keys           KeysCmd           `cmd:"" help:"Inspect and manage the platform trusted-key store"`
	Repos          ReposCmd          `cmd:"" help:"List the accessible repositories in the fan-out set"`
	Auth           AuthCmd           `cmd:"" help:"Manage the stored GitHub token"`

	Version kong.VersionFlag `help:"Show version"`
}

func Execute(version string) {
	godotenv.Load(defaultsFile)

	var cli cli
	ctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.Name("platformctl"),
		kong.Description("platformctl reconfigures the demo platform: it fans repository secrets and variables out across GitHub and rotates evidence signing keys on the target platform"),
		kong.Vars{"version": version},
	)

	err := ctx.Run(&cliCtx{
		Context: context.Background(),
		Logger:  newLogger(cli.Debug),
		Keyring: credentials.OSKeyring{},
	})
	ctx.FatalIfErrorf(err)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
