package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/demostack/platformctl/pkg/distribute"
	"github.com/demostack/platformctl/pkg/keymaterial"
	"github.com/demostack/platformctl/pkg/trustedkeys"
)

// UpdateKeysCmd rotates the evidence signing key: it produces a validated
// pair, publishes the public half to the platform trusted-key store, and
// distributes the private half to every repository.
type UpdateKeysCmd struct {
	distributionTarget

	Alias           string `help:"Trusted key alias on the platform" default:"evidence-signing-key"`
	Algorithm       string `help:"Key algorithm" enum:"rsa,ec,ed25519" default:"ed25519"`
	PrivateKey      string `help:"Use an existing private key PEM file instead of generating" type:"existingfile"`
	PublicKey       string `help:"Public key PEM file matching --private-key" type:"existingfile"`
	Mnemonic        bool   `help:"Print a 24-word recovery phrase for the generated key (ed25519 only)"`
	GeneratorBinary string `help:"External key generator binary" default:"jf"`
}

func (c *UpdateKeysCmd) Run(ctx *cliCtx) error {
	pair, err := c.keyPair(ctx)
	if err != nil {
		return err
	}
	// The pair must be internally consistent before anything is touched: a
	// mismatched pair would break every signature verification downstream.
	if err := keymaterial.Validate(pair); err != nil {
		return err
	}

	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	if err := c.healthCheck(ctx, client); err != nil {
		return err
	}

	if c.DryRun {
		ctx.Logger.Info("dry-run: would publish trusted key", "alias", pair.Alias)
	} else {
		publisher := trustedkeys.NewPublisher(client, ctx.Logger)
		if err := publisher.Ensure(ctx, pair.Alias, pair.PublicKeyString()); err != nil {
			var silent *trustedkeys.SilentFailureError
			if errors.As(err, &silent) {
				ctx.Logger.Error("SILENT FAILURE: the platform accepted the key upload but does not list it", "alias", silent.Alias)
			}
			return err
		}
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
		{Name: "EVIDENCE_KEY_ALIAS", Value: pair.Alias},
		{Name: "EVIDENCE_PUBLIC_KEY", Value: pair.PublicKeyString()},
		{Name: "EVIDENCE_PRIVATE_KEY", Value: string(pair.PrivatePEM), Secret: true},
	}
	ctx.Logger.Info("distributing evidence key", "alias", pair.Alias, "repos", len(repos))

	return c.runDistribution(ctx, store, client.BaseURL, repos, items)
}

func (c *UpdateKeysCmd) keyPair(ctx *cliCtx) (*keymaterial.Pair, error) {
	alg, err := keymaterial.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return nil, err
	}

	if c.PrivateKey != "" || c.PublicKey != "" {
		if c.PrivateKey == "" || c.PublicKey == "" {
			return nil, fmt.Errorf("--private-key and --public-key must be given together")
		}
		return keymaterial.Load(c.PrivateKey, c.PublicKey, c.Alias)
	}

	if c.Mnemonic {
		if alg != keymaterial.AlgorithmED25519 {
			return nil, fmt.Errorf("recovery phrases are only supported for ed25519 keys")
		}
		mnemonic, err := keymaterial.NewMnemonic()
		if err != nil {
			return nil, err
		}
		pair, err := keymaterial.FromMnemonic(mnemonic, c.Alias)
		if err != nil {
			return nil, err
		}
		printRecoveryPhrase(mnemonic)
		return pair, nil
	}

	source := &keymaterial.FallbackSource{
		Primary:  keymaterial.NewGeneratorSource(c.GeneratorBinary, ctx.Logger),
		Fallback: keymaterial.LocalSource{},
		Logger:   ctx.Logger,
	}
	return source.Generate(ctx, alg, c.Alias)
}

func printRecoveryPhrase(mnemonic string) {
	fmt.Print(`
============================================================
                    YOUR RECOVERY PHRASE
============================================================

`)
	words := strings.Fields(mnemonic)
	for i, word := range words {
		fmt.Print(word)
		if (i+1)%8 == 0 || i == len(words)-1 {
			fmt.Println()
		} else {
			fmt.Print(" ")
		}
	}
	fmt.Print(`
============================================================
Store this phrase securely. It can rebuild the evidence key
with 'platformctl keys recover'.
============================================================
`)
}

// KeysCmd groups the trusted-key maintenance subcommands.
type KeysCmd struct {
	List    KeysListCmd    `cmd:"" help:"List trusted keys on the platform"`
	Delete  KeysDeleteCmd  `cmd:"" help:"Delete a trusted key by alias"`
	Recover KeysRecoverCmd `cmd:"" help:"Rebuild an ed25519 evidence key pair from a recovery phrase"`
}

type KeysListCmd struct {
	platformFlags
}

func (c *KeysListCmd) Run(ctx *cliCtx) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	keys, err := client.ListTrustedKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No trusted keys on the platform.")
		return nil
	}
	for _, k := range keys {
		fmt.Printf("%-32s %s\n", k.Alias, k.Kid)
	}
	return nil
}

type KeysDeleteCmd struct {
	platformFlags
	Alias string `help:"Alias of the trusted key to delete" required:""`
}

func (c *KeysDeleteCmd) Run(ctx *cliCtx) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	keys, err := client.ListTrustedKeys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.Alias == c.Alias {
			if err := client.DeleteTrustedKey(ctx, k.Kid); err != nil {
				return err
			}
			fmt.Printf("Deleted trusted key %q (kid %s)\n", k.Alias, k.Kid)
			return nil
		}
	}
	ctx.Logger.Info("no trusted key with that alias, nothing to delete", "alias", c.Alias)
	return nil
}

type KeysRecoverCmd struct {
	Alias  string `help:"Alias for the recovered key" default:"evidence-signing-key"`
	OutDir string `help:"Directory to write the recovered PEM files into" default:"." type:"existingdir"`
}

func (c *KeysRecoverCmd) Run(ctx *cliCtx) error {
	fmt.Println("Paste your 24-word recovery phrase (separated by spaces):")
	reader := bufio.NewReader(os.Stdin)
	mnemonic, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read recovery phrase: %w", err)
	}

	pair, err := keymaterial.FromMnemonic(mnemonic, c.Alias)
	if err != nil {
		return err
	}

	privPath := filepath.Join(c.OutDir, c.Alias+"-private.pem")
	pubPath := filepath.Join(c.OutDir, c.Alias+"-public.pem")
	if err := os.WriteFile(privPath, pair.PrivatePEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pair.PublicPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	fmt.Printf("Recovered key pair written to %s and %s\n", privPath, pubPath)
	return nil
}
