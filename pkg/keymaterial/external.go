package keymaterial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrGeneratorUnavailable means the external key generator tool is not on
// PATH. Callers usually fall back to LocalSource.
var ErrGeneratorUnavailable = errors.New("key generator tool not found on PATH (install the jf CLI or use the built-in generator)")

// GeneratorSource shells out to the platform CLI to create an evidence key
// pair. The tool writes the pair to its working directory under one of a few
// naming conventions depending on its version, so the output is located by
// searching a known pattern set.
type GeneratorSource struct {
	Binary string
	Logger *slog.Logger

	run func(ctx context.Context, dir, name string, args ...string) error
}

// NewGeneratorSource returns a source invoking the given binary ("jf" when
// empty).
func NewGeneratorSource(binary string, logger *slog.Logger) *GeneratorSource {
	if binary == "" {
		binary = "jf"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeneratorSource{
		Binary: binary,
		Logger: logger,
		run: func(ctx context.Context, dir, name string, args ...string) error {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Dir = dir
			out, err := cmd.CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
			}
			return nil
		},
	}
}

// Generate runs the external tool in a throwaway directory, locates the pair
// it wrote, and returns the material. The directory is removed regardless of
// outcome so private key files never outlive the run.
func (g *GeneratorSource) Generate(ctx context.Context, alg Algorithm, alias string) (*Pair, error) {
	if _, err := exec.LookPath(g.Binary); err != nil {
		return nil, fmt.Errorf("%q: %w", g.Binary, ErrGeneratorUnavailable)
	}

	workDir, err := os.MkdirTemp("", "platformctl-keygen-")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	args := []string{"evd", "create-key", "--key-alias", alias, "--key-type", string(alg)}
	g.Logger.Debug("running external key generator", "binary", g.Binary, "args", args)
	if err := g.run(ctx, workDir, g.Binary, args...); err != nil {
		return nil, fmt.Errorf("external key generator failed: %w", err)
	}

	privPath, err := findKeyFile(workDir, privateKeyCandidates(alias))
	if err != nil {
		return nil, fmt.Errorf("generator output: %w", err)
	}
	pubPath, err := findKeyFile(workDir, publicKeyCandidates(alias))
	if err != nil {
		return nil, fmt.Errorf("generator output: %w", err)
	}

	priv, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read generated private key: %w", err)
	}
	pub, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read generated public key: %w", err)
	}
	return &Pair{Alias: alias, PrivatePEM: priv, PublicPEM: pub}, nil
}

// Different generator versions have used different output names; check the
// known ones before giving up.
func privateKeyCandidates(alias string) []string {
	return []string{
		alias + "-private.pem",
		alias + ".pem",
		"private.pem",
		"evidence-private-key.pem",
	}
}

func publicKeyCandidates(alias string) []string {
	return []string{
		alias + "-public.pem",
		alias + ".pub",
		"public.pem",
		"evidence-public-key.pem",
	}
}

func findKeyFile(dir string, candidates []string) (string, error) {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of the expected key files %v found in %s", candidates, dir)
}

// FallbackSource tries a primary source and, if it fails, generates with the
// fallback instead. It makes the tool-A-else-tool-B chain an explicit,
// testable strategy.
type FallbackSource struct {
	Primary  Source
	Fallback Source
	Logger   *slog.Logger
}

// Generate delegates to Primary and falls back on any error.
func (s *FallbackSource) Generate(ctx context.Context, alg Algorithm, alias string) (*Pair, error) {
	pair, err := s.Primary.Generate(ctx, alg, alias)
	if err == nil {
		return pair, nil
	}
	if s.Logger != nil {
		s.Logger.Warn("primary key source failed, using fallback", "error", err)
	}
	pair, ferr := s.Fallback.Generate(ctx, alg, alias)
	if ferr != nil {
		return nil, fmt.Errorf("fallback key source failed: %w (primary: %v)", ferr, err)
	}
	return pair, nil
}
